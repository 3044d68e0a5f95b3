package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/maidige/consultation-admin/internal/domain/clinic"
	"github.com/maidige/consultation-admin/internal/infra/consultapi"
	"github.com/maidige/consultation-admin/pkg/common/validate"
)

func (a *App) consultationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "consultations",
		Aliases: []string{"consultation", "c"},
		Short:   "Browse pre-consultation records and their reports",
	}
	cmd.AddCommand(
		a.consultationsListCommand(),
		a.consultationsGetCommand(),
		a.consultationsStatsCommand(),
		a.consultationsFetchReportCommand(),
		a.consultationsDownloadCommand(),
	)
	return cmd
}

func consultationRow(w io.Writer, c clinic.Consultation) {
	org := "-"
	if c.Organization != nil {
		org = c.Organization.Name
	}
	report := "no"
	if c.HasReport() {
		report = "yes"
	}
	row(w, c.ID, c.PatientLabel(), org, c.Status, report, orDash(c.CreatedAt))
}

func (a *App) consultationsListCommand() *cobra.Command {
	var f clinic.ConsultationFilter
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List consultations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.require("read", clinic.SubjectConsultation); err != nil {
				return err
			}
			f.Status = clinic.ConsultationStatus(status)
			if err := validate.Struct(f); err != nil {
				return err
			}

			page, err := a.client.ListConsultations(ctxOf(cmd), f)
			if err != nil {
				return err
			}
			return a.render(page, func(w io.Writer) {
				row(w, "ID", "PATIENT", "ORGANIZATION", "STATUS", "REPORT", "CREATED")
				for _, c := range page.Consultations {
					consultationRow(w, c)
				}
				fmt.Fprintf(w, "\npage %d of %d, %d total\n", page.CurrentPage, page.LastPage, page.Total)
			})
		},
	}

	fl := cmd.Flags()
	fl.IntVar(&f.Page, "page", 1, "page number")
	fl.IntVar(&f.PerPage, "per-page", clinic.DefaultPageSize, "records per page")
	fl.StringVar(&f.Search, "search", "", "patient name or phone number")
	fl.StringVar(&status, "status", "", "completed, pending, failed or generated")
	fl.Int64Var(&f.OrganizationID, "org", 0, "organization id")
	fl.StringVar(&f.StartDate, "from", "", "start date (YYYY-MM-DD)")
	fl.StringVar(&f.EndDate, "to", "", "end date (YYYY-MM-DD)")
	return cmd
}

func (a *App) consultationsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one consultation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.require("read", clinic.SubjectConsultation); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			c, err := a.client.GetConsultation(ctxOf(cmd), id)
			if err != nil {
				return err
			}
			return a.render(c, func(w io.Writer) {
				row(w, "ID", c.ID)
				row(w, "PATIENT", c.PatientLabel())
				if c.Patient != nil {
					row(w, "PHONE", orDash(c.Patient.PhoneNumber))
					row(w, "CHANNEL", orDash(c.Patient.ChannelSource))
				}
				if c.Organization != nil {
					row(w, "ORGANIZATION", c.Organization.Name)
				}
				row(w, "STATUS", c.Status)
				row(w, "REPORT", orDash(c.ReportURL))
				row(w, "CREATED", orDash(c.CreatedAt))
			})
		},
	}
}

func (a *App) consultationsStatsCommand() *cobra.Command {
	var q clinic.StatisticsQuery

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize consultations by status and organization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.require("read", clinic.SubjectConsultation); err != nil {
				return err
			}
			if err := validate.Struct(q); err != nil {
				return err
			}

			sum, err := a.client.ConsultationStatistics(ctxOf(cmd), q)
			if err != nil {
				return err
			}
			s := sum.Statistics
			return a.render(sum, func(w io.Writer) {
				row(w, "TOTAL", s.TotalConsultations)
				row(w, "COMPLETED", s.CompletedConsultations)
				row(w, "PENDING", s.PendingConsultations)
				row(w, "FAILED", s.FailedConsultations)
				row(w, "COMPLETION RATE", fmt.Sprintf("%.1f%%", s.CompletionRate()))
				row(w, "SUCCESS RATE", fmt.Sprintf("%.1f%%", s.SuccessRate()))
				if len(s.OrganizationStats) > 0 {
					fmt.Fprintln(w)
					row(w, "ORGANIZATION", "COUNT")
					for _, o := range s.OrganizationStats {
						row(w, o.Name, o.Count)
					}
				}
			})
		},
	}
	cmd.Flags().Int64Var(&q.OrganizationID, "org", 0, "organization id")
	cmd.Flags().StringVar(&q.StartDate, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&q.EndDate, "to", "", "end date (YYYY-MM-DD)")
	return cmd
}

// fetchOutcome is the result of fetching one consultation's report.
type fetchOutcome struct {
	ID            int64  `json:"id" yaml:"id"`
	OK            bool   `json:"ok" yaml:"ok"`
	Status        string `json:"status,omitempty" yaml:"status,omitempty"`
	Message       string `json:"message" yaml:"message"`
	FetchAttempts int    `json:"fetch_attempts,omitempty" yaml:"fetch_attempts,omitempty"`
	CanRetry      bool   `json:"can_retry,omitempty" yaml:"can_retry,omitempty"`
}

func (a *App) consultationsFetchReportCommand() *cobra.Command {
	var force bool
	var concurrency int

	cmd := &cobra.Command{
		Use:   "fetch-report <id>...",
		Short: "Pull reports from the upstream provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.require("read", clinic.SubjectConsultation); err != nil {
				return err
			}
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			fetch := a.client.FetchReport
			if force {
				fetch = a.client.ForceFetchReport
			}

			outcomes := make([]fetchOutcome, len(ids))
			var mu sync.Mutex
			failed := 0

			g, ctx := errgroup.WithContext(ctxOf(cmd))
			g.SetLimit(max(concurrency, 1))
			for i, id := range ids {
				g.Go(func() error {
					out := fetchOutcome{ID: id}
					res, err := fetch(ctx, id)
					switch {
					case err == nil:
						out.OK = true
						out.Message = res.Message
						if res.Consultation != nil {
							out.Status = string(res.Consultation.Status)
						}
					case errors.Is(err, consultapi.ErrUnauthorized):
						// Every remaining request would fail the same way.
						return err
					default:
						out.Message = err.Error()
						var apiErr *consultapi.APIError
						if errors.As(err, &apiErr) {
							out.Message = apiErr.Message
							out.FetchAttempts = apiErr.FetchAttempts
							out.CanRetry = apiErr.CanRetry
						}
						mu.Lock()
						failed++
						mu.Unlock()
					}
					outcomes[i] = out
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if err := a.render(outcomes, func(w io.Writer) {
				row(w, "ID", "RESULT", "STATUS", "ATTEMPTS", "MESSAGE")
				for _, o := range outcomes {
					result := "ok"
					if !o.OK {
						result = "failed"
					}
					attempts := "-"
					if o.FetchAttempts > 0 {
						attempts = strconv.Itoa(o.FetchAttempts)
					}
					row(w, o.ID, result, orDash(o.Status), attempts, o.Message)
				}
			}); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d report fetches failed", failed, len(ids))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "re-fetch even when a report exists")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "parallel fetches")
	return cmd
}

func (a *App) consultationsDownloadCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download a consultation's report file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.require("read", clinic.SubjectConsultation); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := ctxOf(cmd)

			c, err := a.client.GetConsultation(ctx, id)
			if err != nil {
				return err
			}
			if !c.HasReport() {
				return fmt.Errorf("consultation %d: %w", id, consultapi.ErrNoReport)
			}

			path := filepath.Join(dir, c.ReportFileName())
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("create %s: %w", path, err)
			}
			n, err := a.client.DownloadReport(ctx, *c, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(path)
				return err
			}

			out := map[string]any{"path": path, "bytes": n}
			return a.render(out, func(w io.Writer) {
				row(w, "SAVED", path)
				row(w, "SIZE", humanize.Bytes(uint64(n)))
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "destination directory")
	return cmd
}
