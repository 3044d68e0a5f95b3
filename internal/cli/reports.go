package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	app "github.com/maidige/consultation-admin/internal/app/reporting"
	"github.com/maidige/consultation-admin/internal/domain/clinic"
	domain "github.com/maidige/consultation-admin/internal/domain/reporting"
	"github.com/maidige/consultation-admin/internal/infra/notify"
)

func (a *App) reportsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Generate and track comprehensive reports",
	}
	cmd.AddCommand(a.reportsGenerateCommand(), a.reportsStatusCommand())
	return cmd
}

type generateOutput struct {
	ConsultationID string              `json:"consultation_id" yaml:"consultation_id"`
	JobID          string              `json:"job_id,omitempty" yaml:"job_id,omitempty"`
	Status         domain.ReportStatus `json:"status,omitempty" yaml:"status,omitempty"`
	Progress       int                 `json:"progress,omitempty" yaml:"progress,omitempty"`
	Data           map[string]any      `json:"data,omitempty" yaml:"data,omitempty"`
}

func (a *App) reportsGenerateCommand() *cobra.Command {
	var wait bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "generate <consultation-id>",
		Short: "Request a comprehensive report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.require("read", clinic.SubjectConsultation); err != nil {
				return err
			}
			consultationID := args[0]
			if _, err := parseID(consultationID); err != nil {
				return err
			}
			ctx := ctxOf(cmd)

			if !wait {
				jobID, err := a.client.GenerateComprehensiveReport(ctx, consultationID)
				if err != nil {
					return err
				}
				out := generateOutput{ConsultationID: consultationID, JobID: jobID}
				return a.render(out, func(w io.Writer) {
					row(w, "JOB", jobID)
					row(w, "NEXT", "consultadm reports status "+jobID)
				})
			}

			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			manager := app.NewPollingManager(a.client, notify.NewLogNotifier(a.log), a.tracer, a.log,
				app.WithInterval(a.cfg.Polling.Interval))
			defer manager.Close()
			gen := app.NewGenerator(a.client, manager, a.tracer, a.log)

			fmt.Fprintf(a.errOut, "Waiting for report of consultation %s...\n", consultationID)
			report, err := gen.GenerateAndWait(ctx, consultationID)
			if err != nil {
				return err
			}

			out := generateOutput{
				ConsultationID: consultationID,
				Status:         report.Status,
				Progress:       report.Progress,
				Data:           report.Data,
			}
			if err := a.render(out, func(w io.Writer) {
				row(w, "STATUS", report.Status)
				row(w, "PROGRESS", fmt.Sprintf("%d%%", report.Progress))
			}); err != nil {
				return err
			}
			if report.Status == domain.ReportStatusFailed {
				return fmt.Errorf("report generation failed for consultation %s", consultationID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the report completes or fails")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "give up waiting after this long")
	return cmd
}

func (a *App) reportsStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Query a report job once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.require("read", clinic.SubjectConsultation); err != nil {
				return err
			}

			report, err := a.client.ReportStatus(ctxOf(cmd), args[0])
			if err != nil {
				return err
			}
			out := generateOutput{JobID: args[0], Status: report.Status, Progress: report.Progress, Data: report.Data}
			return a.render(out, func(w io.Writer) {
				row(w, "JOB", args[0])
				row(w, "STATUS", report.Status)
				row(w, "PROGRESS", fmt.Sprintf("%d%%", report.Progress))
			})
		},
	}
}
