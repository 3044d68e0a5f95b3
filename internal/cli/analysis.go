package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/maidige/consultation-admin/internal/domain/clinic"
	"github.com/maidige/consultation-admin/pkg/common/validate"
)

func (a *App) analysisCommand() *cobra.Command {
	var kindFlag string

	cmd := &cobra.Command{
		Use:   "analysis",
		Short: "Review pre-surgery and OrthoK analysis reports",
	}
	cmd.PersistentFlags().StringVar(&kindFlag, "kind", string(clinic.AnalysisPreSurgery), "presurgery or orthok")

	// kind resolves the flag and checks the matching read permission.
	kind := func() (clinic.AnalysisKind, error) {
		k, err := clinic.ParseAnalysisKind(kindFlag)
		if err != nil {
			return "", err
		}
		if err := a.require("read", k.Subject()); err != nil {
			return "", err
		}
		return k, nil
	}

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show an analysis report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := kind()
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			r, err := a.client.AnalysisReport(ctxOf(cmd), k, id)
			if err != nil {
				return err
			}
			return a.render(r, func(w io.Writer) {
				row(w, "ID", r.ID)
				row(w, "KIND", k)
				row(w, "PATIENT", orDash(r.PatientName))
				row(w, "VISIT", orDash(r.VisitNumber))
				row(w, "STATUS", r.Status)
				row(w, "REPORT", orDash(r.ReportURL))
				row(w, "COMMENT", orDash(r.Comment))
			})
		},
	}

	confirm := &cobra.Command{
		Use:   "confirm <id>",
		Short: "Confirm a completed analysis report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := kind()
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := ctxOf(cmd)

			r, err := a.client.AnalysisReport(ctx, k, id)
			if err != nil {
				return err
			}
			if !r.Status.Confirmable() {
				return fmt.Errorf("%s report %d is %s and cannot be confirmed", k, id, r.Status)
			}

			msg, err := a.client.ConfirmAnalysisReport(ctx, k, id)
			if err != nil {
				return err
			}
			return a.message(msg, fmt.Sprintf("Confirmed %s report %d", k, id))
		},
	}

	var comment string
	modify := &cobra.Command{
		Use:   "modify <id>",
		Short: "Request changes to an analysis report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := kind()
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			m := clinic.Modification{Comment: comment}
			if err := validate.Struct(m); err != nil {
				return err
			}

			msg, err := a.client.RequestAnalysisModification(ctxOf(cmd), k, id, m)
			if err != nil {
				return err
			}
			return a.message(msg, fmt.Sprintf("Requested changes to %s report %d", k, id))
		},
	}
	modify.Flags().StringVar(&comment, "comment", "", "what needs to change")
	_ = modify.MarkFlagRequired("comment")

	cmd.AddCommand(get, confirm, modify)
	return cmd
}
