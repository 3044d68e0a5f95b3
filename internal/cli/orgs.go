package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/maidige/consultation-admin/internal/domain/clinic"
	"github.com/maidige/consultation-admin/pkg/common/validate"
)

func (a *App) orgsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "orgs",
		Aliases: []string{"organizations"},
		Short:   "Browse the organization directory",
	}

	var q clinic.OrganizationQuery
	var typ int
	list := &cobra.Command{
		Use:   "list",
		Short: "List organizations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.require("", ""); err != nil {
				return err
			}
			if typ < 0 || typ > int(clinic.OrganizationChain) {
				return fmt.Errorf("invalid organization type %d (want 1, 2 or 3)", typ)
			}
			q.Type = clinic.OrganizationType(typ)
			if err := validate.Struct(q); err != nil {
				return err
			}

			orgs, err := a.client.ListOrganizations(ctxOf(cmd), q)
			if err != nil {
				return err
			}
			return a.render(orgs, func(w io.Writer) {
				row(w, "ID", "NAME", "TYPE")
				for _, o := range orgs {
					row(w, o.ID, o.Name, o.TypeName())
				}
			})
		},
	}
	list.Flags().IntVar(&typ, "type", int(clinic.OrganizationHospital), "1 clinic, 2 hospital, 3 chain")
	list.Flags().IntVar(&q.MaxResultCount, "max", 0, "maximum number of results")

	cmd.AddCommand(list)
	return cmd
}
