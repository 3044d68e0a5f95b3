package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maidige/consultation-admin/internal/domain/clinic"
	"github.com/maidige/consultation-admin/pkg/common/validate"
)

// requireStaffAdmin gates account management: administrators holding the
// manage permission on doctors.
func (a *App) requireStaffAdmin() error {
	if err := a.requireAdmin(); err != nil {
		return err
	}
	return a.require(clinic.ActionManage, clinic.SubjectDoctor)
}

func orgNames(orgs []clinic.OrganizationRef) string {
	if len(orgs) == 0 {
		return "-"
	}
	names := make([]string, 0, len(orgs))
	for _, o := range orgs {
		names = append(names, o.Name)
	}
	return strings.Join(names, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// staffFlags are the fields shared by doctor and counselor writes.
type staffFlags struct {
	name     string
	email    string
	password string
	orgIDs   []int64
	inactive bool
}

func (f *staffFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.name, "name", "", "display name")
	fl.StringVar(&f.email, "email", "", "login email")
	fl.StringVar(&f.password, "password", "", "initial password")
	fl.Int64SliceVar(&f.orgIDs, "org", nil, "organization ids (repeatable)")
	fl.BoolVar(&f.inactive, "inactive", false, "create or mark the account disabled")
}

func (a *App) staffListFlags(cmd *cobra.Command, q *clinic.StaffQuery) {
	fl := cmd.Flags()
	fl.IntVar(&q.Page, "page", 1, "page number")
	fl.IntVar(&q.PerPage, "per-page", clinic.DefaultPageSize, "records per page")
	fl.StringVar(&q.Search, "search", "", "name or email")
}

func (a *App) doctorsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "doctors",
		Aliases: []string{"doctor"},
		Short:   "Manage doctor accounts (administrators only)",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			return a.requireStaffAdmin()
		},
	}

	var q clinic.StaffQuery
	list := &cobra.Command{
		Use:   "list",
		Short: "List doctors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validate.Struct(q); err != nil {
				return err
			}
			doctors, total, err := a.client.ListDoctors(ctxOf(cmd), q)
			if err != nil {
				return err
			}
			out := map[string]any{"doctors": doctors, "total": total}
			return a.render(out, func(w io.Writer) {
				row(w, "ID", "NAME", "EMAIL", "ROLE", "ORGANIZATIONS", "ACTIVE", "ADMIN")
				for _, d := range doctors {
					orgs := d.Organizations
					if len(orgs) == 0 && d.Organization != nil {
						orgs = []clinic.OrganizationRef{*d.Organization}
					}
					row(w, d.ID, d.Name, d.Email, d.RoleName(), orgNames(orgs), yesNo(d.IsActive), yesNo(d.IsAdmin))
				}
				fmt.Fprintf(w, "\n%d total\n", total)
			})
		},
	}
	a.staffListFlags(list, &q)

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one doctor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			d, err := a.client.GetDoctor(ctxOf(cmd), id)
			if err != nil {
				return err
			}
			return a.render(d, func(w io.Writer) {
				row(w, "ID", d.ID)
				row(w, "NAME", d.Name)
				row(w, "EMAIL", d.Email)
				row(w, "ROLE", d.RoleName())
				row(w, "ORGANIZATIONS", orgNames(d.Organizations))
				row(w, "ACTIVE", yesNo(d.IsActive))
				row(w, "ADMIN", yesNo(d.IsAdmin))
			})
		},
	}

	roles := &cobra.Command{
		Use:   "roles",
		Short: "List assignable doctor roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rs, err := a.client.DoctorRoleOptions(ctxOf(cmd))
			if err != nil {
				return err
			}
			return a.render(rs, func(w io.Writer) {
				row(w, "ID", "NAME", "DESCRIPTION")
				for _, r := range rs {
					row(w, r.ID, r.Name, orDash(r.Description))
				}
			})
		},
	}

	var sf staffFlags
	var roleID int64
	save := func(cmd *cobra.Command, id int64) error {
		in := clinic.DoctorInput{
			ID:           id,
			DoctorRoleID: roleID,
			Name:         sf.name,
			Email:        sf.email,
			Password:     sf.password,
			OrgIDs:       sf.orgIDs,
			IsActive:     !sf.inactive,
		}
		if in.Password != "" {
			in.PasswordConfirmation = in.Password
		}
		if err := validate.Struct(in); err != nil {
			return err
		}
		msg, err := a.client.SaveDoctor(ctxOf(cmd), in)
		if err != nil {
			return err
		}
		return a.message(msg, "Doctor saved")
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a doctor",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, _ []string) error { return save(cmd, 0) },
	}
	sf.register(create)
	create.Flags().Int64Var(&roleID, "role", 0, "doctor role id (see \"doctors roles\")")

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a doctor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return save(cmd, id)
		},
	}
	sf.register(update)
	update.Flags().Int64Var(&roleID, "role", 0, "doctor role id (see \"doctors roles\")")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a doctor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := ctxOf(cmd)

			d, err := a.client.GetDoctor(ctx, id)
			if err != nil {
				return err
			}
			if !d.Deletable() {
				return fmt.Errorf("doctor %d is an administrator and cannot be deleted", id)
			}

			msg, err := a.client.DeleteDoctor(ctx, id)
			if err != nil {
				return err
			}
			return a.message(msg, fmt.Sprintf("Deleted doctor %d", id))
		},
	}

	cmd.AddCommand(list, get, roles, create, update, del)
	return cmd
}

func (a *App) counselorsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "counselors",
		Aliases: []string{"counselor"},
		Short:   "Manage counselor accounts (administrators only)",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			return a.requireStaffAdmin()
		},
	}

	var q clinic.StaffQuery
	list := &cobra.Command{
		Use:   "list",
		Short: "List counselors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validate.Struct(q); err != nil {
				return err
			}
			counselors, total, err := a.client.ListCounselors(ctxOf(cmd), q)
			if err != nil {
				return err
			}
			out := map[string]any{"counselors": counselors, "total": total}
			return a.render(out, func(w io.Writer) {
				row(w, "ID", "NAME", "EMAIL", "ORGANIZATIONS", "ACTIVE")
				for _, c := range counselors {
					row(w, c.ID, c.Name, c.Email, orgNames(c.Organizations), yesNo(c.IsActive))
				}
				fmt.Fprintf(w, "\n%d total\n", total)
			})
		},
	}
	a.staffListFlags(list, &q)

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one counselor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := a.client.GetCounselor(ctxOf(cmd), id)
			if err != nil {
				return err
			}
			return a.render(c, func(w io.Writer) {
				row(w, "ID", c.ID)
				row(w, "NAME", c.Name)
				row(w, "EMAIL", c.Email)
				row(w, "ORGANIZATIONS", orgNames(c.Organizations))
				row(w, "ACTIVE", yesNo(c.IsActive))
			})
		},
	}

	var sf staffFlags
	input := func(id int64) (clinic.CounselorInput, error) {
		in := clinic.CounselorInput{
			ID:       id,
			Name:     sf.name,
			Email:    sf.email,
			Password: sf.password,
			OrgIDs:   sf.orgIDs,
			IsActive: !sf.inactive,
		}
		if in.Password != "" {
			in.PasswordConfirmation = in.Password
		}
		return in, validate.Struct(in)
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a counselor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := input(0)
			if err != nil {
				return err
			}
			res, err := a.client.CreateCounselor(ctxOf(cmd), in)
			if err != nil {
				return err
			}
			return a.message(res.Message, "Counselor created")
		},
	}
	sf.register(create)

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a counselor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			in, err := input(id)
			if err != nil {
				return err
			}
			res, err := a.client.UpdateCounselor(ctxOf(cmd), in)
			if err != nil {
				return err
			}
			return a.message(res.Message, "Counselor updated")
		},
	}
	sf.register(update)

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a counselor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			msg, err := a.client.DeleteCounselor(ctxOf(cmd), id)
			if err != nil {
				return err
			}
			return a.message(msg, fmt.Sprintf("Deleted counselor %d", id))
		},
	}

	cmd.AddCommand(list, get, create, update, del)
	return cmd
}
