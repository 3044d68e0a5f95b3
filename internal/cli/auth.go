package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/maidige/consultation-admin/internal/domain/clinic"
	"github.com/maidige/consultation-admin/internal/infra/consultapi"
	"github.com/maidige/consultation-admin/pkg/common/validate"
)

func (a *App) terminalPassword(prompt string) (string, error) {
	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(a.errOut, prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.errOut)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	if a.lines == nil {
		a.lines = bufio.NewReader(a.in)
	}
	line, err := a.lines.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// secret returns the flag value, prompting when it was not given.
func (a *App) secret(value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	return a.readPassword(prompt)
}

func (a *App) loginCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := ctxOf(cmd)

			pw, err := a.secret(password, "Password: ")
			if err != nil {
				return err
			}
			creds := consultapi.Credentials{Email: email, Password: pw}
			if err := validate.Struct(creds); err != nil {
				return err
			}

			res, err := a.client.Login(ctx, creds)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if res.AccessToken == "" {
				return fmt.Errorf("login failed: no access token returned")
			}
			if err := a.session.Save(res.AccessToken, &res.User); err != nil {
				return err
			}
			return a.message(res.Message, fmt.Sprintf("Signed in as %s", res.User.Name))
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *App) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the token and remove the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := ctxOf(cmd)

			var msg string
			if a.session.Token() != "" {
				m, err := a.client.Logout(ctx)
				if err != nil {
					// The local session is removed regardless.
					a.log.Warn(ctx, "Server logout failed", "err", err)
				}
				msg = m
			}
			if err := a.session.Clear(); err != nil {
				return err
			}
			return a.message(msg, "Signed out")
		},
	}
}

type whoami struct {
	clinic.User `yaml:",inline"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

func (a *App) whoamiCommand() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account and its permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.require("", ""); err != nil {
				return err
			}

			user := a.session.CurrentUser()
			if refresh || user == nil {
				u, err := a.client.Me(ctxOf(cmd))
				if err != nil {
					return err
				}
				if err := a.session.Save(a.session.Token(), u); err != nil {
					return err
				}
				user = u
			}

			out := whoami{User: *user}
			if exp, ok := a.session.ExpiresAt(); ok {
				out.ExpiresAt = &exp
			}

			return a.render(out, func(w io.Writer) {
				row(w, "ID", user.ID)
				row(w, "NAME", user.Name)
				row(w, "EMAIL", user.Email)
				row(w, "TYPE", user.UserType.OrDefault())
				row(w, "ADMIN", user.IsAdmin)
				if out.ExpiresAt != nil {
					row(w, "EXPIRES", humanize.Time(*out.ExpiresAt))
				}
				for _, ab := range user.Ability {
					row(w, "ABILITY", ab.Action+" "+ab.Subject)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "reload the account from the server")
	return cmd
}

func (a *App) passwordCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change or reset passwords",
	}
	cmd.AddCommand(a.passwordChangeCommand(), a.passwordResetCommand(), a.passwordBatchResetCommand())
	return cmd
}

func (a *App) passwordChangeCommand() *cobra.Command {
	var current, next string

	cmd := &cobra.Command{
		Use:   "change",
		Short: "Change your own password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.require("read", clinic.SubjectAuth); err != nil {
				return err
			}

			cur, err := a.secret(current, "Current password: ")
			if err != nil {
				return err
			}
			nw, err := a.secret(next, "New password: ")
			if err != nil {
				return err
			}
			in := clinic.PasswordChange{CurrentPassword: cur, NewPassword: nw, NewPasswordConfirmation: nw}
			if err := validate.Struct(in); err != nil {
				return err
			}

			msg, err := a.client.ChangePassword(ctxOf(cmd), in)
			if err != nil {
				return err
			}
			return a.message(msg, "Password changed")
		},
	}
	cmd.Flags().StringVar(&current, "current", "", "current password (prompted when omitted)")
	cmd.Flags().StringVar(&next, "new", "", "new password (prompted when omitted)")
	return cmd
}

func (a *App) passwordResetCommand() *cobra.Command {
	var email, next string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset another account's password (administrators only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireAdmin(); err != nil {
				return err
			}

			nw, err := a.secret(next, "New password: ")
			if err != nil {
				return err
			}
			in := clinic.PasswordReset{Email: email, NewPassword: nw, NewPasswordConfirmation: nw}
			if err := validate.Struct(in); err != nil {
				return err
			}

			msg, err := a.client.ResetPassword(ctxOf(cmd), in)
			if err != nil {
				return err
			}
			return a.message(msg, "Password reset for "+email)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&next, "new", "", "new password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *App) passwordBatchResetCommand() *cobra.Command {
	var emails []string
	var next string

	cmd := &cobra.Command{
		Use:   "batch-reset",
		Short: "Reset several accounts to the same password (administrators only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireAdmin(); err != nil {
				return err
			}

			nw, err := a.secret(next, "New password: ")
			if err != nil {
				return err
			}
			in := clinic.BatchPasswordReset{Emails: emails, NewPassword: nw, NewPasswordConfirmation: nw}
			if err := validate.Struct(in); err != nil {
				return err
			}

			res, err := a.client.BatchResetPassword(ctxOf(cmd), in)
			if err != nil {
				return err
			}
			return a.render(res, func(w io.Writer) {
				row(w, "RESET", res.SuccessCount)
				row(w, "FAILED", res.FailedCount)
				for _, e := range res.FailedEmails {
					row(w, "FAILED EMAIL", e)
				}
				if res.Message != "" {
					row(w, "MESSAGE", res.Message)
				}
			})
		},
	}
	cmd.Flags().StringSliceVar(&emails, "email", nil, "account emails (repeatable or comma separated)")
	cmd.Flags().StringVar(&next, "new", "", "new password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
