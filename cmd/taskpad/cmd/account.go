package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"taskpad/internal/app"
	"taskpad/internal/auth"
	"taskpad/internal/utils"
)

type identityJSON struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Initials string `json:"initials"`
}

func toIdentityJSON(id *auth.Identity) *identityJSON {
	if id == nil {
		return nil
	}
	return &identityJSON{ID: id.ID, Email: id.Email, Name: id.Name(), Initials: id.Initials()}
}

func newLoginCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login [email]",
		Short: "Sign in",
		Long:  "Sign in with an e-mail and password. The session is kept until 'taskpad logout'.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := password(cmd, secretReader(cmd), "Password: ")
			if err != nil {
				return err
			}
			return withApp(cmd, cfg, func(a *app.App) error {
				id, err := a.Session.Login(cmd.Context(), args[0], pw)
				if err != nil {
					return err
				}
				return printIdentity(cmd, stdout, "Logged in as", id)
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().String("password", "", "Password (prompted when omitted)")
	return cmd
}

func newRegisterCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register [email]",
		Short: "Create an account and sign in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			read := secretReader(cmd)
			pw, err := password(cmd, read, "Password: ")
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("password") {
				confirm, err := read("Confirm password: ")
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				if confirm != pw {
					return utils.ErrValidation("passwords do not match")
				}
			}
			return withApp(cmd, cfg, func(a *app.App) error {
				id, err := a.Session.Register(cmd.Context(), args[0], pw)
				if err != nil {
					return err
				}
				return printIdentity(cmd, stdout, "Registered and logged in as", id)
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().String("password", "", "Password (prompted twice when omitted)")
	return cmd
}

func printIdentity(cmd *cobra.Command, stdout io.Writer, prefix string, id *auth.Identity) error {
	if isJSON(cmd) {
		return writeJSON(stdout, toIdentityJSON(id))
	}
	_, _ = fmt.Fprintf(stdout, "%s %s <%s>\n", prefix, id.Name(), id.Email)
	return nil
}

func newLogoutCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(a *app.App) error {
				if err := a.Session.Logout(cmd.Context()); err != nil {
					return err
				}
				if isJSON(cmd) {
					return writeJSON(stdout, map[string]bool{"loggedIn": false})
				}
				_, _ = fmt.Fprintln(stdout, "Logged out")
				return nil
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func newWhoamiCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(a *app.App) error {
				id := a.Session.Current()
				if isJSON(cmd) {
					return writeJSON(stdout, map[string]any{"loggedIn": id != nil, "identity": toIdentityJSON(id)})
				}
				if id == nil {
					_, _ = fmt.Fprintln(stdout, "Not logged in")
					return nil
				}
				_, _ = fmt.Fprintf(stdout, "%s (%s) <%s>\n", id.Name(), id.Initials(), id.Email)
				return nil
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func newResetPasswordCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password [email]",
		Short: "Request password reset instructions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(a *app.App) error {
				if err := a.Session.ResetPassword(cmd.Context(), args[0]); err != nil {
					return err
				}
				if isJSON(cmd) {
					return writeJSON(stdout, map[string]string{"sent": args[0]})
				}
				_, _ = fmt.Fprintf(stdout, "Password reset instructions sent to %s\n", args[0])
				return nil
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}
