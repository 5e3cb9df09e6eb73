package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Log in, log out and manage the CLI admin session",
		Long: `Manage the admin session used by CLI commands such as 'packetdesk packet build'.
The session is kept in the data directory until 'packetdesk auth logout'.`,
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthStatusCmd())
	cmd.AddCommand(newAuthPasswdCmd())

	return cmd
}

// ---------- auth login ----------

func newAuthLoginCmd() *cobra.Command {
	var (
		email    string
		password string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as an admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if password == "" {
				pw, err := promptPassword(out, "Password: ")
				if err != nil {
					return err
				}
				password = pw
			}

			env, err := openStoreEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			res := env.authSvc.LoginAdmin(cmd.Context(), email, password)
			if err := resultError(res); err != nil {
				return fmt.Errorf("login: %w", err)
			}
			fmt.Fprintf(out, "Logged in as %s\n", res.User.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted if omitted)")
	cmd.MarkFlagRequired("email")

	return cmd
}

// ---------- auth logout ----------

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the CLI admin session",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openSessionEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			env.authSvc.Logout()
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

// ---------- auth status ----------

func newAuthStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show who is logged in",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openSessionEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			out := cmd.OutOrStdout()
			current := env.authSvc.CurrentAdmin()

			if jsonOutput {
				info := map[string]interface{}{"logged_in": current != nil}
				if current != nil {
					info["user_id"] = current.UserID
					info["email"] = current.Email
					info["issued_at"] = current.IssuedAt.Format(time.RFC3339)
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			if current == nil {
				fmt.Fprintln(out, "Not logged in. Use 'packetdesk auth login' to start a session.")
				return nil
			}
			fmt.Fprintf(out, "Logged in as %s\n", current.Email)
			fmt.Fprintf(out, "  ID:     %s\n", current.UserID)
			fmt.Fprintf(out, "  Since:  %s\n", humanize.Time(current.IssuedAt))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// ---------- auth passwd ----------

func newAuthPasswdCmd() *cobra.Command {
	var (
		email       string
		oldPassword string
		newPassword string
	)

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change an admin password",
		Long:  "Change an admin password. Defaults to the logged-in admin when --email is omitted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			env, err := openStoreEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			if email == "" {
				current := env.authSvc.CurrentAdmin()
				if current == nil {
					return fmt.Errorf("not logged in; pass --email or run 'packetdesk auth login'")
				}
				email = current.Email
			}
			if oldPassword == "" {
				if oldPassword, err = promptPassword(out, "Current password: "); err != nil {
					return err
				}
			}
			if newPassword == "" {
				if newPassword, err = promptNewPassword(out, "New password: "); err != nil {
					return err
				}
			}

			res := env.authSvc.ChangePassword(cmd.Context(), email, oldPassword, newPassword)
			if err := resultError(res); err != nil {
				return fmt.Errorf("change password: %w", err)
			}
			fmt.Fprintf(out, "Password changed for %s\n", email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email (default: logged-in admin)")
	cmd.Flags().StringVar(&oldPassword, "old-password", "", "Current password (prompted if omitted)")
	cmd.Flags().StringVar(&newPassword, "new-password", "", "New password (prompted if omitted)")

	return cmd
}
