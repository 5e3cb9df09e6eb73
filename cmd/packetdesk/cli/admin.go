package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
		Long:  "Create admin accounts directly against the record store. Use this to bootstrap the first admin before registration requires a token. Run 'packetdesk db migrate' first on a new store.",
	}

	cmd.AddCommand(newAdminRegisterCmd())

	return cmd
}

// ---------- admin register ----------

func newAdminRegisterCmd() *cobra.Command {
	var (
		email    string
		password string
	)

	cmd := &cobra.Command{
		Use:     "register",
		Aliases: []string{"create"},
		Short:   "Register a new admin account",
		Example: `  packetdesk admin register --email admin@example.com --password 's3cret-pass'
  packetdesk admin register --email admin@example.com  # prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminRegister(cmd, email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted if omitted)")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runAdminRegister(cmd *cobra.Command, email, password string) error {
	out := cmd.OutOrStdout()

	if password == "" {
		pw, err := promptNewPassword(out, "Password: ")
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

	res := env.authSvc.RegisterAdmin(cmd.Context(), email, password)
	if err := resultError(res); err != nil {
		return fmt.Errorf("register admin: %w", err)
	}

	fmt.Fprintf(out, "Registered admin %q\n", res.User.Email)
	fmt.Fprintf(out, "  ID: %s\n", res.User.ID)
	return nil
}
