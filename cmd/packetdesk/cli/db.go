package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/faucetdb/packetdesk/internal/recordstore"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "db",
		Aliases: []string{"store"},
		Short:   "Manage the admin record store",
		Long: `Create the admin_users table and check connectivity of the configured record store.

Supported drivers: ` + strings.Join(recordstore.Drivers(), ", "),
	}

	cmd.AddCommand(newDBMigrateCmd())
	cmd.AddCommand(newDBPingCmd())

	return cmd
}

// ---------- db migrate ----------

func newDBMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the admin_users table if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if err := recordstore.Migrate(ctx, store); err != nil {
				if errors.Is(err, recordstore.ErrMigrateUnsupported) {
					fmt.Fprintf(out, "Driver %q manages its own schema; nothing to migrate.\n", cfg.Store.Driver)
					return nil
				}
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(out, "Record store %q is up to date.\n", cfg.Store.Driver)
			return nil
		},
	}
}

// ---------- db ping ----------

func newDBPingCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:     "ping",
		Aliases: []string{"test"},
		Short:   "Check the record store is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			start := time.Now()
			if err := store.Ping(ctx); err != nil {
				return fmt.Errorf("ping %s: %w", cfg.Store.Driver, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Record store %q OK (%s, %s)\n",
				cfg.Store.Driver,
				recordstore.RedactDSN(cfg.Store.Driver, cfg.Store.DSN),
				time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Connection timeout")

	return cmd
}
