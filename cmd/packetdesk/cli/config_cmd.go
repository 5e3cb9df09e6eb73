package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/faucetdb/packetdesk/internal/config"
	"github.com/faucetdb/packetdesk/internal/recordstore"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage packetdesk configuration",
		Long:  "Initialize a default configuration file or display the current effective configuration.",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

// ---------- config init ----------

func newConfigInitCmd() *cobra.Command {
	var (
		force bool
		path  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default packetdesk.yaml configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteDefaultConfig(path, force); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created %s\n", path)
			fmt.Fprintln(out, "Set auth.jwt_secret and worker.url, then run 'packetdesk serve'.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config file")
	cmd.Flags().StringVarP(&path, "output", "o", config.DefaultFileName, "Path of the file to write")

	return cmd
}

// ---------- config show ----------

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			configFile := viper.ConfigFileUsed()
			if configFile != "" {
				fmt.Fprintf(out, "Config file: %s\n", configFile)
			} else {
				fmt.Fprintln(out, "Config file: (none found, using defaults)")
			}
			fmt.Fprintln(out)

			settings := flatten("", viper.AllSettings())
			keys := make([]string, 0, len(settings))
			for k := range settings {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			driver := viper.GetString("store.driver")
			for _, k := range keys {
				fmt.Fprintf(out, "  %s: %v\n", k, redactSetting(k, settings[k], driver))
			}
			return nil
		},
	}
}

func flatten(prefix string, m map[string]interface{}) map[string]interface{} {
	flat := make(map[string]interface{})
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]interface{}); ok {
			for sk, sv := range flatten(key, sub) {
				flat[sk] = sv
			}
			continue
		}
		flat[key] = v
	}
	return flat
}

// redactSetting hides secrets and DSN passwords.
func redactSetting(key string, value interface{}, driver string) interface{} {
	s, ok := value.(string)
	if !ok || s == "" {
		return value
	}
	switch {
	case key == "store.dsn":
		return recordstore.RedactDSN(driver, s)
	case strings.HasSuffix(key, "secret"), strings.HasSuffix(key, "token"), strings.HasSuffix(key, "api_key"):
		return "********"
	}
	return value
}
