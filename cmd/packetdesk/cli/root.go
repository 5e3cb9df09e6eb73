package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/faucetdb/packetdesk/internal/config"
)

var (
	cfgFile    string
	appVersion string // set in Execute, reported by serve and openapi
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packetdesk",
		Short: "Admin sign-in and PDF packet assembly",
		Long: `packetdesk: admin sign-in and PDF packet assembly.

Admins register and log in against a record store (SQLite, PostgreSQL, MySQL,
SQL Server, Oracle, or a remote REST table API), then assemble selected documents
into a single PDF produced by an external generation worker.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./packetdesk.yaml)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for the SQLite store and CLI session (default: ~/.packetdesk)")
	cmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	cmd.PersistentFlags().String("log-format", "", "log format: text or json")
	viper.BindPFlag("logging.level", cmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logging.format", cmd.PersistentFlags().Lookup("log-format"))

	cobra.OnInitialize(initConfig)

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newAdminCmd())
	cmd.AddCommand(newAuthCmd())
	cmd.AddCommand(newPacketCmd())
	cmd.AddCommand(newOpenAPICmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newMCPCmd())

	return cmd
}

func initConfig() {
	viper.SetConfigType("yaml")
	setDefaults(viper.GetViper())

	viper.SetEnvPrefix("PACKETDESK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// The config file is optional.
	path := findConfigFile()
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	viper.SetConfigFile(path)
	if err := viper.ReadConfig(bytes.NewReader([]byte(os.ExpandEnv(string(data))))); err != nil {
		fmt.Fprintf(os.Stderr, "warning: ignoring config file %s: %v\n", path, err)
	}
}

// findConfigFile returns --config when given, otherwise the first
// packetdesk.yaml found in the working directory or ~/.packetdesk.
func findConfigFile() string {
	if cfgFile != "" {
		return cfgFile
	}
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".packetdesk"))
	}
	for _, dir := range dirs {
		for _, name := range []string{"packetdesk.yaml", "packetdesk.yml"} {
			p := filepath.Join(dir, name)
			if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
				return p
			}
		}
	}
	return ""
}

// setDefaults registers every key of the default config with v so env
// variables such as PACKETDESK_AUTH_JWT_SECRET override keys the file
// never mentions.
func setDefaults(v *viper.Viper) {
	data, err := yaml.Marshal(config.DefaultYAMLConfig())
	if err != nil {
		return
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return
	}
	setDefaultTree(v, "", tree)

	// omitempty keys are absent from the marshalled tree but still need
	// registering for env lookups.
	for _, k := range []string{"store.schema", "store.base_url", "store.service", "store.api_key", "worker.token"} {
		v.SetDefault(k, "")
	}
}

func setDefaultTree(v *viper.Viper, prefix string, tree map[string]interface{}) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]interface{}); ok {
			setDefaultTree(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// loadConfig decodes the effective configuration (defaults, file, env,
// flags) and validates it.
func loadConfig() (*config.YAMLConfig, error) {
	cfg := config.DefaultYAMLConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.DataDir = resolveDataDir(cfg.DataDir)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
