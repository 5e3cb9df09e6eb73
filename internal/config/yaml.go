// Package config defines the packetdesk configuration file and converts it
// into the settings each component needs.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/faucetdb/packetdesk/internal/packet"
	"github.com/faucetdb/packetdesk/internal/recordstore"
	"github.com/faucetdb/packetdesk/internal/server"
	"github.com/faucetdb/packetdesk/internal/service"
)

// DefaultFileName is the configuration file looked up in the working
// directory and the data directory.
const DefaultFileName = "packetdesk.yaml"

// YAMLConfig represents the top-level packetdesk configuration file. The
// mapstructure tags let viper decode into it with env overrides applied.
type YAMLConfig struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Worker    WorkerConfig    `yaml:"worker" mapstructure:"worker"`
	Documents DocumentsConfig `yaml:"documents" mapstructure:"documents"`
	DataDir   string          `yaml:"data_dir" mapstructure:"data_dir"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host" mapstructure:"host"`
	Port            int        `yaml:"port" mapstructure:"port"`
	BaseURL         string     `yaml:"base_url" mapstructure:"base_url"`
	ShutdownTimeout string     `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	LoginRateLimit  int        `yaml:"login_rate_limit" mapstructure:"login_rate_limit"`
	PacketRateLimit int        `yaml:"packet_rate_limit" mapstructure:"packet_rate_limit"`
	CORS            CORSConfig `yaml:"cors" mapstructure:"cors"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins" mapstructure:"origins"`
}

// AuthConfig controls authentication settings.
type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	TokenTTL         string `yaml:"token_ttl" mapstructure:"token_ttl"`
	OpenRegistration bool   `yaml:"open_registration" mapstructure:"open_registration"`
}

// StoreConfig selects and configures the admin record store.
type StoreConfig struct {
	Driver  string          `yaml:"driver" mapstructure:"driver"`
	DSN     string          `yaml:"dsn,omitempty" mapstructure:"dsn"`
	Schema  string          `yaml:"schema,omitempty" mapstructure:"schema"`
	BaseURL string          `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Service string          `yaml:"service,omitempty" mapstructure:"service"`
	APIKey  string          `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Timeout string          `yaml:"timeout,omitempty" mapstructure:"timeout"`
	Pool    *PoolYAMLConfig `yaml:"pool,omitempty" mapstructure:"pool"`
}

// PoolYAMLConfig controls the connection pool for SQL record stores.
type PoolYAMLConfig struct {
	MaxOpenConns    int    `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// WorkerConfig points at the PDF generation worker.
type WorkerConfig struct {
	URL     string `yaml:"url" mapstructure:"url"`
	Token   string `yaml:"token,omitempty" mapstructure:"token"`
	Timeout string `yaml:"timeout" mapstructure:"timeout"`
	MaxSize string `yaml:"max_size" mapstructure:"max_size"`
}

// DocumentsConfig locates the documents packets are assembled from.
type DocumentsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before parsing.
// Fields the file leaves out keep their defaults.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables: ${VAR_NAME}
	content := os.ExpandEnv(string(data))

	cfg := DefaultYAMLConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: "30s",
			LoginRateLimit:  10,
			PacketRateLimit: 30,
			CORS: CORSConfig{
				Origins: []string{"*"},
			},
		},
		Auth: AuthConfig{
			TokenTTL: "24h",
		},
		Store: StoreConfig{
			Driver:  "sqlite",
			DSN:     "packetdesk.db",
			Timeout: "30s",
		},
		Worker: WorkerConfig{
			Timeout: "60s",
			MaxSize: "25MB",
		},
		Documents: DocumentsConfig{
			Dir: "documents",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefaultConfig writes the default configuration to a YAML file. It
// refuses to overwrite an existing file unless force is set.
func WriteDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	data, err := yaml.Marshal(DefaultYAMLConfig())
	if err != nil {
		return err
	}
	header := "# packetdesk configuration\n# Secrets can reference the environment, e.g. jwt_secret: ${PACKETDESK_JWT_SECRET}\n\n"
	return os.WriteFile(path, append([]byte(header), data...), 0600)
}

// Validate checks the settings every command relies on.
func (c *YAMLConfig) Validate() error {
	var errs []error
	if c.Store.Driver == "" {
		errs = append(errs, errors.New("store.driver is required"))
	}
	for name, v := range map[string]string{
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"auth.token_ttl":          c.Auth.TokenTTL,
		"store.timeout":           c.Store.Timeout,
		"worker.timeout":          c.Worker.Timeout,
	} {
		if _, err := parseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if _, err := parseSize(c.Worker.MaxSize); err != nil {
		errs = append(errs, fmt.Errorf("worker.max_size: %w", err))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// RecordStore returns the record store settings. Relative sqlite paths are
// resolved against the data directory.
func (c *YAMLConfig) RecordStore() (recordstore.Config, error) {
	timeout, err := parseDuration(c.Store.Timeout)
	if err != nil {
		return recordstore.Config{}, fmt.Errorf("store.timeout: %w", err)
	}
	cfg := recordstore.Config{
		Driver:     strings.ToLower(c.Store.Driver),
		DSN:        c.Store.DSN,
		SchemaName: c.Store.Schema,
		BaseURL:    c.Store.BaseURL,
		Service:    c.Store.Service,
		APIKey:     c.Store.APIKey,
		Timeout:    timeout,
	}
	if cfg.Driver == "sqlite" && cfg.DSN != "" && cfg.DSN != ":memory:" &&
		!filepath.IsAbs(cfg.DSN) && !strings.HasPrefix(cfg.DSN, "file:") && c.DataDir != "" {
		cfg.DSN = filepath.Join(c.DataDir, cfg.DSN)
	}
	if p := c.Store.Pool; p != nil {
		cfg.MaxOpenConns = p.MaxOpenConns
		cfg.MaxIdleConns = p.MaxIdleConns
		if cfg.ConnMaxLifetime, err = parseDuration(p.ConnMaxLifetime); err != nil {
			return recordstore.Config{}, fmt.Errorf("store.pool.conn_max_lifetime: %w", err)
		}
	}
	return cfg, nil
}

// PacketClient returns the packet client settings.
func (c *YAMLConfig) PacketClient() (packet.Config, error) {
	timeout, err := parseDuration(c.Worker.Timeout)
	if err != nil {
		return packet.Config{}, fmt.Errorf("worker.timeout: %w", err)
	}
	maxBytes, err := parseSize(c.Worker.MaxSize)
	if err != nil {
		return packet.Config{}, fmt.Errorf("worker.max_size: %w", err)
	}
	return packet.Config{
		WorkerURL: c.Worker.URL,
		Token:     c.Worker.Token,
		Timeout:   timeout,
		MaxBytes:  maxBytes,
	}, nil
}

// HTTPServer returns the HTTP server settings.
func (c *YAMLConfig) HTTPServer() (server.Config, error) {
	shutdown, err := parseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return server.Config{}, fmt.Errorf("server.shutdown_timeout: %w", err)
	}
	cfg := server.DefaultConfig()
	cfg.Host = c.Server.Host
	cfg.Port = c.Server.Port
	cfg.BaseURL = c.Server.BaseURL
	cfg.OpenRegistration = c.Auth.OpenRegistration
	cfg.LoginRateLimit = c.Server.LoginRateLimit
	cfg.PacketRateLimit = c.Server.PacketRateLimit
	if shutdown > 0 {
		cfg.ShutdownTimeout = shutdown
	}
	if len(c.Server.CORS.Origins) > 0 {
		cfg.CORSOrigins = c.Server.CORS.Origins
	}
	return cfg, nil
}

// TokenTTL returns the bearer token lifetime, or the service default when
// unset.
func (c *YAMLConfig) TokenTTL() (time.Duration, error) {
	ttl, err := parseDuration(c.Auth.TokenTTL)
	if err != nil {
		return 0, fmt.Errorf("auth.token_ttl: %w", err)
	}
	if ttl <= 0 {
		ttl = service.DefaultTokenTTL
	}
	return ttl, nil
}

// SessionDir is where the CLI keeps its session slot.
func (c *YAMLConfig) SessionDir() string {
	return filepath.Join(c.DataDir, "session")
}

// parseDuration accepts "" as zero.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// parseSize accepts human sizes like "25MB" or "512KiB"; "" is zero.
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}
