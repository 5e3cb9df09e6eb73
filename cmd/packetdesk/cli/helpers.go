package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/faucetdb/packetdesk/internal/config"
	"github.com/faucetdb/packetdesk/internal/hasher"
	"github.com/faucetdb/packetdesk/internal/model"
	"github.com/faucetdb/packetdesk/internal/recordstore"
	"github.com/faucetdb/packetdesk/internal/repo"
	"github.com/faucetdb/packetdesk/internal/service"
	"github.com/faucetdb/packetdesk/internal/session"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from the --data-dir flag, the
// PACKETDESK_DATA_DIR env var, the config file, or ~/.packetdesk as fallback.
func resolveDataDir(fromConfig string) string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("PACKETDESK_DATA_DIR"); envDir != "" {
		return envDir
	}
	if fromConfig != "" {
		return fromConfig
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".packetdesk")
}

// newLogger builds the slog logger described by the logging section.
func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openStore opens the configured record store, creating the data directory
// first so a relative SQLite path has somewhere to live.
func openStore(ctx context.Context, cfg *config.YAMLConfig) (recordstore.Store, error) {
	rc, err := cfg.RecordStore()
	if err != nil {
		return nil, err
	}
	if rc.Driver == "sqlite" {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return recordstore.Open(ctx, rc)
}

// cliEnv is what the admin, auth and packet commands operate on: an
// AuthService whose session slot lives in the data directory, plus the
// record store when the command needs one.
type cliEnv struct {
	cfg     *config.YAMLConfig
	store   recordstore.Store
	authSvc *service.AuthService
	logger  *slog.Logger
}

func (e *cliEnv) Close() {
	if e.store != nil {
		e.store.Close()
	}
}

// errNoStore is what a session-only env returns for any repository call.
var errNoStore = errors.New("record store not opened")

// noStoreRepo backs the AuthService of a session-only env. Logout and the
// session queries never reach it.
type noStoreRepo struct{}

func (noStoreRepo) Create(context.Context, string, string) (*model.AdminUser, error) {
	return nil, errNoStore
}

func (noStoreRepo) FindByEmail(context.Context, string) (*model.AdminUser, error) {
	return nil, errNoStore
}

func (noStoreRepo) TouchLastLogin(context.Context, string, time.Time) error {
	return errNoStore
}

func (noStoreRepo) UpdatePasswordHash(context.Context, string, string) error {
	return errNoStore
}

// openSessionEnv loads the config and wires an AuthService over the session
// slot in <data_dir>/session only. The record store is not touched, so
// logout and status work while it is unreachable.
func openSessionEnv() (*cliEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Logging, os.Stderr)

	storage, err := session.NewFileStorage(cfg.SessionDir())
	if err != nil {
		return nil, fmt.Errorf("open session storage: %w", err)
	}
	authSvc := service.NewAuthService(noStoreRepo{}, hasher.NewBcrypt(), session.New(storage), logger)
	return &cliEnv{cfg: cfg, authSvc: authSvc, logger: logger}, nil
}

// openStoreEnv is openSessionEnv plus the record store. The schema is not
// created here; that is 'packetdesk db migrate'.
func openStoreEnv(ctx context.Context) (*cliEnv, error) {
	env, err := openSessionEnv()
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, env.cfg)
	if err != nil {
		return nil, err
	}
	env.store = store
	env.authSvc = env.authSvc.WithRepository(repo.NewAdminUserRepo(store))
	return env, nil
}

// resultError turns a failed Result into a CLI error.
func resultError(res service.Result) error {
	if res.Success {
		return nil
	}
	if res.Error == nil {
		return fmt.Errorf("operation failed")
	}
	return fmt.Errorf("%s: %s", res.Error.Kind, res.Error.Message)
}

// passwordInput is where prompts read from. Tests replace it.
var passwordInput io.Reader = os.Stdin

// lineReader buffers non-terminal input so consecutive prompts each get
// their own line.
var lineReader struct {
	src io.Reader
	r   *bufio.Reader
}

func readLine() (string, error) {
	if lineReader.src != passwordInput {
		lineReader.src = passwordInput
		lineReader.r = bufio.NewReader(passwordInput)
	}
	return lineReader.r.ReadString('\n')
}

// promptPassword reads a password without echo when stdin is a terminal,
// or a single line otherwise.
func promptPassword(out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	if f, ok := passwordInput.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := readLine()
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// promptNewPassword asks for a password twice and checks they match.
func promptNewPassword(out io.Writer, prompt string) (string, error) {
	pw, err := promptPassword(out, prompt)
	if err != nil {
		return "", err
	}
	confirm, err := promptPassword(out, "Confirm password: ")
	if err != nil {
		return "", err
	}
	if pw != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return pw, nil
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
