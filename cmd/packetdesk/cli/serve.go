package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/faucetdb/packetdesk/internal/hasher"
	"github.com/faucetdb/packetdesk/internal/packet"
	"github.com/faucetdb/packetdesk/internal/recordstore"
	"github.com/faucetdb/packetdesk/internal/repo"
	"github.com/faucetdb/packetdesk/internal/server"
	"github.com/faucetdb/packetdesk/internal/server/middleware"
	"github.com/faucetdb/packetdesk/internal/service"
	"github.com/faucetdb/packetdesk/internal/session"
)

const banner = `
                 _        _      _           _
 _ __   __ _  ___| | _____| |_ __| | ___  ___| | __
| '_ \ / _' |/ __| |/ / _ \ __/ _' |/ _ \/ __| |/ /
| |_) | (_| | (__|   <  __/ || (_| |  __/\__ \   <
| .__/ \__,_|\___|_|\_\___|\__\__,_|\___||___/_|\_\
|_|
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the packetdesk API server",
		Long:  "Start the HTTP server that exposes admin sign-in and PDF packet assembly.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging, generated JWT secret)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(ctx context.Context, dev bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dev {
		cfg.Logging.Level = "debug"
	}
	logger := newLogger(cfg.Logging, os.Stderr)

	fmt.Print(banner)
	fmt.Println()

	// 1. Record store
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if err := recordstore.Migrate(ctx, store); err != nil {
		if !errors.Is(err, recordstore.ErrMigrateUnsupported) {
			store.Close()
			return fmt.Errorf("migrate record store: %w", err)
		}
		logger.Info("record store manages its own schema", "driver", cfg.Store.Driver)
	}
	logger.Info("record store initialized", "driver", cfg.Store.Driver,
		"dsn", recordstore.RedactDSN(cfg.Store.Driver, cfg.Store.DSN))

	// 2. Auth. The server holds no session slot of its own; each request
	// gets a fresh one in the handler.
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		if !dev {
			store.Close()
			return fmt.Errorf("auth.jwt_secret is required (set PACKETDESK_AUTH_JWT_SECRET or use --dev)")
		}
		jwtSecret = randomSecret()
		logger.Warn("no auth.jwt_secret configured, using a random secret; tokens will not survive a restart")
	}
	ttl, err := cfg.TokenTTL()
	if err != nil {
		store.Close()
		return err
	}
	authSvc := service.NewAuthService(
		repo.NewAdminUserRepo(store),
		hasher.NewBcrypt(),
		session.New(session.NewMemoryStorage()),
		logger,
	)
	tokens := service.NewTokenIssuer(jwtSecret, ttl)

	// 3. Packet client, only when a worker is configured
	deps := server.Deps{Store: store, AuthSvc: authSvc, Tokens: tokens}
	if cfg.Worker.URL != "" {
		pc, err := cfg.PacketClient()
		if err != nil {
			store.Close()
			return err
		}
		docs := packet.NewDirSource(cfg.Documents.Dir)
		client, err := packet.NewClient(pc, docs, logger)
		if err != nil {
			store.Close()
			return fmt.Errorf("packet client: %w", err)
		}
		client.RequestID = middleware.RequestIDOrNew
		deps.Packets = client
		deps.Documents = docs
		logger.Info("packet worker configured", "url", pc.WorkerURL, "documents", cfg.Documents.Dir)
	} else {
		logger.Warn("worker.url not set; packet endpoints are disabled")
	}

	// 4. HTTP server
	srvCfg, err := cfg.HTTPServer()
	if err != nil {
		store.Close()
		return err
	}
	srvCfg.Version = versionString()
	srv := server.New(srvCfg, deps, logger)

	fmt.Printf("→ packetdesk %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ OpenAPI:    http://%s:%d/openapi.json\n", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", srvCfg.Host, srvCfg.Port)
	if deps.Packets != nil {
		fmt.Printf("→ Packets:    http://%s:%d/api/v1/packets\n", srvCfg.Host, srvCfg.Port)
	}
	fmt.Println()

	return srv.ListenAndServe()
}

func randomSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
