package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/faucetdb/packetdesk/internal/handler"
	"github.com/faucetdb/packetdesk/internal/openapi"
	"github.com/faucetdb/packetdesk/internal/recordstore"
	"github.com/faucetdb/packetdesk/internal/server/middleware"
	"github.com/faucetdb/packetdesk/internal/service"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host             string
	Port             int
	ShutdownTimeout  time.Duration
	CORSOrigins      []string
	BaseURL          string
	Version          string
	OpenRegistration bool // allow POST /admin/register without a token
	LoginRateLimit   int  // login attempts per IP per minute
	PacketRateLimit  int  // packet builds per token per minute
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		LoginRateLimit:  10,
		PacketRateLimit: 30,
	}
}

// Deps are the collaborators the server routes to.
type Deps struct {
	Store     recordstore.Store
	AuthSvc   *service.AuthService
	Tokens    *service.TokenIssuer
	Packets   handler.PacketBuilder
	Documents handler.DocumentLister // optional
}

// Server is the top-level HTTP server. It owns the Chi router, the record
// store handle and the authentication service.
type Server struct {
	cfg        Config
	deps       Deps
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Packet-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5, "application/json"))

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- OpenAPI document (no auth required) ---
	r.Get("/openapi.json", s.handleOpenAPI)

	authn := middleware.Authenticate(s.deps.Tokens)

	// --- API routes ---
	r.Route("/api/v1", func(r chi.Router) {
		adminHandler := handler.NewAdminHandler(s.deps.AuthSvc, s.deps.Tokens)

		r.Route("/admin", func(r chi.Router) {
			if s.cfg.OpenRegistration {
				r.Post("/register", adminHandler.Register)
			} else {
				r.With(authn).Post("/register", adminHandler.Register)
			}

			// Login is unauthenticated and throttled per client IP.
			r.With(limit(middleware.RateLimit, s.cfg.LoginRateLimit)...).Post("/session", adminHandler.Login)
			r.Delete("/session", adminHandler.Logout)

			r.Group(func(r chi.Router) {
				r.Use(authn)
				r.Get("/me", adminHandler.Me)
				r.Put("/password", adminHandler.ChangePassword)
			})
		})

		if s.deps.Packets != nil {
			packetHandler := handler.NewPacketHandler(s.deps.Packets, s.deps.Documents)
			r.Route("/packets", func(r chi.Router) {
				r.Use(authn)
				r.Get("/documents", packetHandler.ListDocuments)
				r.With(limit(middleware.RateLimitByToken, s.cfg.PacketRateLimit)...).Post("/", packetHandler.Build)
			})
		}
	})

	s.router = r
}

// limit returns the rate limiting middleware for n requests per minute, or
// none when n is not positive.
func limit(mw func(int) func(http.Handler) http.Handler, n int) []func(http.Handler) http.Handler {
	if n <= 0 {
		return nil
	}
	return []func(http.Handler) http.Handler{mw(n)}
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the admin record store
// is reachable, or 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if s.deps.Store == nil {
		checks["record_store"] = "error: not configured"
		status = "degraded"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.deps.Store.Ping(ctx); err != nil {
			checks["record_store"] = "error: " + err.Error()
			status = "degraded"
		} else {
			checks["record_store"] = "ok"
		}
	}

	if status != "ok" {
		httpStatus = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// handleOpenAPI serves the generated OpenAPI document.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	doc := openapi.Generate(openapi.Options{
		BaseURL:          s.cfg.BaseURL,
		Version:          s.cfg.Version,
		OpenRegistration: s.cfg.OpenRegistration,
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(doc)
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before closing the record store.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // packet generation can be slow
		IdleTimeout:  120 * time.Second,
	}

	// Start server in background goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if s.deps.Store != nil {
		if err := s.deps.Store.Close(); err != nil {
			s.logger.Warn("closing record store", "error", err)
		}
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
