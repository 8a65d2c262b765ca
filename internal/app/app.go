// Package app wires configuration, the engine session and the HTTP server.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver

	"duck-gateway/internal/api"
	"duck-gateway/internal/config"
	"duck-gateway/internal/engine"
	"duck-gateway/internal/middleware"
	"duck-gateway/internal/preflight"
)

// ShutdownTimeout bounds graceful shutdown of the HTTP server.
const ShutdownTimeout = 15 * time.Second

// App holds the fully wired gateway.
type App struct {
	Config  *config.Config
	DB      *sql.DB
	Session *engine.Session
	Handler http.Handler
	logger  *slog.Logger
}

// New resolves the attachment plan, opens the in-process engine and builds
// the router. The engine is not initialized until the first request.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	plan, err := engine.Resolve(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve attachment plan: %w", err)
	}

	opts, err := SessionOptions(cfg, logger)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	// One connection: USE and SET are per connection in DuckDB.
	db.SetMaxOpenConns(1)

	session := engine.NewSession(db, plan, opts)

	routerOpts := api.RouterOptions{
		APIToken:           cfg.APIToken,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:             logger,
	}
	if cfg.RateLimitRPS > 0 {
		routerOpts.RateLimit = &middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		}
	}

	return &App{
		Config:  cfg,
		DB:      db,
		Session: session,
		Handler: api.NewRouter(session, routerOpts),
		logger:  logger,
	}, nil
}

// SessionOptions builds engine options from cfg, including preflight probes
// when PREFLIGHT_CHECKS is enabled.
func SessionOptions(cfg *config.Config, logger *slog.Logger) (engine.Options, error) {
	opts := engine.Options{
		ExtensionDir:  cfg.ExtensionDir,
		HomeDirectory: cfg.HomeDirectory,
		Logger:        logger,
	}
	if !cfg.PreflightChecks {
		return opts, nil
	}
	checks, err := preflight.FromConfig(cfg)
	if err != nil {
		return opts, fmt.Errorf("preflight: %w", err)
	}
	if len(checks) > 0 {
		opts.Preflight = preflight.Func(checks, logger.With("component", "preflight"))
	}
	return opts, nil
}

// Close releases the engine connection.
func (a *App) Close() error {
	return a.DB.Close()
}

// Serve runs the HTTP server until ctx is canceled, then shuts it down
// gracefully.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.ListenAddr,
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP API listening", "addr", a.Config.ListenAddr,
			"auth", a.Config.AuthEnabled(),
			"backend", a.Session.Plan().Backend.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
