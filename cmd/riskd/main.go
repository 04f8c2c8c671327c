// Command riskd is the riskframe API service. It serves the respondent and
// administration routes over the registry and submission stores, and a
// health check.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riskframe/riskframe/internal/api"
	"github.com/riskframe/riskframe/internal/app"
	"github.com/riskframe/riskframe/internal/platform"
	"github.com/riskframe/riskframe/internal/platform/logger"
	"github.com/riskframe/riskframe/pkg/config"
	"github.com/riskframe/riskframe/pkg/scoring"
)

var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "riskd:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := os.Getenv(config.EnvPrefix + "_CONFIG")
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		path = config.FindConfigFile(wd)
	}
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := platform.InitTracing(ctx, platform.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     version,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Server.SeedDir != "" {
		if _, err := a.Seed(ctx, cfg.Server.SeedDir); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	db := a.DB
	handler := api.NewHandler(a.Registry, a.Submissions, api.Options{
		APIKey:         cfg.Server.APIKey,
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSOrigins:    cfg.Server.CORSOrigins,
		Logger:         log,
		HealthCheck:    db.PingContext,
	})
	if cfg.Server.APIKey == "" {
		log.Warn("admin routes are unauthenticated; set server.api_key")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting riskd", "addr", cfg.Server.Addr, "version", version, "engine_version", scoring.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	return nil
}
