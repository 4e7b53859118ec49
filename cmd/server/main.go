package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/txnimport/internal/config"
	"github.com/JonMunkholm/txnimport/internal/core"
	"github.com/JonMunkholm/txnimport/internal/logging"
	"github.com/JonMunkholm/txnimport/internal/store/postgres"
	"github.com/JonMunkholm/txnimport/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"default_currency", cfg.Import.DefaultCurrency,
		"rate_limit_per_minute", cfg.Security.RateLimitPerMinute,
	)

	if cfg.Database.MigrateOnStart {
		if err := postgres.Migrate(cfg.Database.URL); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	pool, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	slog.Info("connected to database", "name", postgres.DatabaseName(cfg.Database.URL))

	store := postgres.New(pool)
	limiter := core.NewImportLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	service := core.NewService(store,
		core.WithDefaultCurrency(cfg.Import.DefaultCurrency),
		core.WithLimiter(limiter),
	)

	server := web.NewServer(service, cfg, store)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active imports to complete (with timeout)
		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
