// Package cli holds the process bootstrap shared by cmd/fintrack and
// cmd/fintrack-worker: environment, logger, config, SQLite and signals.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/config"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

// SetupLogger builds the process logger at the given LOG_LEVEL and makes
// it the slog default. An unknown level falls back to info with a warning.
func SetupLogger(level string) *applog.Logger {
	lvl, err := config.ParseLevel(level)
	cfg := applog.DefaultConfig()
	cfg.Level = lvl
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", applog.FieldError, err)
	}
	return logger
}

// LoadEnvFile reads .env when present. A missing file is normal outside
// local development.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// Fatal logs err and exits with status 1.
func Fatal(logger *applog.Logger, msg string, err error, args ...any) {
	logger.Error(msg, append([]any{applog.FieldError, err}, args...)...)
	os.Exit(1)
}

// LoadAndValidateConfig reads the environment and exits when any setting
// is invalid; every problem is reported at once.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		Fatal(logger, "Configuration validation failed", err)
	}
	logger.Debug("Configuration loaded",
		"backend", cfg.DataBackend,
		"port", cfg.Port,
		"page_size", cfg.PageSize,
		"chart_window", cfg.ChartWindow,
		"session_ttl", cfg.SessionTTL.String(),
		"max_sessions", cfg.MaxSessions)
	return cfg
}

// InitSQLite opens and migrates the database, exiting on failure.
func InitSQLite(logger *applog.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		Fatal(logger, "Failed to initialize SQLite repository", err, "path", dbPath)
	}
	logger.WithComponent(applog.ComponentStorage).Info("SQLite ready",
		"path", dbPath,
		"schema_version", repo.SchemaVersion())
	return repo
}

// GracefulShutdown cancels the returned context on SIGINT or SIGTERM,
// then runs cleanup with a deadline of timeout. The channel is closed
// once cleanup has returned.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		defer close(done)
		<-ctx.Done()
		stop()
		logger.Info("Shutdown signal received", applog.FieldOperation, applog.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached", "timeout", timeout.String())
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// WaitForShutdown blocks until the signal context is done and cleanup
// has finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
