// Package cli provides common initialization for cmd/fintrack and
// cmd/fintrack-worker.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fintrack/internal/config"
	applog "fintrack/internal/log"

	"github.com/joho/godotenv"
)

// ShutdownTimeout bounds graceful shutdown of servers and consumers.
const ShutdownTimeout = 30 * time.Second

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger installs the process logger described by cfg. The returned
// closer releases the log file, if any.
func SetupLogger(cfg *config.Config, component string) (*applog.Logger, io.Closer) {
	return applog.Setup(applog.Options{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		File:      cfg.LogFile,
		Component: component,
	})
}

// Bootstrap loads .env and the configuration, installs the logger and
// validates the configuration. It exits the process on validation failure.
func Bootstrap(component string) (*config.Config, *applog.Logger, io.Closer) {
	LoadEnvFile()
	cfg := config.Load()
	logger, closer := SetupLogger(cfg, component)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		_ = closer.Close()
		os.Exit(1)
	}
	return cfg, logger, closer
}

// ShutdownContext returns a context cancelled on SIGINT or SIGTERM.
func ShutdownContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
