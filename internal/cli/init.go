// Package cli holds the start-up steps shared by every binary and the
// terminal rendering used by budgetctl.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dailybudget/internal/amqp"
	"dailybudget/internal/config"
	"dailybudget/internal/fx"
	"dailybudget/internal/log"
	"dailybudget/internal/storage"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// Start loads .env and the configuration, runs validate, and installs the
// configured logger as the default. It exits the process on failure.
func Start(component string, validate func(*config.Config) error) (*config.Config, *log.Logger) {
	LoadEnvFile()

	logger := log.New(log.ConfigFromStrings(component, "", ""))
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	if validate != nil {
		if err := validate(cfg); err != nil {
			logger.Error("Configuration validation failed", log.FieldError, err.Error())
			os.Exit(1)
		}
	}

	logger = log.New(log.ConfigFromStrings(component, cfg.LogLevel, cfg.LogFormat))
	log.SetDefault(logger)
	return cfg, logger
}

// OpenRepository opens and migrates the SQLite database, exiting on failure.
func OpenRepository(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err.Error(), "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// ConnectEvents dials the broker for ledger events. It returns nil when
// AMQP is not configured or unreachable, in which case movements are only
// stored.
func ConnectEvents(logger *log.Logger, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - ledger events will not be published")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without ledger events", log.FieldError, err.Error())
		return nil
	}
	logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// FXProvider builds the exchange-rate client. Without an API key it returns
// a nil Provider so refreshes fail with a missing-key error.
func FXProvider(cfg *config.Config) fx.Provider {
	if cfg.ExchangeRateAPIKey == "" {
		return nil
	}
	opts := []fx.Option{fx.WithTimeout(cfg.FXTimeout), fx.WithCacheTTL(cfg.FXCacheTTL)}
	if cfg.ExchangeRateBaseURL != "" {
		opts = append(opts, fx.WithBaseURL(cfg.ExchangeRateBaseURL))
	}
	return fx.New(cfg.ExchangeRateAPIKey, opts...)
}

// ShutdownContext is cancelled on SIGINT or SIGTERM, or by the returned
// cancel func.
func ShutdownContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// Cleanup runs fn with a fresh timeout, logging when it fails or overruns.
func Cleanup(logger *log.Logger, timeout time.Duration, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		logger.Error("Shutdown error", log.FieldError, err.Error())
		return
	}
	if ctx.Err() != nil {
		logger.Warn("Shutdown timeout reached")
		return
	}
	logger.Info("Shutdown complete")
}
