// Package cli provides the initialization steps shared by cmd/saldo and
// cmd/saldo-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"saldo/internal/amqp"
	"saldo/internal/backend"
	"saldo/internal/config"
	"saldo/internal/log"
)

// SetupLogger builds the process logger from cfg and makes it the slog
// default. A nil cfg yields the default text logger at info level.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	lc := log.DefaultConfig()
	lc.Component = component
	if cfg != nil {
		if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
			lc.Level = level
		}
		lc.Format = cfg.LogFormat
	}
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldErrorType, log.ErrorTypeConfiguration,
			log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend opens the configured store.
// Returns the backend or exits the process on failure.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.ErrorContext(ctx, "Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bc)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize backend",
			log.FieldErrorType, log.ErrorTypeDatabase,
			log.FieldError, err,
			"backend", bc.Type)
		os.Exit(1)
	}
	return res
}

// InitAMQP connects to the broker when AMQP_URL is set. It returns nil when
// messaging is disabled or unreachable and required is false; a required
// connection that fails exits the process.
func InitAMQP(ctx context.Context, logger *log.Logger, cfg *config.Config, required bool) *amqp.Client {
	if cfg.AMQPURL == "" {
		if required {
			logger.ErrorContext(ctx, "AMQP_URL is required",
				log.FieldErrorType, log.ErrorTypeConfiguration)
			os.Exit(1)
		}
		logger.InfoContext(ctx, "AMQP disabled, ledger events stay in process")
		return nil
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		if required {
			logger.ErrorContext(ctx, "Failed to initialize AMQP client",
				log.FieldErrorType, log.ErrorTypeNetwork,
				log.FieldError, err)
			os.Exit(1)
		}
		logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without it", log.FieldError, err)
		return nil
	}

	logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)
	return client
}

// ShutdownContext returns a context cancelled on SIGINT or SIGTERM.
func ShutdownContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)
	}()
	return ctx, stop
}
