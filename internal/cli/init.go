// Package cli provides the initialization shared by cmd/spendings,
// cmd/spendings-worker and cmd/spendings-cli.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"spendings/internal/amqp"
	"spendings/internal/backend"
	"spendings/internal/cache"
	"spendings/internal/config"
	"spendings/internal/log"
	"spendings/internal/report"
	"spendings/internal/services"
)

// SetupLogger builds the process logger at level and installs it as the
// slog default. An unknown level falls back to info with a warning.
func SetupLogger(level string, out io.Writer) *log.Logger {
	cfg := log.DefaultConfig()
	if out != nil {
		cfg.Output = out
	}
	parsed, err := log.ParseLevel(level)
	cfg.Level = parsed
	logger := log.New(cfg)
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", log.FieldError, err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InitBackend opens the configured record store. The caller closes the
// result.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) (*backend.BackendResult, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("initialize %s backend: %w", backendCfg.Type, err)
	}
	return result, nil
}

// InitAMQP dials the configured broker.
func InitAMQP(cfg *config.Config, logger *log.Logger) (*amqp.Client, error) {
	if !cfg.AMQPEnabled() {
		return nil, fmt.Errorf("AMQP is not configured (set AMQP_URL)")
	}
	client, err := amqp.NewClient(amqp.Config{
		URL:         cfg.AMQPURL,
		Exchange:    cfg.AMQPExchange,
		ImportQueue: cfg.AMQPImportQueue,
		EventsQueue: cfg.AMQPEventsQueue,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize AMQP client: %w", err)
	}
	return client, nil
}

// Ledger bundles a LedgerService with the cache manager that sweeps its
// report cache. Stop the manager on shutdown.
type Ledger struct {
	Service *services.LedgerService
	Caches  *cache.Manager
}

// NewLedger builds the ledger service for cfg on top of store. Pass a nil
// interface, not a typed nil, when there is no publisher.
func NewLedger(cfg *config.Config, store *backend.BackendResult, publisher services.EventPublisher, logger *log.Logger) *Ledger {
	reports := cache.NewLRUCache[report.Report](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	caches := cache.NewManager(logger)
	caches.Register(reports)
	if cfg.ReportCacheTTL > 0 {
		caches.StartCleanup(cfg.ReportCacheTTL)
	}

	opts := services.Options{
		FetchTimeout:  cfg.FetchTimeout,
		DefaultSource: cfg.InputSource,
		Reports:       reports,
		Publisher:     publisher,
		Logger:        logger,
	}
	if store != nil {
		opts.Store = store.Store
	}
	return &Ledger{Service: services.NewLedgerService(opts), Caches: caches}
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that is cancelled on SIGINT/SIGTERM or when parent is
// done, and a channel that is closed once cleanup has returned.
func GracefulShutdown(parent context.Context, logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
