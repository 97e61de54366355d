package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"spendings/internal/cli"
	apphttp "spendings/internal/http"
	"spendings/internal/log"
	"spendings/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, os.Stdout)

	store, err := cli.InitBackend(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Close()

	// Import events are optional for the server; a broker outage must not
	// keep the API down.
	var publisher services.EventPublisher
	if cfg.AMQPEnabled() {
		client, err := cli.InitAMQP(cfg, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, import events disabled", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
		}
	}

	ledger := cli.NewLedger(cfg, store, publisher, logger)
	defer ledger.Caches.Stop()

	if err := ledger.Service.Restore(context.Background()); err != nil {
		logger.Warn("Starting without persisted records", log.FieldError, err)
	}

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:              ":" + cfg.Port,
		RequestsPerMinute: cfg.RateLimitPerMinute,
		AllowLocalSources: cfg.AllowLocalSources,
		TrustedProxies:    cfg.TrustedProxies,
	}, ledger.Service, logger)
	if err != nil {
		logger.Error("Failed to configure server", log.FieldError, err)
		os.Exit(1)
	}
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.FetchTimeout + 30*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(context.Background(), logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting spendings server", log.FieldOperation, log.OpStartup, "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
}
