package main

import (
	"context"
	"errors"
	"os"
	"time"

	"spendings/internal/cli"
	"spendings/internal/log"
	"spendings/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, os.Stdout)
	logger.Info("Starting spendings-worker", log.FieldOperation, log.OpStartup)

	store, err := cli.InitBackend(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Close()

	amqpClient, err := cli.InitAMQP(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ledger := cli.NewLedger(cfg, store, amqpClient, logger)
	defer ledger.Caches.Stop()

	importWorker := worker.NewImportWorker(ledger.Service, logger)
	if err := importWorker.StartupRestore(context.Background()); err != nil {
		// Don't exit - the next import replaces the state anyway
		logger.Error("Failed startup restore", log.FieldError, err)
	}

	parent, stop := context.WithCancel(context.Background())
	defer stop()
	ctx, done := cli.GracefulShutdown(parent, logger, 30*time.Second, nil)

	if cfg.ImportInterval > 0 {
		go importWorker.RunScheduled(ctx, cfg.ImportInterval)
	}

	go func() {
		if err := amqpClient.ConsumeImportRequests(ctx, importWorker.HandleImportRequest); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
		}
		stop()
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully", log.FieldOperation, log.OpShutdown)
}
