package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"saldo/internal/cli"
	"saldo/internal/log"
	"saldo/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger(nil, log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting saldo-worker")

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	store := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()

	amqpClient := cli.InitAMQP(ctx, logger, cfg, true)
	defer amqpClient.Close()

	alertWorker := worker.NewAlertWorker(store.Backend, store.Backend, logger, worker.AlertWorkerConfig{
		SweepInterval: cfg.AlertSweepInterval,
	})
	if err := alertWorker.Start(ctx); err != nil {
		logger.Error("Failed to start alert worker", log.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Consume until shutdown, reconnecting when the broker drops us.
		for {
			err := amqpClient.ConsumeLedgerEvents(gctx, alertWorker.HandleEvent)
			if gctx.Err() != nil {
				return nil
			}
			logger.Warn("Ledger event consumption stopped, reconnecting", log.FieldError, err)
			if err := amqpClient.Reconnect(gctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		}
	})

	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if stopErr := alertWorker.Stop(shutdownCtx); stopErr != nil {
		logger.Warn("Alert worker stop failed", log.FieldError, stopErr)
	}

	if err != nil {
		logger.Error("Worker failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
