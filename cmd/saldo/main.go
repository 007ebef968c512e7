package main

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"saldo/internal/cache"
	"saldo/internal/cli"
	apphttp "saldo/internal/http"
	"saldo/internal/log"
	"saldo/internal/services"
	"saldo/internal/worker"
)

const categoryCacheSize = 1024

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger(nil, log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	store := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()

	hub := apphttp.NewBalanceHub(logger)
	publishers := services.Publishers{hub}

	// Without a broker, alerts are evaluated in process.
	var alertWorker *worker.AlertWorker
	if amqpClient := cli.InitAMQP(ctx, logger, cfg, false); amqpClient != nil {
		defer amqpClient.Close()
		publishers = append(publishers, amqpClient)
	} else {
		alertWorker = worker.NewAlertWorker(store.Backend, store.Backend, logger, worker.AlertWorkerConfig{
			SweepInterval: cfg.AlertSweepInterval,
		})
		publishers = append(publishers, services.PublisherFunc(alertWorker.HandleEvent))
	}

	categories := cache.NewLRUCache[string](categoryCacheSize, cfg.CategoryCacheTTL)
	caches := cache.NewManager(logger)
	caches.Register("categories", categories)
	if cfg.CategoryCacheTTL > 0 {
		caches.StartCleanup(cfg.CategoryCacheTTL)
		defer caches.Stop()
	}

	opts := services.DefaultOptions()
	opts.MaxConflictRetries = cfg.MaxConflictRetries

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, apphttp.Deps{
		Budgets:    services.NewBudgetService(store.Backend, publishers, logger, opts),
		Ledger:     services.NewLedgerService(store.Backend, publishers, logger, categories, opts),
		Aggregator: services.NewAggregator(store.Backend),
		Alerts:     store.Backend,
		Health:     store.Backend,
		Hub:        hub,
		Auth:       apphttp.NewAuthenticator(cfg.JWTSecret),
		Logger:     logger,
	})

	if alertWorker != nil {
		if err := alertWorker.Start(ctx); err != nil {
			logger.Error("Failed to start alert worker", log.FieldError, err)
			os.Exit(1)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting saldo server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"in_process_alerts", alertWorker != nil)
		return srv.ListenAndServe()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if alertWorker != nil {
			if err := alertWorker.Stop(shutdownCtx); err != nil {
				logger.Warn("Alert worker stop failed", log.FieldError, err)
			}
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
