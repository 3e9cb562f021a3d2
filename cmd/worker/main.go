package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/scholaris/scholaris/internal/app"
	jobmetrics "github.com/scholaris/scholaris/internal/jobs"
	"github.com/scholaris/scholaris/internal/observability"
	"github.com/scholaris/scholaris/internal/platform/cache"
	"github.com/scholaris/scholaris/jobs"
)

func main() {
	os.Exit(run())
}

func run() int {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}

	logger := app.NewLogger(cfg)

	if cfg.StoreDriver == app.StoreMemory {
		logger.Error("worker needs a shared store, STORE_DRIVER=memory is not supported")
		return 1
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		return 1
	}
	_ = redisClient.Close()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("open stores", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := stores.Close(context.Background()); err != nil {
			logger.Warn("close stores", slog.Any("error", err))
		}
	}()

	services, err := app.NewServices(cfg, stores, logger)
	if err != nil {
		logger.Error("init services", slog.Any("error", err))
		return 1
	}

	metrics := observability.NewMetrics()
	orphanJob := jobs.NewOrphanScanJob(services.Students, logger, jobmetrics.NewMetrics(metrics.Registerer()))
	orphanTask, err := jobs.NewOrphanScanTask("cron")
	if err != nil {
		logger.Error("build orphan scan task", slog.Any("error", err))
		return 1
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskOrphanScan, Handler: orphanJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.OrphanScanCron, Task: orphanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		return 1
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(), ReadTimeout: cfg.AppReadTimeout}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() { _ = metricsServer.Close() }()
	}

	logger.Info("starting worker", slog.String("orphan_scan_cron", cfg.OrphanScanCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		return 1
	}
	return 0
}
