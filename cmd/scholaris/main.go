package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/scholaris/scholaris/internal/app"
	"github.com/scholaris/scholaris/internal/observability"
	"github.com/scholaris/scholaris/internal/platform/cache"
	"github.com/scholaris/scholaris/jobs"
)

func main() {
	os.Exit(run())
}

// run owns every deferred cleanup so a failed startup still closes the stores.
func run() int {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("open stores", slog.String("driver", cfg.StoreDriver), slog.Any("error", err))
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
	params := app.RouterParams{
		Logger:   logger,
		Config:   cfg,
		Services: services,
		Metrics:  metrics,
	}

	if cfg.RedisAddr != "" {
		redisClient, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, job endpoints disabled", slog.Any("error", err))
		} else {
			_ = redisClient.Close()
			redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
			inspector := asynq.NewInspector(redisOpts)
			defer func() {
				if err := inspector.Close(); err != nil {
					logger.Warn("inspector close", slog.Any("error", err))
				}
			}()
			queue := jobs.NewClient(redisOpts)
			defer func() {
				if err := queue.Close(); err != nil {
					logger.Warn("queue client close", slog.Any("error", err))
				}
			}()
			params.QueueInspector = inspector
			params.QueueClient = queue
		}
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      app.NewRouter(params),
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", stores.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return 1
	}
	select {
	case <-serveErr:
		return 1
	default:
		return 0
	}
}
