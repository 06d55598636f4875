package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/ak-rocksdev/hyperbiz-core/internal/aging"
	"github.com/ak-rocksdev/hyperbiz-core/internal/app"
	"github.com/ak-rocksdev/hyperbiz-core/internal/banking"
	jobmetrics "github.com/ak-rocksdev/hyperbiz-core/internal/jobs"
	"github.com/ak-rocksdev/hyperbiz-core/internal/platform/cache"
	"github.com/ak-rocksdev/hyperbiz-core/internal/platform/db"
	"github.com/ak-rocksdev/hyperbiz-core/internal/shared"
	"github.com/ak-rocksdev/hyperbiz-core/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	locker := shared.NewLocker(redisClient, cfg.ReconLockTTL)

	agingService := aging.NewService(logger, aging.NewRepository(pool))
	bankingService := banking.NewService(logger, banking.NewRepository(pool), locker, shared.NewAuditLogger(pool), nil)

	metrics := jobmetrics.NewMetrics(nil)

	var cron []jobs.CronRegistration
	for _, currency := range strings.Split(cfg.AgingCurrencies, ",") {
		currency = strings.TrimSpace(currency)
		if currency == "" {
			continue
		}
		task, err := jobs.NewAgingRecalcTask(jobs.AgingRecalcPayload{Currency: currency})
		if err != nil {
			logger.Error("build aging recalc task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{
			Spec:    cfg.AgingRecalcCron,
			Task:    task,
			Options: []asynq.Option{asynq.MaxRetry(3)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAgingRecalc, Handler: jobs.NewAgingRecalcHandler(logger, agingService, metrics)},
			{Type: jobs.TaskBankRestate, Handler: jobs.NewBankRestateHandler(logger, bankingService, metrics)},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
