package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/Alba-Tab/backend-boutique/internal/app"
	"github.com/Alba-Tab/backend-boutique/internal/installment"
	"github.com/Alba-Tab/backend-boutique/internal/observability"
	"github.com/Alba-Tab/backend-boutique/internal/platform/db"
	"github.com/Alba-Tab/backend-boutique/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	if cfg.TestMode {
		logger.Info("test mode detected, skipping worker startup")
		return
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, MinConns: cfg.PGMinConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := observability.NewMetrics()
	installmentStore := installment.NewStore(pool)
	overdueJob := jobs.NewOverdueScanJob(installmentStore, logger, metrics)
	notifyHandlers := jobs.NewNotifyHandlers(logger)

	overdueTask, err := jobs.NewOverdueScanTask(jobs.OverdueScanPayload{ReminderDays: cfg.OverdueReminderDays})
	if err != nil {
		logger.Error("build overdue scan task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSaleCompleted, Handler: notifyHandlers.HandleSaleCompleted},
			{Type: jobs.TaskTypeLowStockAlert, Handler: notifyHandlers.HandleLowStock},
			{Type: jobs.TaskTypeOverdueScan, Handler: overdueJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.OverdueScanCron, Task: overdueTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
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
