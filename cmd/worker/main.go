package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/mealpoint/mealpoint/internal/app"
	"github.com/mealpoint/mealpoint/internal/canteen"
	"github.com/mealpoint/mealpoint/internal/platform/db"
	"github.com/mealpoint/mealpoint/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	canteenRepo := canteen.NewRepository(pool)
	canteenService := canteen.NewService(canteenRepo)

	unlockTask, err := jobs.NewAutoUnlockTask()
	if err != nil {
		logger.Error("build auto unlock task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCanteenAutoUnlock, Handler: jobs.NewAutoUnlockHandler(logger, canteenService)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: jobs.AutoUnlockCronSpec, Task: unlockTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
