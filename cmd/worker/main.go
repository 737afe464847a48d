package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/maintrack/maintrack/internal/app"
	jobmetrics "github.com/maintrack/maintrack/internal/jobs"
	"github.com/maintrack/maintrack/internal/platform/db"
	"github.com/maintrack/maintrack/internal/rbac"
	"github.com/maintrack/maintrack/internal/shared"
	"github.com/maintrack/maintrack/jobs"
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

	roles := rbac.NewService(rbac.NewPGRepository(pool), shared.NewAuditLogger(pool), logger)
	syncJob := jobs.NewRoleSyncJob(roles, logger, jobmetrics.NewMetrics(nil))

	var cron []jobs.CronRegistration
	if cfg.AdminSyncScheduled() {
		task, err := jobs.NewRoleSyncTask(cfg.AdminRole)
		if err != nil {
			logger.Error("build role sync task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: cfg.AdminSyncCron, Task: task})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRoleSync, Handler: syncJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("admin_sync", cfg.AdminSync), slog.String("admin_role", cfg.AdminRole))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
