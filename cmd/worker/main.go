package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/amicale/amicale/internal/app"
	"github.com/amicale/amicale/internal/ledger"
	"github.com/amicale/amicale/internal/platform/cache"
	"github.com/amicale/amicale/internal/platform/db"
	"github.com/amicale/amicale/internal/relance"
	"github.com/amicale/amicale/internal/synthesis"
	"github.com/amicale/amicale/jobs"
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

	reportCache := synthesis.NewCache(redisClient, cfg.SyntheseCacheTTL)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, logger, reportCache)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	relanceRepo := relance.NewRepository(pool)
	relanceService := relance.NewService(relanceRepo, jobsClient, logger)

	sendEmailJob := jobs.SendEmailJob{Sender: jobs.LogSender{Logger: logger}, Logger: logger}
	duesJob := jobs.NewDuesGenerateJob(ledgerService, logger)
	sweepJob := jobs.NewLateSweepJob(ledgerService, logger)
	relanceJob := jobs.NewRelanceScanJob(relanceService, logger)

	duesTask, err := jobs.NewDuesGenerateTask(jobs.DuesGeneratePayload{})
	if err != nil {
		logger.Error("build dues task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: sendEmailJob.Handle},
			{Type: jobs.TaskTypeDuesGenerate, Handler: duesJob.Handle},
			{Type: jobs.TaskTypeLateSweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskTypeRelanceScan, Handler: relanceJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			// First of the month: generate the month's cotisations.
			{Spec: "0 1 1 * *", Task: duesTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			// Nightly: mark overdue cotisations late, then scan for reminders.
			{Spec: "30 1 * * *", Task: jobs.NewLateSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 2 * * *", Task: jobs.NewRelanceScanTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
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
