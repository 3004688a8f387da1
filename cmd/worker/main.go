// Package main is the entry point for the stockcore background worker.
// It drains activity-log tasks queued by the API server into PostgreSQL.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"stockcore/internal/app"
	"stockcore/internal/infrastructure/jobs"
	"stockcore/internal/infrastructure/storage/postgres"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := app.NewLogger(cfg).WithComponent("worker")
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting stockcore worker")

	poolCfg := cfg.PoolConfig()
	poolCfg.ApplicationName = "stockcore-worker"
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	activityRepo, err := postgres.NewActivityRepo(postgres.NewTxManager(pool))
	if err != nil {
		log.Fatalw("failed to create activity repo", "error", err)
	}

	worker := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskActivityLog, Handler: jobs.NewActivityLogJob(activityRepo).Handle},
		},
	})

	log.Infow("worker running", "redis", cfg.RedisAddr, "concurrency", cfg.WorkerConcurrency)
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorw("worker stopped with error", "error", err)
		return
	}
	log.Info("worker stopped")
}
