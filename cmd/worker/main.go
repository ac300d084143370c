package main

import (
	"log"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/spec-kit/workspace-tracker/internal/config"
	"github.com/spec-kit/workspace-tracker/internal/observability"
	"github.com/spec-kit/workspace-tracker/internal/queue"
	"github.com/spec-kit/workspace-tracker/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App, "worker")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
			Queues:      map[string]int{cfg.Queue.Queue: 1},
		},
	)

	registry := queue.NewHandlersRegistry()
	worker.NewNotificationWorker(logger).Register(registry)

	logger.Info("starting worker", zap.Int("concurrency", cfg.Queue.Concurrency), zap.String("queue", cfg.Queue.Queue))
	if err := srv.Run(registry.Mux()); err != nil {
		logger.Fatal("worker error", zap.Error(err))
	}
}
