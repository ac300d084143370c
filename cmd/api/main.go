package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/spec-kit/workspace-tracker/internal/app"
	"github.com/spec-kit/workspace-tracker/internal/config"
	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/observability"
	"github.com/spec-kit/workspace-tracker/internal/persistence"
	"github.com/spec-kit/workspace-tracker/internal/queue"
	"github.com/spec-kit/workspace-tracker/internal/repository"
	"github.com/spec-kit/workspace-tracker/internal/repository/memory"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App, "api")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := app.Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
	}

	if cfg.Postgres.DSN != "" {
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()
		defer pg.LogStats(logger)

		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		deps.Postgres = pg
		deps.Repos = repository.NewPostgres(pg.PoolHandle())
		deps.Transactor = persistence.NewPgTransactor(pg.PoolHandle(), cfg.Postgres.TxMaxRetries, logger)
	} else {
		logger.Warn("POSTGRES_DSN not set, using in-memory storage")
		store := memory.NewStore()
		deps.Repos = store.Repositories()
		deps.Transactor = store
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()
	deps.Redis = redis

	if cfg.Queue.Enabled {
		client := queue.NewClient(cfg.Redis, cfg.Queue)
		defer client.Close() //nolint:errcheck
		deps.Enqueuer = client
	}

	application := app.New(deps)

	if cfg.Auth.SeedAdminEmail != "" {
		if _, err := application.Auth.EnsureUser(ctx, "Super Admin", cfg.Auth.SeedAdminEmail, cfg.Auth.SeedAdminPassword, domain.UserTypeSuperAdmin); err != nil {
			logger.Fatal("failed to seed super admin", zap.Error(err))
		}
	}

	go func() {
		if err := application.Fiber.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = application.Fiber.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
