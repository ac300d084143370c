package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/workspace-tracker/internal/config"
)

const redisDialCheck = 3 * time.Second

// Redis wraps the go-redis client shared by the rate limiter and the
// notification queue.
type Redis struct {
	Client *redis.Client
}

// NewRedis builds the client and checks reachability once. An unreachable
// server is only logged: rate limiting fails open until it comes back.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisDialCheck)
	defer cancel()
	fields := []zap.Field{zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB)}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable; rate limits disabled until it recovers", append(fields, zap.Error(err))...)
	} else {
		logger.Info("connected to redis", fields...)
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
