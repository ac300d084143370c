package http

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/workspace-tracker/internal/auth"
	"github.com/spec-kit/workspace-tracker/internal/config"
	apperrors "github.com/spec-kit/workspace-tracker/pkg/util/errorutil"
)

// RateLimiter counts requests per key within a fixed window.
type RateLimiter struct {
	client   *redis.Client
	requests int
	window   time.Duration
	prefix   string
	logger   *zap.Logger
}

// NewRateLimiter builds a Redis-backed fixed window limiter.
func NewRateLimiter(client *redis.Client, cfg config.RateLimitConfig, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		client:   client,
		requests: cfg.Requests,
		window:   cfg.Window(),
		prefix:   "ratelimit",
		logger:   logger,
	}
}

// Allow counts one hit for key and reports whether it fits in the window
// along with the hits left.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	bucket := time.Now().UnixNano() / int64(l.window)
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, bucket)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, l.requests, err
	}

	count := int(incr.Val())
	remaining := l.requests - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= l.requests, remaining, nil
}

// Anonymous limits requests without credentials by client IP. It runs before
// authentication. Requests carrying a bearer token are counted by PerUser.
func (l *RateLimiter) Anonymous(c *fiber.Ctx) error {
	if c.Get(fiber.HeaderAuthorization) != "" {
		return c.Next()
	}
	return l.limit(c, "ip:"+c.IP())
}

// PerUser limits authenticated callers by user id. It runs after
// authentication and falls back to the client IP without a principal.
func (l *RateLimiter) PerUser(c *fiber.Ctx) error {
	key := "ip:" + c.IP()
	if principal, ok := auth.PrincipalFromContext(c); ok && principal.User != nil {
		key = "user:" + principal.User.ID
	}
	return l.limit(c, key)
}

// limit counts the request against key. Redis failures let it through.
func (l *RateLimiter) limit(c *fiber.Ctx, key string) error {
	allowed, remaining, err := l.Allow(c.UserContext(), key)
	if err != nil {
		l.logger.Warn("rate limiter unavailable", zap.Error(err))
		return c.Next()
	}
	c.Set("X-RateLimit-Limit", strconv.Itoa(l.requests))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !allowed {
		return apperrors.NewRateLimited("too many requests", map[string]any{"window_seconds": int(l.window.Seconds())})
	}
	return c.Next()
}
