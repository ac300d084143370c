package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/spec-kit/workspace-tracker/internal/config"
)

// Enqueuer accepts notification work for asynchronous delivery.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload EmailPayload) error
	EnqueueWebhook(ctx context.Context, payload WebhookPayload) error
}

// Client enqueues tasks on Redis through asynq.
type Client struct {
	client   *asynq.Client
	queue    string
	maxRetry int
}

// RedisOpt builds the asynq connection options from the Redis settings.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewClient connects an enqueue-only client.
func NewClient(redisCfg config.RedisConfig, queueCfg config.QueueConfig) *Client {
	return &Client{
		client:   asynq.NewClient(RedisOpt(redisCfg)),
		queue:    queueCfg.Queue,
		maxRetry: queueCfg.MaxRetry,
	}
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) EnqueueEmail(ctx context.Context, payload EmailPayload) error {
	return c.enqueue(ctx, TypeEmailDeliver, payload, asynq.Timeout(30*time.Second))
}

func (c *Client) EnqueueWebhook(ctx context.Context, payload WebhookPayload) error {
	return c.enqueue(ctx, TypeWebhookDeliver, payload, asynq.Timeout(15*time.Second))
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) error {
	task, err := NewTask(taskType, payload)
	if err != nil {
		return err
	}
	opts = append(opts, asynq.Queue(c.queue), asynq.MaxRetry(c.maxRetry))
	if _, err := c.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
