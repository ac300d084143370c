package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/spec-kit/workspace-tracker/internal/queue"
)

// NotificationWorker delivers queued notifications. Delivery is log-backed:
// emails and webhooks are written to the log instead of leaving the process.
type NotificationWorker struct {
	logger *zap.Logger
}

// NewNotificationWorker constructs the worker.
func NewNotificationWorker(logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{logger: logger}
}

// Register routes notification task types to the worker.
func (w *NotificationWorker) Register(registry *queue.HandlersRegistry) {
	registry.Register(queue.TypeEmailDeliver, asynq.HandlerFunc(w.ProcessEmail))
	registry.Register(queue.TypeWebhookDeliver, asynq.HandlerFunc(w.ProcessWebhook))
}

// ProcessEmail handles queue.TypeEmailDeliver.
func (w *NotificationWorker) ProcessEmail(ctx context.Context, t *asynq.Task) error {
	var payload queue.EmailPayload
	if err := queue.Decode(t, &payload); err != nil {
		return err
	}
	if payload.To == "" {
		return fmt.Errorf("email without recipient: %w", asynq.SkipRetry)
	}
	w.logger.Info("email delivered",
		zap.String("from", payload.From),
		zap.String("to", payload.To),
		zap.String("subject", payload.Subject),
		zap.String("event_type", payload.EventType),
		zap.String("workspace_id", payload.WorkspaceID),
	)
	return nil
}

// ProcessWebhook handles queue.TypeWebhookDeliver.
func (w *NotificationWorker) ProcessWebhook(ctx context.Context, t *asynq.Task) error {
	var payload queue.WebhookPayload
	if err := queue.Decode(t, &payload); err != nil {
		return err
	}
	if payload.URL == "" {
		return fmt.Errorf("webhook without url: %w", asynq.SkipRetry)
	}
	w.logger.Info("webhook delivered",
		zap.String("url", payload.URL),
		zap.String("event_id", payload.EventID),
		zap.String("event_type", payload.EventType),
		zap.Int("bytes", len(payload.Body)),
	)
	return nil
}
