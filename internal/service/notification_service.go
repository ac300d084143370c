package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/workspace-tracker/internal/config"
	"github.com/spec-kit/workspace-tracker/internal/events"
	"github.com/spec-kit/workspace-tracker/internal/queue"
	"github.com/spec-kit/workspace-tracker/internal/repository"
)

// NotificationService turns domain events into queued email and webhook
// deliveries. Without an enqueuer the deliveries are only logged.
type NotificationService struct {
	dispatcher events.Dispatcher
	enqueuer   queue.Enqueuer
	users      repository.UserRepository
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service. enqueuer may be nil.
func NewNotificationService(dispatcher events.Dispatcher, enqueuer queue.Enqueuer, users repository.UserRepository, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		enqueuer:   enqueuer,
		users:      users,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventWorkspaceCreated, n.handleWorkspaceCreated)
	n.dispatcher.Subscribe(events.EventRoleAssigned, n.handleRoleAssigned)
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleWebhookOnly)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketDeleted, n.handleWebhookOnly)
}

func (n *NotificationService) handleWorkspaceCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.WorkspaceCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	subject := fmt.Sprintf("You administer the workspace %q", payload.Name)
	return n.notify(ctx, event, payload.AdminID, subject, "A workspace was created with you as its admin.")
}

func (n *NotificationService) handleRoleAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RoleAssignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	subject := fmt.Sprintf("You were given the %s role", payload.RoleName)
	return n.notify(ctx, event, payload.UserID, subject, "Your role in a workspace changed.")
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	if payload.NewAssigneeID == nil {
		return n.sendWebhook(ctx, event)
	}
	subject := fmt.Sprintf("Ticket assigned: %s", payload.Title)
	return n.notify(ctx, event, *payload.NewAssigneeID, subject, "A ticket was assigned to you.")
}

func (n *NotificationService) handleWebhookOnly(ctx context.Context, event events.Event) error {
	return n.sendWebhook(ctx, event)
}

// notify emails the user and fires the webhook.
func (n *NotificationService) notify(ctx context.Context, event events.Event, userID, subject, body string) error {
	if err := n.sendEmail(ctx, event, userID, subject, body); err != nil {
		return err
	}
	return n.sendWebhook(ctx, event)
}

func (n *NotificationService) sendEmail(ctx context.Context, event events.Event, userID, subject, body string) error {
	if n.users == nil || userID == "" {
		return nil
	}
	user, err := n.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load recipient %s: %w", userID, err)
	}
	payload := queue.EmailPayload{
		From:        n.cfg.EmailFrom,
		To:          user.Email,
		UserID:      user.ID,
		Subject:     subject,
		Body:        body,
		WorkspaceID: event.WorkspaceID,
		EventType:   string(event.Type),
	}
	if n.enqueuer == nil {
		n.logger.Info("email notification (stub)",
			zap.String("to", payload.To),
			zap.String("subject", payload.Subject),
			zap.String("event_id", event.ID),
		)
		return nil
	}
	if err := n.enqueuer.EnqueueEmail(ctx, payload); err != nil {
		return fmt.Errorf("enqueue email: %w", err)
	}
	return nil
}

func (n *NotificationService) sendWebhook(ctx context.Context, event events.Event) error {
	if n.cfg.WebhookURL == "" {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	payload := queue.WebhookPayload{
		URL:         n.cfg.WebhookURL,
		EventID:     event.ID,
		EventType:   string(event.Type),
		WorkspaceID: event.WorkspaceID,
		Body:        body,
	}
	if n.enqueuer == nil {
		n.logger.Info("webhook notification (stub)",
			zap.String("url", payload.URL),
			zap.String("event_type", payload.EventType),
			zap.String("event_id", event.ID),
		)
		return nil
	}
	if err := n.enqueuer.EnqueueWebhook(ctx, payload); err != nil {
		return fmt.Errorf("enqueue webhook: %w", err)
	}
	return nil
}
