package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workspace-tracker/internal/config"
	"github.com/spec-kit/workspace-tracker/internal/events"
	"github.com/spec-kit/workspace-tracker/internal/queue"
)

type recordingEnqueuer struct {
	emails   []queue.EmailPayload
	webhooks []queue.WebhookPayload
}

func (r *recordingEnqueuer) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	r.emails = append(r.emails, p)
	return nil
}

func (r *recordingEnqueuer) EnqueueWebhook(_ context.Context, p queue.WebhookPayload) error {
	r.webhooks = append(r.webhooks, p)
	return nil
}

func TestNotificationsQueuedAfterAssignment(t *testing.T) {
	h := newHarness(t)
	enqueuer := &recordingEnqueuer{}
	notifier := NewNotificationService(h.dispatcher, enqueuer, h.repos.Users, nil, config.NotificationConfig{
		EmailFrom:  "tracker@example.com",
		WebhookURL: "https://hooks.example.com/tracker",
	})
	notifier.RegisterHandlers()

	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")
	require.Len(t, enqueuer.emails, 1)
	assert.Equal(t, "Acme-admin@example.com", enqueuer.emails[0].To)
	assert.Equal(t, string(events.EventWorkspaceCreated), enqueuer.emails[0].EventType)

	user := h.member(t, "user@example.com")
	member := h.roleNamed(t, ws.Workspace.ID, "Member")
	_, err := h.assignments.SetUserRole(ctx, admin, ws.Workspace.ID, user.UserID, member.ID)
	require.NoError(t, err)

	createTicket(t, h, admin, ws.Workspace.ID, TicketCreateInput{AssignedTo: &user.UserID})

	require.Len(t, enqueuer.emails, 3)
	assert.Equal(t, "user@example.com", enqueuer.emails[1].To)
	assert.Equal(t, "tracker@example.com", enqueuer.emails[1].From)
	assert.Equal(t, string(events.EventTicketAssigned), enqueuer.emails[2].EventType)

	// workspace_created, role_assigned, ticket_created, ticket_assigned
	require.Len(t, enqueuer.webhooks, 4)
	var body events.Event
	require.NoError(t, json.Unmarshal(enqueuer.webhooks[2].Body, &body))
	assert.Equal(t, events.EventTicketCreated, body.Type)
	assert.NotEmpty(t, body.ID)
}

func TestNotificationsWithoutQueueOnlyLog(t *testing.T) {
	h := newHarness(t)
	notifier := NewNotificationService(h.dispatcher, nil, h.repos.Users, nil, config.NotificationConfig{WebhookURL: "https://hooks.example.com"})
	notifier.RegisterHandlers()

	ws, admin := h.workspace(t, "Acme")
	ticket := createTicket(t, h, admin, ws.Workspace.ID, TicketCreateInput{})
	require.NoError(t, h.tickets.DeleteTicket(context.Background(), admin, ws.Workspace.ID, ticket.ID))
}
