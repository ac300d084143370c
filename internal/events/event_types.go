package events

import (
	"time"

	"github.com/spec-kit/workspace-tracker/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventWorkspaceCreated EventType = "workspace_created"
	EventRoleAssigned     EventType = "role_assigned"
	EventTicketCreated    EventType = "ticket_created"
	EventTicketAssigned   EventType = "ticket_assigned"
	EventTicketDeleted    EventType = "ticket_deleted"
)

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	WorkspaceID string    `json:"workspace_id"`
	TicketID    string    `json:"ticket_id,omitempty"`
	ActorID     string    `json:"actor_id"`
	Timestamp   time.Time `json:"timestamp"`
	Payload     any       `json:"payload"`
}

// WorkspaceCreatedPayload payload.
type WorkspaceCreatedPayload struct {
	Name    string `json:"name"`
	AdminID string `json:"admin_id"`
}

// RoleAssignedPayload payload.
type RoleAssignedPayload struct {
	UserID   string `json:"user_id"`
	RoleID   string `json:"role_id"`
	RoleName string `json:"role_name"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title      string                `json:"title"`
	Priority   domain.TicketPriority `json:"priority"`
	AssignedTo *string               `json:"assigned_to,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	Title         string  `json:"title"`
	OldAssigneeID *string `json:"old_assignee_id,omitempty"`
	NewAssigneeID *string `json:"new_assignee_id,omitempty"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	Title string `json:"title"`
}
