package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen        TicketStatus = "OPEN"
	TicketStatusInProgress  TicketStatus = "IN_PROGRESS"
	TicketStatusPendingUser TicketStatus = "PENDING_USER"
	TicketStatusResolved    TicketStatus = "RESOLVED"
	TicketStatusClosed      TicketStatus = "CLOSED"
	TicketStatusCancelled   TicketStatus = "CANCELLED"
)

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// TicketType classifies the kind of work a ticket tracks.
type TicketType string

const (
	TicketTypeTask    TicketType = "TASK"
	TicketTypeBug     TicketType = "BUG"
	TicketTypeFeature TicketType = "FEATURE"
	TicketTypeStory   TicketType = "STORY"
)

var (
	ticketStatuses   = []TicketStatus{TicketStatusOpen, TicketStatusInProgress, TicketStatusPendingUser, TicketStatusResolved, TicketStatusClosed, TicketStatusCancelled}
	ticketPriorities = []TicketPriority{TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent}
	ticketTypes      = []TicketType{TicketTypeTask, TicketTypeBug, TicketTypeFeature, TicketTypeStory}
)

// ParseTicketStatus upper-cases raw and checks it against the known statuses.
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	s := TicketStatus(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range ticketStatuses {
		if s == known {
			return s, true
		}
	}
	return "", false
}

// ParseTicketPriority upper-cases raw and checks it against the known priorities.
func ParseTicketPriority(raw string) (TicketPriority, bool) {
	p := TicketPriority(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range ticketPriorities {
		if p == known {
			return p, true
		}
	}
	return "", false
}

// ParseTicketType upper-cases raw and checks it against the known types.
func ParseTicketType(raw string) (TicketType, bool) {
	t := TicketType(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range ticketTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// Tracked ticket fields. History rows use these names.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldPriority    = "priority"
	FieldAssignedTo  = "assigned_to"
	FieldDueDate     = "due_date"
	FieldParentID    = "parent_id"
	FieldTicketType  = "ticket_type"

	// FieldDeleted is the synthetic field recorded when a ticket is removed.
	FieldDeleted = "deleted"
)

// Ticket is a unit of work scoped to one workspace.
type Ticket struct {
	ID          string
	WorkspaceID string
	Title       string
	Description string
	Status      TicketStatus
	Priority    TicketPriority
	Type        TicketType
	AssignedTo  *string
	DueDate     *time.Time
	ParentID    *string
	CreatedBy   string
	UpdatedBy   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FieldValues exposes the tracked fields as loosely typed values keyed by
// field name, the shape the diff engine compares against.
func (t *Ticket) FieldValues() map[string]any {
	values := map[string]any{
		FieldTitle:       t.Title,
		FieldDescription: t.Description,
		FieldStatus:      string(t.Status),
		FieldPriority:    string(t.Priority),
		FieldTicketType:  string(t.Type),
		FieldAssignedTo:  nil,
		FieldDueDate:     nil,
		FieldParentID:    nil,
	}
	if t.AssignedTo != nil {
		values[FieldAssignedTo] = *t.AssignedTo
	}
	if t.DueDate != nil {
		values[FieldDueDate] = *t.DueDate
	}
	if t.ParentID != nil {
		values[FieldParentID] = *t.ParentID
	}
	return values
}

// TicketFilter narrows ListTickets results.
type TicketFilter struct {
	Status     *TicketStatus
	Priority   *TicketPriority
	AssignedTo *string
	Query      string
	Page       int
	PageSize   int
}

// Offset returns the row offset for the filter's page.
func (f TicketFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}
