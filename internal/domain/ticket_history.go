package domain

import "time"

// HistoryAction captures which mutation produced a history entry.
type HistoryAction string

const (
	HistoryActionCreate HistoryAction = "CREATE"
	HistoryActionUpdate HistoryAction = "UPDATE"
	HistoryActionDelete HistoryAction = "DELETE"
)

// FieldChange is one normalized field transition. A nil value means the
// field was empty.
type FieldChange struct {
	Field    string
	OldValue *string
	NewValue *string
}

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID           string
	WorkspaceID  string
	TicketID     string
	FieldChanged string
	OldValue     *string
	NewValue     *string
	Action       HistoryAction
	ChangedBy    string
	CreatedAt    time.Time
}
