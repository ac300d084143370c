package dto

import "time"

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	TicketType  string  `json:"ticket_type"`
	Status      *string `json:"status"`
	AssignedTo  *string `json:"assigned_to"`
	DueDate     *string `json:"due_date"`
	ParentID    *string `json:"parent_id"`
}

// TicketResponse provides full ticket info.
type TicketResponse struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	TicketType  string     `json:"ticket_type"`
	AssignedTo  *string    `json:"assigned_to"`
	DueDate     *time.Time `json:"due_date"`
	ParentID    *string    `json:"parent_id"`
	CreatedBy   string     `json:"created_by"`
	UpdatedBy   *string    `json:"updated_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TicketPageResponse is one page of a ticket listing.
type TicketPageResponse struct {
	Items    []TicketResponse `json:"items"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// TicketHistoryResponse is one ledger row.
type TicketHistoryResponse struct {
	ID           string    `json:"id"`
	TicketID     string    `json:"ticket_id"`
	FieldChanged string    `json:"field_changed"`
	OldValue     *string   `json:"old_value"`
	NewValue     *string   `json:"new_value"`
	Action       string    `json:"action"`
	ChangedBy    string    `json:"changed_by"`
	CreatedAt    time.Time `json:"created_at"`
}
