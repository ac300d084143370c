package dto

import "time"

// CommentRequest payload for creating or editing a comment.
type CommentRequest struct {
	Message  string  `json:"message"`
	ParentID *string `json:"parent_id"`
}

// CommentResponse represents a comment with its replies.
type CommentResponse struct {
	ID        string            `json:"id"`
	TicketID  string            `json:"ticket_id"`
	UserID    string            `json:"user_id"`
	Message   string            `json:"message"`
	ParentID  *string           `json:"parent_id"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Replies   []CommentResponse `json:"replies,omitempty"`
}
