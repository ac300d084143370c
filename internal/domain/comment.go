package domain

import "time"

// Comment is a message on a ticket. ParentID, when set, references a
// top-level comment on the same ticket.
type Comment struct {
	ID        string
	TicketID  string
	UserID    string
	Message   string
	ParentID  *string
	CreatedAt time.Time
	UpdatedAt time.Time

	Replies []Comment
}
