package domain

import "time"

// Workspace is the tenancy boundary.
type Workspace struct {
	ID        string
	Name      string
	CreatedBy string
	AdminID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
