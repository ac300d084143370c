package domain

import "time"

// Assignment binds one user to one role inside one workspace. There is at
// most one per (user, workspace).
type Assignment struct {
	ID          string
	UserID      string
	RoleID      string
	WorkspaceID string
	CreatedAt   time.Time

	Role *Role
	User *User
}
