package domain

import "time"

// AdminRoleName is the top administrative role every workspace is provisioned with.
const AdminRoleName = "Admin"

// Role is a named bundle of permissions owned by one workspace.
type Role struct {
	ID          string
	WorkspaceID string
	Name        string
	Description *string
	Permissions []Permission
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsAdmin reports whether this is the workspace's top administrative role.
func (r *Role) IsAdmin() bool {
	return r != nil && r.Name == AdminRoleName
}
