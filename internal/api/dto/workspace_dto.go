package dto

import "time"

// CreateWorkspaceRequest payload.
type CreateWorkspaceRequest struct {
	Name        string `json:"name"`
	AdminUserID string `json:"admin_user_id"`
}

// WorkspaceResponse summarizes a workspace.
type WorkspaceResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	AdminID   string    `json:"admin_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WorkspaceDetailResponse includes the workspace roles.
type WorkspaceDetailResponse struct {
	WorkspaceResponse
	Roles []RoleResponse      `json:"roles"`
	Admin *AssignmentResponse `json:"admin,omitempty"`
}

// AssignRolesRequest pairs users[i] with roles[i].
type AssignRolesRequest struct {
	Users []string `json:"users"`
	Roles []string `json:"roles"`
}

// UserRoleRequest targets a single user's role. RoleID is optional on removal.
type UserRoleRequest struct {
	UserID string  `json:"user_id"`
	RoleID *string `json:"role_id"`
}

// AssignmentResponse describes one user-role binding.
type AssignmentResponse struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	RoleID      string        `json:"role_id"`
	WorkspaceID string        `json:"workspace_id"`
	CreatedAt   time.Time     `json:"created_at"`
	Role        *RoleResponse `json:"role,omitempty"`
	User        *UserResponse `json:"user,omitempty"`
}

// PermissionCheckResponse answers a permission probe.
type PermissionCheckResponse struct {
	Entity    string `json:"entity"`
	Operation string `json:"operation"`
	Allowed   bool   `json:"allowed"`
}
