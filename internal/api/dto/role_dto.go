package dto

import "time"

// PermissionRequest names one entity/operation pair.
type PermissionRequest struct {
	Entity    string `json:"entity"`
	Operation string `json:"operation"`
}

// CreateRoleRequest payload.
type CreateRoleRequest struct {
	Name        string              `json:"name"`
	Description *string             `json:"description"`
	Permissions []PermissionRequest `json:"permissions"`
}

// UpdateRoleRequest payload. A present permissions list replaces the grants.
type UpdateRoleRequest struct {
	Name        *string              `json:"name"`
	Description *string              `json:"description"`
	Permissions *[]PermissionRequest `json:"permissions"`
}

// PermissionsRequest is used by grant and revoke.
type PermissionsRequest struct {
	Permissions []PermissionRequest `json:"permissions"`
}

// PermissionResponse describes a registry entry.
type PermissionResponse struct {
	ID        string `json:"id"`
	Entity    string `json:"entity"`
	Operation string `json:"operation"`
}

// RoleResponse describes a role with its grants.
type RoleResponse struct {
	ID          string               `json:"id"`
	WorkspaceID string               `json:"workspace_id"`
	Name        string               `json:"name"`
	Description *string              `json:"description"`
	Permissions []PermissionResponse `json:"permissions"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// RevokeResponse reports how many grants were removed.
type RevokeResponse struct {
	Role    RoleResponse `json:"role"`
	Removed int64        `json:"removed"`
}
