package service

import "github.com/spec-kit/workspace-tracker/internal/domain"

// RoleTemplate is a role every new workspace is provisioned with.
type RoleTemplate struct {
	Name        string
	Description string
	Permissions []domain.PermissionKey
}

// DefaultRoleTemplates returns the roles seeded into each workspace. The
// first entry is always the Admin role the designated admin receives.
func DefaultRoleTemplates() []RoleTemplate {
	admin := make([]domain.PermissionKey, 0, len(domain.KnownEntities)*len(domain.CRUDOperations))
	for _, entity := range domain.KnownEntities {
		for _, op := range domain.CRUDOperations {
			admin = append(admin, domain.PermissionKey{Entity: entity, Operation: op})
		}
	}

	member := []domain.PermissionKey{
		{Entity: domain.EntityWorkspace, Operation: domain.OperationRead},
		{Entity: domain.EntityRole, Operation: domain.OperationRead},
		{Entity: domain.EntityHistory, Operation: domain.OperationRead},
	}
	for _, entity := range []domain.Entity{domain.EntityTicket, domain.EntityComment} {
		for _, op := range domain.CRUDOperations {
			member = append(member, domain.PermissionKey{Entity: entity, Operation: op})
		}
	}

	return []RoleTemplate{
		{Name: domain.AdminRoleName, Description: "Full access to the workspace", Permissions: admin},
		{Name: "Member", Description: "Works on tickets and comments", Permissions: member},
	}
}
