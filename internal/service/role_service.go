package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/persistence"
	"github.com/spec-kit/workspace-tracker/internal/repository"
	apperrors "github.com/spec-kit/workspace-tracker/pkg/util/errorutil"
)

const maxRoleNameLength = 100

// RoleService manages workspace roles and their permission grants.
type RoleService struct {
	tx          persistence.Transactor
	authz       *Authorizer
	workspaces  repository.WorkspaceRepository
	roles       repository.RoleRepository
	permissions repository.PermissionRepository
	assignments repository.AssignmentRepository
	logger      *zap.Logger
}

// RoleDependencies bundles repositories for the role service.
type RoleDependencies struct {
	Transactor     persistence.Transactor
	Authorizer     *Authorizer
	WorkspaceRepo  repository.WorkspaceRepository
	RoleRepo       repository.RoleRepository
	PermissionRepo repository.PermissionRepository
	AssignmentRepo repository.AssignmentRepository
	Logger         *zap.Logger
}

// RoleCreateInput describes a new role.
type RoleCreateInput struct {
	Name        string
	Description *string
	Permissions []PermissionInput
}

// RoleUpdateInput describes a role update. A nil Permissions keeps the
// current grants; a non-nil one replaces them entirely.
type RoleUpdateInput struct {
	Name        *string
	Description *string
	Permissions *[]PermissionInput
}

// RevokeResult reports the role after a revoke and how many grants went away.
type RevokeResult struct {
	Role    *domain.Role
	Removed int64
}

// NewRoleService constructs the service.
func NewRoleService(deps RoleDependencies) *RoleService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleService{
		tx:          deps.Transactor,
		authz:       deps.Authorizer,
		workspaces:  deps.WorkspaceRepo,
		roles:       deps.RoleRepo,
		permissions: deps.PermissionRepo,
		assignments: deps.AssignmentRepo,
		logger:      logger,
	}
}

// ListRoles returns the workspace roles with their permissions.
func (s *RoleService) ListRoles(ctx context.Context, identity domain.Identity, workspaceID string) ([]domain.Role, error) {
	if err := s.authz.Require(ctx, identity, workspaceID, domain.EntityRole, domain.OperationRead); err != nil {
		return nil, err
	}
	if _, err := s.workspaces.GetByID(ctx, workspaceID); err != nil {
		return nil, notFoundOr(err, "workspace", map[string]any{"workspaceId": workspaceID})
	}
	roles, err := s.roles.List(ctx, workspaceID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return roles, nil
}

// CreateRole creates a role in the workspace and grants it the given
// permissions, creating registry entries as needed.
func (s *RoleService) CreateRole(ctx context.Context, identity domain.Identity, workspaceID string, input RoleCreateInput) (*domain.Role, error) {
	if err := s.authz.Require(ctx, identity, workspaceID, domain.EntityRole, domain.OperationCreate); err != nil {
		return nil, err
	}

	name, err := validateRoleName(input.Name)
	if err != nil {
		return nil, err
	}
	keys, err := requirePermissions(input.Permissions)
	if err != nil {
		return nil, err
	}
	if name == domain.AdminRoleName {
		if err := s.authz.RequireSuperAdmin(identity); err != nil {
			return nil, err
		}
	}

	role := &domain.Role{WorkspaceID: workspaceID, Name: name, Description: trimOptional(input.Description)}
	err = s.tx.WithinTx(ctx, persistence.Serializable, func(ctx context.Context) error {
		if _, err := s.workspaces.GetByID(ctx, workspaceID); err != nil {
			return notFoundOr(err, "workspace", map[string]any{"workspaceId": workspaceID})
		}
		if err := s.roles.Create(ctx, role); err != nil {
			return roleWriteError(err, name)
		}
		if err := s.grant(ctx, role.ID, keys); err != nil {
			return err
		}
		created, err := s.roles.GetByID(ctx, workspaceID, role.ID)
		if err != nil {
			return apperrors.MapError(err)
		}
		role = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("role created",
		zap.String("workspace_id", workspaceID),
		zap.String("role_id", role.ID),
		zap.Int("permissions", len(role.Permissions)),
	)
	return role, nil
}

// UpdateRole renames or re-describes a role and, when a permission set is
// supplied, replaces its grants with exactly that set.
func (s *RoleService) UpdateRole(ctx context.Context, identity domain.Identity, workspaceID, roleID string, input RoleUpdateInput) (*domain.Role, error) {
	if err := s.authz.Require(ctx, identity, workspaceID, domain.EntityRole, domain.OperationUpdate); err != nil {
		return nil, err
	}

	var name string
	if input.Name != nil {
		validated, err := validateRoleName(*input.Name)
		if err != nil {
			return nil, err
		}
		name = validated
	}
	var keys []domain.PermissionKey
	if input.Permissions != nil {
		parsed, err := parsePermissions(*input.Permissions)
		if err != nil {
			return nil, err
		}
		keys = parsed
	}

	var role *domain.Role
	err := s.tx.WithinTx(ctx, persistence.Serializable, func(ctx context.Context) error {
		current, err := s.roles.GetByID(ctx, workspaceID, roleID)
		if err != nil {
			return notFoundOr(err, "role", map[string]any{"roleId": roleID})
		}
		renaming := input.Name != nil && name != current.Name
		if renaming && (current.IsAdmin() || name == domain.AdminRoleName) {
			if err := s.authz.RequireSuperAdmin(identity); err != nil {
				return err
			}
		}

		if renaming {
			current.Name = name
		}
		if input.Description != nil {
			current.Description = trimOptional(input.Description)
		}
		if err := s.roles.Update(ctx, current); err != nil {
			return roleWriteError(err, current.Name)
		}

		if input.Permissions != nil {
			if err := s.roles.ClearPermissions(ctx, roleID); err != nil {
				return apperrors.MapError(err)
			}
			if err := s.grant(ctx, roleID, keys); err != nil {
				return err
			}
		}

		updated, err := s.roles.GetByID(ctx, workspaceID, roleID)
		if err != nil {
			return apperrors.MapError(err)
		}
		role = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return role, nil
}

// DeleteRole removes a role that no assignment references.
func (s *RoleService) DeleteRole(ctx context.Context, identity domain.Identity, workspaceID, roleID string) error {
	if err := s.authz.Require(ctx, identity, workspaceID, domain.EntityRole, domain.OperationDelete); err != nil {
		return err
	}

	err := s.tx.WithinTx(ctx, persistence.Serializable, func(ctx context.Context) error {
		role, err := s.roles.GetByID(ctx, workspaceID, roleID)
		if err != nil {
			return notFoundOr(err, "role", map[string]any{"roleId": roleID})
		}
		if role.IsAdmin() {
			if err := s.authz.RequireSuperAdmin(identity); err != nil {
				return err
			}
		}
		inUse, err := s.assignments.CountByRole(ctx, roleID)
		if err != nil {
			return apperrors.MapError(err)
		}
		if inUse > 0 {
			return apperrors.NewConflict("role is assigned to users", map[string]any{
				"roleId":      roleID,
				"assignments": inUse,
			})
		}
		if err := s.roles.Delete(ctx, workspaceID, roleID); err != nil {
			return notFoundOr(err, "role", map[string]any{"roleId": roleID})
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("role deleted", zap.String("workspace_id", workspaceID), zap.String("role_id", roleID))
	return nil
}

// GrantPermissions adds permissions to a role. Grants the role already holds
// are left as they are.
func (s *RoleService) GrantPermissions(ctx context.Context, identity domain.Identity, workspaceID, roleID string, inputs []PermissionInput) (*domain.Role, error) {
	if err := s.authz.Require(ctx, identity, workspaceID, domain.EntityRole, domain.OperationUpdate); err != nil {
		return nil, err
	}
	keys, err := requirePermissions(inputs)
	if err != nil {
		return nil, err
	}

	var role *domain.Role
	err = s.tx.WithinTx(ctx, persistence.Serializable, func(ctx context.Context) error {
		if _, err := s.roles.GetByID(ctx, workspaceID, roleID); err != nil {
			return notFoundOr(err, "role", map[string]any{"roleId": roleID})
		}
		if err := s.grant(ctx, roleID, keys); err != nil {
			return err
		}
		updated, err := s.roles.GetByID(ctx, workspaceID, roleID)
		if err != nil {
			return apperrors.MapError(err)
		}
		role = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return role, nil
}

// RevokePermissions removes the matching grants from a role. It fails with
// NotFound when the role holds none of the requested permissions.
func (s *RoleService) RevokePermissions(ctx context.Context, identity domain.Identity, workspaceID, roleID string, inputs []PermissionInput) (*RevokeResult, error) {
	if err := s.authz.Require(ctx, identity, workspaceID, domain.EntityRole, domain.OperationUpdate); err != nil {
		return nil, err
	}
	keys, err := requirePermissions(inputs)
	if err != nil {
		return nil, err
	}

	result := &RevokeResult{}
	err = s.tx.WithinTx(ctx, persistence.Serializable, func(ctx context.Context) error {
		current, err := s.roles.GetByID(ctx, workspaceID, roleID)
		if err != nil {
			return notFoundOr(err, "role", map[string]any{"roleId": roleID})
		}
		found, err := s.permissions.Find(ctx, keys)
		if err != nil {
			return apperrors.MapError(err)
		}
		held := domain.NewPermissionSet(current.Permissions...)
		ids := make([]string, 0, len(found))
		for _, p := range found {
			if held.Has(p.Entity, p.Operation) {
				ids = append(ids, p.ID)
			}
		}
		if len(ids) == 0 {
			return apperrors.NewNotFound("matching permissions", map[string]any{"requested": keyStrings(keys)})
		}
		removed, err := s.roles.RemovePermissions(ctx, roleID, ids)
		if err != nil {
			return apperrors.MapError(err)
		}
		role, err := s.roles.GetByID(ctx, workspaceID, roleID)
		if err != nil {
			return apperrors.MapError(err)
		}
		result.Role, result.Removed = role, removed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// grant ensures every key exists in the registry and links it to the role.
func (s *RoleService) grant(ctx context.Context, roleID string, keys []domain.PermissionKey) error {
	if len(keys) == 0 {
		return nil
	}
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		perm, err := s.permissions.Ensure(ctx, key.Entity, key.Operation)
		if err != nil {
			return apperrors.MapError(err)
		}
		ids = append(ids, perm.ID)
	}
	if err := s.roles.AddPermissions(ctx, roleID, ids); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

func requirePermissions(inputs []PermissionInput) ([]domain.PermissionKey, error) {
	if len(inputs) == 0 {
		return nil, apperrors.NewValidationError("permissions must be a non-empty array", nil)
	}
	return parsePermissions(inputs)
}

func validateRoleName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", apperrors.NewValidationError("role name is required", nil)
	}
	if len(name) > maxRoleNameLength {
		return "", apperrors.NewValidationError("role name too long", map[string]any{"max": maxRoleNameLength})
	}
	return name, nil
}

func roleWriteError(err error, name string) error {
	if errors.Is(err, repository.ErrConflict) {
		return apperrors.NewConflict("role name already exists", map[string]any{"name": name})
	}
	return notFoundOr(err, "role", nil)
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	return &trimmed
}

func keyStrings(keys []domain.PermissionKey) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.String())
	}
	return out
}
