package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/observability"
	"github.com/spec-kit/workspace-tracker/internal/repository"
	apperrors "github.com/spec-kit/workspace-tracker/pkg/util/errorutil"
)

// Authorizer answers whether an identity may perform an operation on an
// entity kind inside a workspace. Every call reads the current assignment
// and role grants; nothing is cached.
type Authorizer struct {
	assignments repository.AssignmentRepository
	permissions repository.PermissionRepository
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// AuthorizerDependencies bundles repositories.
type AuthorizerDependencies struct {
	AssignmentRepo repository.AssignmentRepository
	PermissionRepo repository.PermissionRepository
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// NewAuthorizer creates the resolver.
func NewAuthorizer(deps AuthorizerDependencies) *Authorizer {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authorizer{
		assignments: deps.AssignmentRepo,
		permissions: deps.PermissionRepo,
		metrics:     deps.Metrics,
		logger:      logger,
	}
}

// Authorize reports whether identity holds (entity, op) in workspaceID.
// Super-admins are always allowed. Anyone without an assignment in the
// workspace is denied everything.
func (a *Authorizer) Authorize(ctx context.Context, identity domain.Identity, workspaceID string, entity domain.Entity, op domain.Operation) (bool, error) {
	allowed, err := a.resolve(ctx, identity, workspaceID, entity, op)
	if err != nil {
		return false, err
	}
	a.metrics.RecordAuthorization(string(entity), string(op), allowed)
	return allowed, nil
}

func (a *Authorizer) resolve(ctx context.Context, identity domain.Identity, workspaceID string, entity domain.Entity, op domain.Operation) (bool, error) {
	if identity.SuperAdmin {
		return true, nil
	}
	if identity.UserID == "" {
		return false, nil
	}

	assignment, err := a.assignments.Get(ctx, workspaceID, identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load assignment: %w", err)
	}

	perms, err := a.permissions.ListByRole(ctx, assignment.RoleID)
	if err != nil {
		return false, fmt.Errorf("load role permissions: %w", err)
	}
	return domain.NewPermissionSet(perms...).Has(entity, op), nil
}

// Require returns a Forbidden error unless Authorize allows the operation.
func (a *Authorizer) Require(ctx context.Context, identity domain.Identity, workspaceID string, entity domain.Entity, op domain.Operation) error {
	allowed, err := a.Authorize(ctx, identity, workspaceID, entity, op)
	if err != nil {
		return apperrors.MapError(err)
	}
	if !allowed {
		a.logger.Debug("authorization denied",
			zap.String("user_id", identity.UserID),
			zap.String("workspace_id", workspaceID),
			zap.String("permission", domain.PermissionKey{Entity: entity, Operation: op}.String()),
		)
		return apperrors.NewForbidden(fmt.Sprintf("access denied: %s:%s required", entity, op))
	}
	return nil
}

// RequireSuperAdmin guards platform-level operations.
func (a *Authorizer) RequireSuperAdmin(identity domain.Identity) error {
	if !identity.SuperAdmin {
		return apperrors.NewForbidden("super admin required")
	}
	return nil
}

// RequireMember allows super-admins and anyone holding a role in the workspace.
func (a *Authorizer) RequireMember(ctx context.Context, identity domain.Identity, workspaceID string) error {
	if identity.SuperAdmin {
		return nil
	}
	if _, err := a.assignments.Get(ctx, workspaceID, identity.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewForbidden("workspace membership required")
		}
		return apperrors.MapError(err)
	}
	return nil
}

// Check parses raw entity and operation tags and reports whether identity
// holds that permission in the workspace.
func (a *Authorizer) Check(ctx context.Context, identity domain.Identity, workspaceID, rawEntity, rawOp string) (bool, error) {
	entity, okEntity := domain.ParseEntity(rawEntity)
	op, okOp := domain.ParseOperation(rawOp)
	if !okEntity || !okOp {
		return false, apperrors.NewValidationError("unknown permission", map[string]any{
			"entity":    rawEntity,
			"operation": rawOp,
		})
	}
	allowed, err := a.Authorize(ctx, identity, workspaceID, entity, op)
	if err != nil {
		return false, apperrors.MapError(err)
	}
	return allowed, nil
}
