package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/events"
	"github.com/spec-kit/workspace-tracker/internal/persistence"
	"github.com/spec-kit/workspace-tracker/internal/repository"
	apperrors "github.com/spec-kit/workspace-tracker/pkg/util/errorutil"
)

const maxWorkspaceNameLength = 120

// WorkspaceService provisions workspaces and answers membership queries.
type WorkspaceService struct {
	tx          persistence.Transactor
	authz       *Authorizer
	workspaces  repository.WorkspaceRepository
	users       repository.UserRepository
	roles       repository.RoleRepository
	permissions repository.PermissionRepository
	assignments repository.AssignmentRepository
	templates   []RoleTemplate
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// WorkspaceDependencies bundles repositories for the workspace service.
// Templates overrides DefaultRoleTemplates when set.
type WorkspaceDependencies struct {
	Transactor     persistence.Transactor
	Authorizer     *Authorizer
	WorkspaceRepo  repository.WorkspaceRepository
	UserRepo       repository.UserRepository
	RoleRepo       repository.RoleRepository
	PermissionRepo repository.PermissionRepository
	AssignmentRepo repository.AssignmentRepository
	Templates      []RoleTemplate
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// WorkspaceCreateInput describes a new workspace.
type WorkspaceCreateInput struct {
	Name        string
	AdminUserID string
}

// WorkspaceDetails is a workspace together with its roles.
type WorkspaceDetails struct {
	Workspace *domain.Workspace
	Roles     []domain.Role
	Admin     *domain.Assignment
}

// NewWorkspaceService constructs the service.
func NewWorkspaceService(deps WorkspaceDependencies) *WorkspaceService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	templates := deps.Templates
	if len(templates) == 0 {
		templates = DefaultRoleTemplates()
	}
	return &WorkspaceService{
		tx:          deps.Transactor,
		authz:       deps.Authorizer,
		workspaces:  deps.WorkspaceRepo,
		users:       deps.UserRepo,
		roles:       deps.RoleRepo,
		permissions: deps.PermissionRepo,
		assignments: deps.AssignmentRepo,
		templates:   templates,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
	}
}

// CreateWorkspace creates the workspace, seeds its default roles and makes
// AdminUserID its Admin. Either all of it happens or none of it does.
func (s *WorkspaceService) CreateWorkspace(ctx context.Context, identity domain.Identity, input WorkspaceCreateInput) (*WorkspaceDetails, error) {
	if err := s.authz.RequireSuperAdmin(identity); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	adminID := strings.TrimSpace(input.AdminUserID)
	switch {
	case name == "":
		return nil, apperrors.NewValidationError("workspace name is required", nil)
	case len(name) > maxWorkspaceNameLength:
		return nil, apperrors.NewValidationError("workspace name too long", map[string]any{"max": maxWorkspaceNameLength})
	case adminID == "":
		return nil, apperrors.NewValidationError("admin user id is required", nil)
	}

	details := &WorkspaceDetails{}
	err := s.tx.WithinTx(ctx, persistence.Serializable, func(ctx context.Context) error {
		taken, err := s.workspaces.NameTaken(ctx, name)
		if err != nil {
			return apperrors.MapError(err)
		}
		if taken {
			return workspaceNameConflict(name)
		}
		if _, err := s.users.GetByID(ctx, adminID); err != nil {
			return notFoundOr(err, "admin user", map[string]any{"adminUserId": adminID})
		}

		ws := &domain.Workspace{Name: name, CreatedBy: identity.UserID, AdminID: adminID}
		if err := s.workspaces.Create(ctx, ws); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return workspaceNameConflict(name)
			}
			return apperrors.MapError(err)
		}
		details.Workspace = ws

		var adminRoleID string
		for _, tpl := range s.templates {
			role, err := s.provisionRole(ctx, ws.ID, tpl)
			if err != nil {
				return err
			}
			if role.IsAdmin() {
				adminRoleID = role.ID
			}
			details.Roles = append(details.Roles, *role)
		}
		if adminRoleID == "" {
			return apperrors.NewInternalError(errors.New("role template has no Admin role"))
		}

		assignment := &domain.Assignment{UserID: adminID, RoleID: adminRoleID, WorkspaceID: ws.ID}
		if err := s.assignments.Create(ctx, assignment); err != nil {
			return apperrors.MapError(err)
		}
		details.Admin = assignment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("workspace created",
		zap.String("workspace_id", details.Workspace.ID),
		zap.String("admin_id", adminID),
		zap.Int("roles", len(details.Roles)),
	)
	if s.dispatcher != nil {
		err := s.dispatcher.Publish(ctx, events.Event{
			Type:        events.EventWorkspaceCreated,
			WorkspaceID: details.Workspace.ID,
			ActorID:     identity.UserID,
			Payload:     events.WorkspaceCreatedPayload{Name: name, AdminID: adminID},
		})
		if err != nil {
			s.logger.Warn("publish workspace created", zap.Error(err))
		}
	}
	return details, nil
}

func (s *WorkspaceService) provisionRole(ctx context.Context, workspaceID string, tpl RoleTemplate) (*domain.Role, error) {
	description := tpl.Description
	role := &domain.Role{WorkspaceID: workspaceID, Name: tpl.Name, Description: &description}
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, apperrors.MapError(err)
	}
	ids := make([]string, 0, len(tpl.Permissions))
	for _, key := range tpl.Permissions {
		perm, err := s.permissions.Ensure(ctx, key.Entity, key.Operation)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		ids = append(ids, perm.ID)
		role.Permissions = append(role.Permissions, *perm)
	}
	if err := s.roles.AddPermissions(ctx, role.ID, ids); err != nil {
		return nil, apperrors.MapError(err)
	}
	return role, nil
}

// ListWorkspaces returns every workspace. Super-admin only.
func (s *WorkspaceService) ListWorkspaces(ctx context.Context, identity domain.Identity) ([]domain.Workspace, error) {
	if err := s.authz.RequireSuperAdmin(identity); err != nil {
		return nil, err
	}
	list, err := s.workspaces.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// ListUsers returns every user who is not a super-admin. Super-admin only.
func (s *WorkspaceService) ListUsers(ctx context.Context, identity domain.Identity) ([]domain.User, error) {
	if err := s.authz.RequireSuperAdmin(identity); err != nil {
		return nil, err
	}
	users, err := s.users.ListRegular(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// ListMyWorkspaces returns the workspaces the caller holds a role in.
func (s *WorkspaceService) ListMyWorkspaces(ctx context.Context, identity domain.Identity) ([]domain.Workspace, error) {
	list, err := s.workspaces.ListForUser(ctx, identity.UserID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// GetWorkspace returns the workspace and its roles to members and super-admins.
func (s *WorkspaceService) GetWorkspace(ctx context.Context, identity domain.Identity, workspaceID string) (*WorkspaceDetails, error) {
	if err := s.authz.RequireMember(ctx, identity, workspaceID); err != nil {
		return nil, err
	}
	ws, err := s.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		return nil, notFoundOr(err, "workspace", map[string]any{"workspaceId": workspaceID})
	}
	roles, err := s.roles.List(ctx, workspaceID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &WorkspaceDetails{Workspace: ws, Roles: roles}, nil
}

func workspaceNameConflict(name string) error {
	return apperrors.NewConflict("workspace name already exists", map[string]any{"name": name})
}
