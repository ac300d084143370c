package service

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/events"
	"github.com/spec-kit/workspace-tracker/internal/persistence"
	"github.com/spec-kit/workspace-tracker/internal/repository"
	apperrors "github.com/spec-kit/workspace-tracker/pkg/util/errorutil"
)

// AssignmentService binds users to workspace roles.
type AssignmentService struct {
	tx          persistence.Transactor
	authz       *Authorizer
	workspaces  repository.WorkspaceRepository
	users       repository.UserRepository
	roles       repository.RoleRepository
	assignments repository.AssignmentRepository
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// AssignmentDependencies bundles repositories for the assignment service.
type AssignmentDependencies struct {
	Transactor     persistence.Transactor
	Authorizer     *Authorizer
	WorkspaceRepo  repository.WorkspaceRepository
	UserRepo       repository.UserRepository
	RoleRepo       repository.RoleRepository
	AssignmentRepo repository.AssignmentRepository
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// BulkAssignInput pairs UserIDs[i] with RoleIDs[i].
type BulkAssignInput struct {
	UserIDs []string
	RoleIDs []string
}

// BulkAssignResult lists the assignments now held by the requested users.
type BulkAssignResult struct {
	Count       int
	Assignments []domain.Assignment
}

// NewAssignmentService constructs the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		tx:          deps.Transactor,
		authz:       deps.Authorizer,
		workspaces:  deps.WorkspaceRepo,
		users:       deps.UserRepo,
		roles:       deps.RoleRepo,
		assignments: deps.AssignmentRepo,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
	}
}

// AssignRoles replaces the workspace role of every listed user. When a user
// appears more than once the last role listed for them wins.
func (s *AssignmentService) AssignRoles(ctx context.Context, identity domain.Identity, workspaceID string, input BulkAssignInput) (*BulkAssignResult, error) {
	if err := s.authz.Require(ctx, identity, workspaceID, domain.EntityUserRole, domain.OperationCreate); err != nil {
		return nil, err
	}
	if len(input.UserIDs) == 0 || len(input.UserIDs) != len(input.RoleIDs) {
		return nil, apperrors.NewValidationError("provide non-empty users and roles arrays of equal length", nil)
	}

	finalRole := make(map[string]string, len(input.UserIDs))
	var order []string
	for i, raw := range input.UserIDs {
		userID, roleID := strings.TrimSpace(raw), strings.TrimSpace(input.RoleIDs[i])
		if userID == "" || roleID == "" {
			return nil, apperrors.NewValidationError("user and role ids must not be empty", map[string]any{"index": i})
		}
		if _, seen := finalRole[userID]; !seen {
			order = append(order, userID)
		}
		finalRole[userID] = roleID
	}

	var result *BulkAssignResult
	err := s.tx.WithinTx(ctx, persistence.Serializable, func(ctx context.Context) error {
		if _, err := s.workspaces.GetByID(ctx, workspaceID); err != nil {
			return notFoundOr(err, "workspace", map[string]any{"workspaceId": workspaceID})
		}

		roleIDs := distinct(input.RoleIDs)
		roles, err := s.roles.ListByIDs(ctx, workspaceID, roleIDs)
		if err != nil {
			return apperrors.MapError(err)
		}
		rolesByID := make(map[string]domain.Role, len(roles))
		for _, r := range roles {
			rolesByID[r.ID] = r
		}
		if invalid := missing(roleIDs, rolesByID); len(invalid) > 0 {
			return apperrors.NewDomainError(apperrors.CodeNotFound, "some roles do not belong to this workspace", http.StatusNotFound,
				map[string]any{"invalidRoleIds": invalid})
		}

		found, err := s.users.ExistingIDs(ctx, order)
		if err != nil {
			return apperrors.MapError(err)
		}
		if absent := missingIDs(order, found); len(absent) > 0 {
			return apperrors.NewDomainError(apperrors.CodeNotFound, "some users were not found", http.StatusNotFound,
				map[string]any{"missingUsers": absent})
		}

		current, err := s.assignments.ListForUsers(ctx, workspaceID, order)
		if err != nil {
			return apperrors.MapError(err)
		}
		if err := s.guardAdmin(identity, current, rolesByID, finalRole); err != nil {
			return err
		}

		if _, err := s.assignments.DeleteForUsers(ctx, workspaceID, order); err != nil {
			return apperrors.MapError(err)
		}
		for _, userID := range order {
			a := &domain.Assignment{UserID: userID, RoleID: finalRole[userID], WorkspaceID: workspaceID}
			if err := s.assignments.Create(ctx, a); err != nil {
				return apperrors.MapError(err)
			}
		}

		enriched, err := s.assignments.ListForUsers(ctx, workspaceID, order)
		if err != nil {
			return apperrors.MapError(err)
		}
		result = &BulkAssignResult{Count: len(order), Assignments: enriched}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, a := range result.Assignments {
		s.publishAssigned(ctx, identity, a)
	}
	s.logger.Info("roles assigned", zap.String("workspace_id", workspaceID), zap.Int("count", result.Count))
	return result, nil
}

// SetUserRole replaces the user's role in the workspace with roleID.
func (s *AssignmentService) SetUserRole(ctx context.Context, identity domain.Identity, workspaceID, userID, roleID string) (*domain.Assignment, error) {
	if err := s.authz.Require(ctx, identity, workspaceID, domain.EntityUserRole, domain.OperationUpdate); err != nil {
		return nil, err
	}
	userID, roleID = strings.TrimSpace(userID), strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return nil, apperrors.NewValidationError("user_id and role_id are required", nil)
	}

	var assignment *domain.Assignment
	err := s.tx.WithinTx(ctx, persistence.Serializable, func(ctx context.Context) error {
		if _, err := s.workspaces.GetByID(ctx, workspaceID); err != nil {
			return notFoundOr(err, "workspace", map[string]any{"workspaceId": workspaceID})
		}
		if _, err := s.users.GetByID(ctx, userID); err != nil {
			return notFoundOr(err, "user", map[string]any{"userId": userID})
		}
		role, err := s.roles.GetByID(ctx, workspaceID, roleID)
		if err != nil {
			return notFoundOr(err, "role", map[string]any{"roleId": roleID})
		}

		current, err := s.currentAssignment(ctx, workspaceID, userID)
		if err != nil {
			return err
		}
		if role.IsAdmin() || (current != nil && current.Role != nil && current.Role.IsAdmin()) {
			if err := s.requireSuperAdminForAdmin(identity); err != nil {
				return err
			}
		}

		if _, err := s.assignments.DeleteForUsers(ctx, workspaceID, []string{userID}); err != nil {
			return apperrors.MapError(err)
		}
		if err := s.assignments.Create(ctx, &domain.Assignment{UserID: userID, RoleID: roleID, WorkspaceID: workspaceID}); err != nil {
			return apperrors.MapError(err)
		}
		enriched, err := s.assignments.ListForUsers(ctx, workspaceID, []string{userID})
		if err != nil {
			return apperrors.MapError(err)
		}
		if len(enriched) == 0 {
			return apperrors.NewInternalError(errors.New("assignment vanished after insert"))
		}
		assignment = &enriched[0]
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishAssigned(ctx, identity, *assignment)
	return assignment, nil
}

// RemoveUserRole removes the user's assignment in the workspace. With a nil
// roleID any assignment is removed; a roleID that is not the current
// assignment is reported as not found.
func (s *AssignmentService) RemoveUserRole(ctx context.Context, identity domain.Identity, workspaceID, userID string, roleID *string) (int64, error) {
	if err := s.authz.Require(ctx, identity, workspaceID, domain.EntityUserRole, domain.OperationDelete); err != nil {
		return 0, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, apperrors.NewValidationError("user_id is required", nil)
	}
	if roleID != nil && strings.TrimSpace(*roleID) == "" {
		roleID = nil
	}

	var removed int64
	err := s.tx.WithinTx(ctx, persistence.Serializable, func(ctx context.Context) error {
		if _, err := s.users.GetByID(ctx, userID); err != nil {
			return notFoundOr(err, "user", map[string]any{"userId": userID})
		}
		current, err := s.currentAssignment(ctx, workspaceID, userID)
		if err != nil {
			return err
		}
		if roleID != nil && (current == nil || current.RoleID != *roleID) {
			return apperrors.NewNotFound("assignment", map[string]any{"userId": userID, "roleId": *roleID})
		}
		if current == nil {
			return nil
		}
		if current.Role != nil && current.Role.IsAdmin() {
			if err := s.requireSuperAdminForAdmin(identity); err != nil {
				return err
			}
		}
		n, err := s.assignments.Delete(ctx, workspaceID, userID, roleID)
		if err != nil {
			return apperrors.MapError(err)
		}
		removed = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("user role removed",
		zap.String("workspace_id", workspaceID),
		zap.String("user_id", userID),
		zap.Int64("removed", removed),
	)
	return removed, nil
}

func (s *AssignmentService) currentAssignment(ctx context.Context, workspaceID, userID string) (*domain.Assignment, error) {
	current, err := s.assignments.Get(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}
	return current, nil
}

// guardAdmin rejects a bulk assignment that moves anyone onto or off the
// Admin role unless the caller is a super-admin.
func (s *AssignmentService) guardAdmin(identity domain.Identity, current []domain.Assignment, roles map[string]domain.Role, target map[string]string) error {
	if identity.SuperAdmin {
		return nil
	}
	for _, a := range current {
		if a.Role != nil && a.Role.IsAdmin() {
			return s.requireSuperAdminForAdmin(identity)
		}
	}
	for _, roleID := range target {
		if role := roles[roleID]; role.IsAdmin() {
			return s.requireSuperAdminForAdmin(identity)
		}
	}
	return nil
}

func (s *AssignmentService) requireSuperAdminForAdmin(identity domain.Identity) error {
	if identity.SuperAdmin {
		return nil
	}
	return apperrors.NewForbidden("only a super admin can change the Admin role")
}

func (s *AssignmentService) publishAssigned(ctx context.Context, identity domain.Identity, a domain.Assignment) {
	if s.dispatcher == nil {
		return
	}
	payload := events.RoleAssignedPayload{UserID: a.UserID, RoleID: a.RoleID}
	if a.Role != nil {
		payload.RoleName = a.Role.Name
	}
	err := s.dispatcher.Publish(ctx, events.Event{
		Type:        events.EventRoleAssigned,
		WorkspaceID: a.WorkspaceID,
		ActorID:     identity.UserID,
		Payload:     payload,
	})
	if err != nil {
		s.logger.Warn("publish role assigned", zap.Error(err), zap.String("user_id", a.UserID))
	}
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missing(ids []string, found map[string]domain.Role) []string {
	var out []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func missingIDs(ids, found []string) []string {
	present := make(map[string]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	var out []string
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
