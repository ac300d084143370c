package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/events"
	"github.com/spec-kit/workspace-tracker/internal/observability"
	"github.com/spec-kit/workspace-tracker/internal/repository"
	"github.com/spec-kit/workspace-tracker/internal/repository/memory"
	apperrors "github.com/spec-kit/workspace-tracker/pkg/util/errorutil"
)

var readTickets = []PermissionInput{{Entity: "TICKET", Operation: "READ"}}

type harness struct {
	store       *memory.Store
	repos       repository.Repositories
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	authz       *Authorizer
	workspaces  *WorkspaceService
	roles       *RoleService
	assignments *AssignmentService
	tickets     *TicketService
	comments    *CommentService

	root domain.Identity
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repositories()
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	authz := NewAuthorizer(AuthorizerDependencies{
		AssignmentRepo: repos.Assignments,
		PermissionRepo: repos.Permissions,
		Metrics:        metrics,
	})
	h := &harness{
		store:      store,
		repos:      repos,
		dispatcher: dispatcher,
		metrics:    metrics,
		authz:      authz,
		workspaces: NewWorkspaceService(WorkspaceDependencies{
			Transactor:     store,
			Authorizer:     authz,
			WorkspaceRepo:  repos.Workspaces,
			UserRepo:       repos.Users,
			RoleRepo:       repos.Roles,
			PermissionRepo: repos.Permissions,
			AssignmentRepo: repos.Assignments,
			Dispatcher:     dispatcher,
		}),
		roles: NewRoleService(RoleDependencies{
			Transactor:     store,
			Authorizer:     authz,
			WorkspaceRepo:  repos.Workspaces,
			RoleRepo:       repos.Roles,
			PermissionRepo: repos.Permissions,
			AssignmentRepo: repos.Assignments,
		}),
		assignments: NewAssignmentService(AssignmentDependencies{
			Transactor:     store,
			Authorizer:     authz,
			WorkspaceRepo:  repos.Workspaces,
			UserRepo:       repos.Users,
			RoleRepo:       repos.Roles,
			AssignmentRepo: repos.Assignments,
			Dispatcher:     dispatcher,
		}),
		tickets: NewTicketService(TicketDependencies{
			Transactor:     store,
			Authorizer:     authz,
			WorkspaceRepo:  repos.Workspaces,
			TicketRepo:     repos.Tickets,
			CommentRepo:    repos.Comments,
			AssignmentRepo: repos.Assignments,
			HistoryRepo:    repos.History,
			HistoryWriter:  NewHistoryWriter(repos.History, metrics),
			Dispatcher:     dispatcher,
		}),
		comments: NewCommentService(CommentDependencies{
			Transactor:  store,
			Authorizer:  authz,
			TicketRepo:  repos.Tickets,
			CommentRepo: repos.Comments,
		}),
	}
	root := h.user(t, "root@example.com", domain.UserTypeSuperAdmin)
	h.root = domain.IdentityOf(&root)
	return h
}

func (h *harness) user(t *testing.T, email string, userType domain.UserType) domain.User {
	t.Helper()
	u := domain.User{Name: email, Email: email, Type: userType, IsActive: true, IsVerified: true}
	require.NoError(t, h.repos.Users.Create(context.Background(), &u))
	return u
}

// member creates a regular user and returns its identity.
func (h *harness) member(t *testing.T, email string) domain.Identity {
	t.Helper()
	u := h.user(t, email, domain.UserTypeOther)
	return domain.IdentityOf(&u)
}

// workspace provisions a workspace administered by a fresh user.
func (h *harness) workspace(t *testing.T, name string) (*WorkspaceDetails, domain.Identity) {
	t.Helper()
	admin := h.member(t, name+"-admin@example.com")
	details, err := h.workspaces.CreateWorkspace(context.Background(), h.root, WorkspaceCreateInput{
		Name:        name,
		AdminUserID: admin.UserID,
	})
	require.NoError(t, err)
	return details, admin
}

func (h *harness) roleNamed(t *testing.T, workspaceID, name string) *domain.Role {
	t.Helper()
	role, err := h.repos.Roles.GetByName(context.Background(), workspaceID, name)
	require.NoError(t, err)
	return role
}

func (h *harness) allowed(t *testing.T, id domain.Identity, workspaceID string, entity domain.Entity, op domain.Operation) bool {
	t.Helper()
	ok, err := h.authz.Authorize(context.Background(), id, workspaceID, entity, op)
	require.NoError(t, err)
	return ok
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, apperrors.HasCode(err, code), "want %s, got %v", code, err)
}
