package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	apperrors "github.com/spec-kit/workspace-tracker/pkg/util/errorutil"
)

func TestCreateWorkspaceProvisionsAdmin(t *testing.T) {
	h := newHarness(t)
	details, admin := h.workspace(t, "Acme")

	require.Len(t, details.Roles, len(DefaultRoleTemplates()))
	assert.Equal(t, domain.AdminRoleName, details.Roles[0].Name)
	assert.Equal(t, admin.UserID, details.Workspace.AdminID)
	assert.Equal(t, h.root.UserID, details.Workspace.CreatedBy)

	assignment, err := h.repos.Assignments.Get(context.Background(), details.Workspace.ID, admin.UserID)
	require.NoError(t, err)
	assert.True(t, assignment.Role.IsAdmin())

	for _, entity := range domain.KnownEntities {
		for _, op := range domain.CRUDOperations {
			assert.Truef(t, h.allowed(t, admin, details.Workspace.ID, entity, op), "%s:%s", entity, op)
		}
	}
}

func TestCreateWorkspaceRequiresSuperAdmin(t *testing.T) {
	h := newHarness(t)
	caller := h.member(t, "someone@example.com")

	_, err := h.workspaces.CreateWorkspace(context.Background(), caller, WorkspaceCreateInput{Name: "", AdminUserID: ""})
	requireCode(t, err, apperrors.CodeForbidden)
}

func TestCreateWorkspaceNameConflictIgnoresCase(t *testing.T) {
	h := newHarness(t)
	_, admin := h.workspace(t, "Acme")

	_, err := h.workspaces.CreateWorkspace(context.Background(), h.root, WorkspaceCreateInput{Name: "  ACME ", AdminUserID: admin.UserID})
	requireCode(t, err, apperrors.CodeConflict)
}

func TestCreateWorkspaceUnknownAdmin(t *testing.T) {
	h := newHarness(t)
	_, err := h.workspaces.CreateWorkspace(context.Background(), h.root, WorkspaceCreateInput{Name: "Acme", AdminUserID: "missing"})
	requireCode(t, err, apperrors.CodeNotFound)

	list, err := h.workspaces.ListWorkspaces(context.Background(), h.root)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateWorkspaceRollsBackOnProvisioningFailure(t *testing.T) {
	h := newHarness(t)
	admin := h.member(t, "admin@example.com")
	broken := NewWorkspaceService(WorkspaceDependencies{
		Transactor:     h.store,
		Authorizer:     h.authz,
		WorkspaceRepo:  h.repos.Workspaces,
		UserRepo:       h.repos.Users,
		RoleRepo:       h.repos.Roles,
		PermissionRepo: h.repos.Permissions,
		AssignmentRepo: h.repos.Assignments,
		Templates: []RoleTemplate{{Name: "Viewer", Permissions: []domain.PermissionKey{
			{Entity: domain.EntityTicket, Operation: domain.OperationRead},
		}}},
	})

	_, err := broken.CreateWorkspace(context.Background(), h.root, WorkspaceCreateInput{Name: "Acme", AdminUserID: admin.UserID})
	requireCode(t, err, apperrors.CodeInternal)

	taken, err := h.repos.Workspaces.NameTaken(context.Background(), "Acme")
	require.NoError(t, err)
	assert.False(t, taken)
	perms, err := h.repos.Permissions.Find(context.Background(), []domain.PermissionKey{
		{Entity: domain.EntityTicket, Operation: domain.OperationRead},
	})
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestWorkspaceMembershipQueries(t *testing.T) {
	h := newHarness(t)
	acme, admin := h.workspace(t, "Acme")
	h.workspace(t, "Globex")
	outsider := h.member(t, "outsider@example.com")
	ctx := context.Background()

	mine, err := h.workspaces.ListMyWorkspaces(ctx, admin)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, acme.Workspace.ID, mine[0].ID)

	details, err := h.workspaces.GetWorkspace(ctx, admin, acme.Workspace.ID)
	require.NoError(t, err)
	assert.Len(t, details.Roles, 2)

	_, err = h.workspaces.GetWorkspace(ctx, outsider, acme.Workspace.ID)
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = h.workspaces.ListUsers(ctx, admin)
	requireCode(t, err, apperrors.CodeForbidden)

	users, err := h.workspaces.ListUsers(ctx, h.root)
	require.NoError(t, err)
	for _, u := range users {
		assert.NotEqual(t, domain.UserTypeSuperAdmin, u.Type)
	}
	assert.Len(t, users, 3)
}
