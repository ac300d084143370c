package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	apperrors "github.com/spec-kit/workspace-tracker/pkg/util/errorutil"
)

func permissionKeys(role *domain.Role) []string {
	return keyStrings(domain.NewPermissionSet(role.Permissions...).Keys())
}

func TestCreateRoleEnsuresPermissions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")

	desc := "  triage only "
	role, err := h.roles.CreateRole(ctx, admin, ws.Workspace.ID, RoleCreateInput{
		Name:        " Triage ",
		Description: &desc,
		Permissions: []PermissionInput{
			{Entity: "ticket", Operation: "read"},
			{Entity: "TICKET", Operation: "update"},
			{Entity: "ticket", Operation: "READ"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Triage", role.Name)
	assert.Equal(t, "triage only", *role.Description)
	assert.Equal(t, []string{"TICKET:READ", "TICKET:UPDATE"}, permissionKeys(role))

	_, err = h.roles.CreateRole(ctx, admin, ws.Workspace.ID, RoleCreateInput{Name: "Triage", Permissions: readTickets})
	requireCode(t, err, apperrors.CodeConflict)
}

func TestCreateRoleRejectsUnknownPermission(t *testing.T) {
	h := newHarness(t)
	ws, admin := h.workspace(t, "Acme")

	_, err := h.roles.CreateRole(context.Background(), admin, ws.Workspace.ID, RoleCreateInput{
		Name:        "Odd",
		Permissions: []PermissionInput{{Entity: "SPACESHIP", Operation: "READ"}},
	})
	requireCode(t, err, apperrors.CodeValidation)
}

func TestUpdateRoleReplacesGrants(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")
	member := h.roleNamed(t, ws.Workspace.ID, "Member")

	perms := []PermissionInput{{Entity: "TICKET", Operation: "READ"}}
	updated, err := h.roles.UpdateRole(ctx, admin, ws.Workspace.ID, member.ID, RoleUpdateInput{Permissions: &perms})
	require.NoError(t, err)
	assert.Equal(t, []string{"TICKET:READ"}, permissionKeys(updated))
	assert.Equal(t, "Member", updated.Name)

	name := "Reader"
	renamed, err := h.roles.UpdateRole(ctx, admin, ws.Workspace.ID, member.ID, RoleUpdateInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Reader", renamed.Name)
	assert.Equal(t, []string{"TICKET:READ"}, permissionKeys(renamed))

	empty := []PermissionInput{}
	cleared, err := h.roles.UpdateRole(ctx, admin, ws.Workspace.ID, member.ID, RoleUpdateInput{Permissions: &empty})
	require.NoError(t, err)
	assert.Empty(t, cleared.Permissions)
}

func TestUpdateRoleAdminRenameNeedsSuperAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")
	adminRole := h.roleNamed(t, ws.Workspace.ID, domain.AdminRoleName)

	name := "Owner"
	_, err := h.roles.UpdateRole(ctx, admin, ws.Workspace.ID, adminRole.ID, RoleUpdateInput{Name: &name})
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = h.roles.UpdateRole(ctx, h.root, ws.Workspace.ID, adminRole.ID, RoleUpdateInput{Name: &name})
	require.NoError(t, err)
}

func TestDeleteRoleInUseConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")
	wsID := ws.Workspace.ID

	spare, err := h.roles.CreateRole(ctx, admin, wsID, RoleCreateInput{Name: "Spare", Permissions: readTickets})
	require.NoError(t, err)
	require.NoError(t, h.roles.DeleteRole(ctx, admin, wsID, spare.ID))

	member := h.roleNamed(t, wsID, "Member")
	user := h.member(t, "user@example.com")
	_, err = h.assignments.SetUserRole(ctx, admin, wsID, user.UserID, member.ID)
	require.NoError(t, err)

	err = h.roles.DeleteRole(ctx, admin, wsID, member.ID)
	requireCode(t, err, apperrors.CodeConflict)

	_, err = h.assignments.RemoveUserRole(ctx, admin, wsID, user.UserID, nil)
	require.NoError(t, err)
	require.NoError(t, h.roles.DeleteRole(ctx, admin, wsID, member.ID))

	err = h.roles.DeleteRole(ctx, admin, wsID, member.ID)
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestGrantAndRevoke(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")
	wsID := ws.Workspace.ID
	role, err := h.roles.CreateRole(ctx, admin, wsID, RoleCreateInput{Name: "Auditor", Permissions: readTickets})
	require.NoError(t, err)

	_, err = h.roles.GrantPermissions(ctx, admin, wsID, role.ID, nil)
	requireCode(t, err, apperrors.CodeValidation)

	granted, err := h.roles.GrantPermissions(ctx, admin, wsID, role.ID, []PermissionInput{
		{Entity: "HISTORY", Operation: "READ"},
		{Entity: "TICKET", Operation: "READ"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"HISTORY:READ", "TICKET:READ"}, permissionKeys(granted))

	again, err := h.roles.GrantPermissions(ctx, admin, wsID, role.ID, []PermissionInput{{Entity: "TICKET", Operation: "READ"}})
	require.NoError(t, err)
	assert.Len(t, again.Permissions, 2)

	result, err := h.roles.RevokePermissions(ctx, admin, wsID, role.ID, []PermissionInput{{Entity: "TICKET", Operation: "READ"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.Removed)
	assert.Equal(t, []string{"HISTORY:READ"}, permissionKeys(result.Role))

	_, err = h.roles.GrantPermissions(ctx, admin, wsID, "missing-role", []PermissionInput{{Entity: "TICKET", Operation: "READ"}})
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestRevokeWithoutMatchingGrantsNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")
	member := h.roleNamed(t, ws.Workspace.ID, "Member")

	_, err := h.roles.RevokePermissions(ctx, admin, ws.Workspace.ID, member.ID, []PermissionInput{})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.roles.RevokePermissions(ctx, admin, ws.Workspace.ID, member.ID, []PermissionInput{{Entity: "WORKSPACE", Operation: "DELETE"}})
	requireCode(t, err, apperrors.CodeNotFound)

	reloaded := h.roleNamed(t, ws.Workspace.ID, "Member")
	assert.Equal(t, permissionKeys(member), permissionKeys(reloaded))
}

func TestListRolesOrderedByName(t *testing.T) {
	h := newHarness(t)
	ws, admin := h.workspace(t, "Acme")

	roles, err := h.roles.ListRoles(context.Background(), admin, ws.Workspace.ID)
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, domain.AdminRoleName, roles[0].Name)
	assert.Equal(t, "Member", roles[1].Name)
}

func TestCreateRoleRequiresPermissions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")

	_, err := h.roles.CreateRole(ctx, admin, ws.Workspace.ID, RoleCreateInput{Name: "Empty"})
	requireCode(t, err, apperrors.CodeValidation)
	_, err = h.roles.CreateRole(ctx, admin, ws.Workspace.ID, RoleCreateInput{Name: "Empty", Permissions: []PermissionInput{}})
	requireCode(t, err, apperrors.CodeValidation)

	roles, err := h.repos.Roles.List(ctx, ws.Workspace.ID)
	require.NoError(t, err)
	for _, role := range roles {
		assert.NotEqual(t, "Empty", role.Name)
	}
}
