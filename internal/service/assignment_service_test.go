package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/events"
	apperrors "github.com/spec-kit/workspace-tracker/pkg/util/errorutil"
)

func assignmentCount(t *testing.T, h *harness, workspaceID, userID string) int {
	t.Helper()
	list, err := h.repos.Assignments.ListForUsers(context.Background(), workspaceID, []string{userID})
	require.NoError(t, err)
	return len(list)
}

func TestAssignRolesLastRoleWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")
	wsID := ws.Workspace.ID
	member := h.roleNamed(t, wsID, "Member")
	auditor, err := h.roles.CreateRole(ctx, admin, wsID, RoleCreateInput{Name: "Auditor", Permissions: readTickets})
	require.NoError(t, err)
	u1 := h.member(t, "u1@example.com")
	u2 := h.member(t, "u2@example.com")

	result, err := h.assignments.AssignRoles(ctx, admin, wsID, BulkAssignInput{
		UserIDs: []string{u1.UserID, u2.UserID, u1.UserID},
		RoleIDs: []string{member.ID, member.ID, auditor.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	require.Len(t, result.Assignments, 2)

	got, err := h.repos.Assignments.Get(ctx, wsID, u1.UserID)
	require.NoError(t, err)
	assert.Equal(t, auditor.ID, got.RoleID)
	for _, a := range result.Assignments {
		require.NotNil(t, a.Role)
		require.NotNil(t, a.User)
		assert.Equal(t, a.UserID, a.User.ID)
	}
}

func TestAssignRolesValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")
	wsID := ws.Workspace.ID
	other, _ := h.workspace(t, "Globex")
	member := h.roleNamed(t, wsID, "Member")
	foreign := h.roleNamed(t, other.Workspace.ID, "Member")
	user := h.member(t, "user@example.com")

	_, err := h.assignments.AssignRoles(ctx, admin, wsID, BulkAssignInput{})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.assignments.AssignRoles(ctx, admin, wsID, BulkAssignInput{UserIDs: []string{user.UserID}, RoleIDs: []string{}})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.assignments.AssignRoles(ctx, admin, wsID, BulkAssignInput{
		UserIDs: []string{user.UserID},
		RoleIDs: []string{foreign.ID},
	})
	requireCode(t, err, apperrors.CodeNotFound)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, []string{foreign.ID}, de.Details["invalidRoleIds"])

	_, err = h.assignments.AssignRoles(ctx, admin, wsID, BulkAssignInput{
		UserIDs: []string{user.UserID, "ghost"},
		RoleIDs: []string{member.ID, member.ID},
	})
	requireCode(t, err, apperrors.CodeNotFound)
	assert.Equal(t, []string{"ghost"}, apperrors.ToDomainError(err).Details["missingUsers"])
	assert.Zero(t, assignmentCount(t, h, wsID, user.UserID))
}

func TestAssignmentSequencesKeepOneRolePerUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")
	wsID := ws.Workspace.ID
	member := h.roleNamed(t, wsID, "Member")
	auditor, err := h.roles.CreateRole(ctx, admin, wsID, RoleCreateInput{Name: "Auditor", Permissions: readTickets})
	require.NoError(t, err)
	user := h.member(t, "user@example.com")

	steps := []func() error{
		func() error {
			_, err := h.assignments.AssignRoles(ctx, admin, wsID, BulkAssignInput{UserIDs: []string{user.UserID}, RoleIDs: []string{member.ID}})
			return err
		},
		func() error { _, err := h.assignments.SetUserRole(ctx, admin, wsID, user.UserID, auditor.ID); return err },
		func() error { _, err := h.assignments.SetUserRole(ctx, admin, wsID, user.UserID, auditor.ID); return err },
		func() error {
			_, err := h.assignments.AssignRoles(ctx, admin, wsID, BulkAssignInput{UserIDs: []string{user.UserID}, RoleIDs: []string{member.ID}})
			return err
		},
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		assert.Equal(t, 1, assignmentCount(t, h, wsID, user.UserID), "step %d", i)
	}

	_, err = h.assignments.RemoveUserRole(ctx, admin, wsID, user.UserID, &auditor.ID)
	requireCode(t, err, apperrors.CodeNotFound)
	assert.Equal(t, 1, assignmentCount(t, h, wsID, user.UserID))

	removed, err := h.assignments.RemoveUserRole(ctx, admin, wsID, user.UserID, &member.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
	assert.Zero(t, assignmentCount(t, h, wsID, user.UserID))
}

func TestConcurrentReassignmentLeavesExactlyOneRole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")
	wsID := ws.Workspace.ID
	member := h.roleNamed(t, wsID, "Member")
	auditor, err := h.roles.CreateRole(ctx, admin, wsID, RoleCreateInput{Name: "Auditor", Permissions: readTickets})
	require.NoError(t, err)
	user := h.member(t, "user@example.com")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		roleID := member.ID
		if i%2 == 0 {
			roleID = auditor.ID
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.assignments.SetUserRole(ctx, admin, wsID, user.UserID, roleID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, assignmentCount(t, h, wsID, user.UserID))
}

func TestAdminRoleGuard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")
	wsID := ws.Workspace.ID
	adminRole := h.roleNamed(t, wsID, domain.AdminRoleName)
	member := h.roleNamed(t, wsID, "Member")
	deputy := h.member(t, "deputy@example.com")

	_, err := h.assignments.SetUserRole(ctx, admin, wsID, deputy.UserID, adminRole.ID)
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = h.assignments.AssignRoles(ctx, admin, wsID, BulkAssignInput{UserIDs: []string{deputy.UserID}, RoleIDs: []string{adminRole.ID}})
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = h.assignments.SetUserRole(ctx, h.root, wsID, deputy.UserID, adminRole.ID)
	require.NoError(t, err)

	// A workspace Admin cannot demote or remove another Admin.
	_, err = h.assignments.SetUserRole(ctx, admin, wsID, deputy.UserID, member.ID)
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = h.assignments.RemoveUserRole(ctx, admin, wsID, deputy.UserID, nil)
	requireCode(t, err, apperrors.CodeForbidden)

	got, err := h.repos.Assignments.Get(ctx, wsID, deputy.UserID)
	require.NoError(t, err)
	assert.Equal(t, adminRole.ID, got.RoleID)

	removed, err := h.assignments.RemoveUserRole(ctx, h.root, wsID, deputy.UserID, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
}

func TestSetUserRoleNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")
	wsID := ws.Workspace.ID
	member := h.roleNamed(t, wsID, "Member")
	user := h.member(t, "user@example.com")

	_, err := h.assignments.SetUserRole(ctx, admin, wsID, "ghost", member.ID)
	requireCode(t, err, apperrors.CodeNotFound)
	_, err = h.assignments.SetUserRole(ctx, admin, wsID, user.UserID, "ghost-role")
	requireCode(t, err, apperrors.CodeNotFound)
	_, err = h.assignments.SetUserRole(ctx, admin, wsID, "", member.ID)
	requireCode(t, err, apperrors.CodeValidation)
	_, err = h.assignments.RemoveUserRole(ctx, admin, wsID, "ghost", nil)
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestAssignmentPublishesEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")
	member := h.roleNamed(t, ws.Workspace.ID, "Member")
	user := h.member(t, "user@example.com")

	var got []events.RoleAssignedPayload
	h.dispatcher.Subscribe(events.EventRoleAssigned, func(_ context.Context, e events.Event) error {
		got = append(got, e.Payload.(events.RoleAssignedPayload))
		return nil
	})

	_, err := h.assignments.SetUserRole(ctx, admin, ws.Workspace.ID, user.UserID, member.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Member", got[0].RoleName)
	assert.Equal(t, user.UserID, got[0].UserID)
}

func TestRemoveUserRoleRequiresMatchingRole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")
	wsID := ws.Workspace.ID
	member := h.roleNamed(t, wsID, "Member")
	auditor, err := h.roles.CreateRole(ctx, admin, wsID, RoleCreateInput{Name: "Auditor", Permissions: readTickets})
	require.NoError(t, err)
	user := h.member(t, "user@example.com")

	_, err = h.assignments.RemoveUserRole(ctx, admin, wsID, user.UserID, &member.ID)
	requireCode(t, err, apperrors.CodeNotFound)

	removed, err := h.assignments.RemoveUserRole(ctx, admin, wsID, user.UserID, nil)
	require.NoError(t, err)
	assert.Zero(t, removed)

	_, err = h.assignments.SetUserRole(ctx, admin, wsID, user.UserID, member.ID)
	require.NoError(t, err)
	_, err = h.assignments.RemoveUserRole(ctx, admin, wsID, user.UserID, &auditor.ID)
	requireCode(t, err, apperrors.CodeNotFound)
	assert.Equal(t, 1, assignmentCount(t, h, wsID, user.UserID))
}
