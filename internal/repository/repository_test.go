package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workspace-tracker/internal/domain"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func TestPermissionEnsureUpserts(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("(?s)INSERT INTO permissions.*ON CONFLICT \\(entity, operation\\) DO UPDATE").
		WithArgs(domain.EntityTicket, domain.OperationCreate).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("perm-1"))

	perm, err := NewPermissionRepository(mock).Ensure(context.Background(), domain.EntityTicket, domain.OperationCreate)
	require.NoError(t, err)
	assert.Equal(t, "perm-1", perm.ID)
	assert.Equal(t, domain.PermissionKey{Entity: domain.EntityTicket, Operation: domain.OperationCreate}, perm.Key())
}

func TestWorkspaceCreateMapsUniqueViolation(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("INSERT INTO workspaces").
		WithArgs("Acme", "u-1", "u-2").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := NewWorkspaceRepository(mock).Create(context.Background(), &domain.Workspace{Name: "Acme", CreatedBy: "u-1", AdminID: "u-2"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestWorkspaceNameTakenIgnoresCase(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("LOWER\\(name\\)=LOWER\\(\\$1\\)").
		WithArgs("ACME").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	taken, err := NewWorkspaceRepository(mock).NameTaken(context.Background(), "ACME")
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestRoleDeleteMissingIsNotFound(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("DELETE FROM roles").
		WithArgs("role-1", "ws-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := NewRoleRepository(mock).Delete(context.Background(), "ws-1", "role-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssignmentCountByRole(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM user_roles").
		WithArgs("role-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	count, err := NewAssignmentRepository(mock).CountByRole(context.Background(), "role-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAssignmentDeleteScopesToRole(t *testing.T) {
	mock := newMock(t)
	roleID := "role-1"
	mock.ExpectExec("DELETE FROM user_roles").
		WithArgs("ws-1", "u-1", &roleID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	n, err := NewAssignmentRepository(mock).Delete(context.Background(), "ws-1", "u-1", &roleID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestAssignmentCreateDuplicateIsConflict(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("INSERT INTO user_roles").
		WithArgs("u-1", "role-1", "ws-1").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := NewAssignmentRepository(mock).Create(context.Background(), &domain.Assignment{UserID: "u-1", RoleID: "role-1", WorkspaceID: "ws-1"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestTicketGetForUpdateLocksRow(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM tickets WHERE id=\\$1 AND workspace_id=\\$2 FOR UPDATE").
		WithArgs("t-1", "ws-1").
		WillReturnError(pgx.ErrNoRows)

	_, err := NewTicketRepository(mock).GetForUpdate(context.Background(), "ws-1", "t-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTicketDeleteChildren(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("DELETE FROM tickets WHERE parent_id=\\$1").
		WithArgs("t-1", "ws-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := NewTicketRepository(mock).DeleteChildren(context.Background(), "ws-1", "t-1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestTicketListCountsWithFilters(t *testing.T) {
	mock := newMock(t)
	status := domain.TicketStatusOpen
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM tickets WHERE workspace_id=\\$1 AND status=\\$2 AND \\(LOWER\\(title\\) LIKE \\$3").
		WithArgs("ws-1", status, "%login%").
		WillReturnError(&pgconn.PgError{Code: "22P02"})

	_, _, err := NewTicketRepository(mock).List(context.Background(), "ws-1", domain.TicketFilter{
		Status:   &status,
		Query:    " Login ",
		Page:     1,
		PageSize: 20,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommentDeleteByTicket(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("DELETE FROM comments WHERE ticket_id=\\$1").
		WithArgs("t-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := NewCommentRepository(mock).DeleteByTicket(context.Background(), "t-1")
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestTicketCreateMissingReferenceIsNotFound(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("INSERT INTO tickets").
		WithArgs("ws-gone", "t", "d", domain.TicketStatusOpen, domain.TicketPriorityLow, domain.TicketTypeTask,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "u-1").
		WillReturnError(&pgconn.PgError{Code: "23503"})

	err := NewTicketRepository(mock).Create(context.Background(), &domain.Ticket{
		WorkspaceID: "ws-gone",
		Title:       "t",
		Description: "d",
		Status:      domain.TicketStatusOpen,
		Priority:    domain.TicketPriorityLow,
		Type:        domain.TicketTypeTask,
		CreatedBy:   "u-1",
	})
	assert.ErrorIs(t, err, ErrNotFound)
}
