package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workspace-tracker/internal/diff"
	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/repository"
	apperrors "github.com/spec-kit/workspace-tracker/pkg/util/errorutil"
)

func strPtr(s string) *string { return &s }

func createTicket(t *testing.T, h *harness, id domain.Identity, workspaceID string, input TicketCreateInput) *domain.Ticket {
	t.Helper()
	if input.Title == "" {
		input.Title = "Printer on fire"
	}
	if input.Description == "" {
		input.Description = "Third floor"
	}
	if input.Priority == "" {
		input.Priority = "medium"
	}
	if input.TicketType == "" {
		input.TicketType = "task"
	}
	ticket, err := h.tickets.CreateTicket(context.Background(), id, workspaceID, input)
	require.NoError(t, err)
	return ticket
}

func historyOf(t *testing.T, h *harness, workspaceID, ticketID string) []domain.TicketHistory {
	t.Helper()
	rows, err := h.tickets.ListTicketHistory(context.Background(), h.root, workspaceID, ticketID)
	require.NoError(t, err)
	return rows
}

func fields(rows []domain.TicketHistory) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.FieldChanged)
	}
	return out
}

func TestCreateTicketRecordsSnapshot(t *testing.T) {
	h := newHarness(t)
	ws, admin := h.workspace(t, "Acme")
	ticket := createTicket(t, h, admin, ws.Workspace.ID, TicketCreateInput{DueDate: strPtr("2025-03-01")})

	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, domain.TicketTypeTask, ticket.Type)
	require.NotNil(t, ticket.AssignedTo)
	assert.Equal(t, admin.UserID, *ticket.AssignedTo)

	rows := historyOf(t, h, ws.Workspace.ID, ticket.ID)
	require.Len(t, rows, len(diff.TicketFields))
	for i, f := range diff.TicketFields {
		assert.Equal(t, f.Name, rows[i].FieldChanged)
		assert.Equal(t, domain.HistoryActionCreate, rows[i].Action)
		assert.Nil(t, rows[i].OldValue)
		assert.Equal(t, admin.UserID, rows[i].ChangedBy)
	}
	assert.Equal(t, "2025-03-01T00:00:00.000Z", *rows[5].NewValue)
	assert.Nil(t, rows[6].NewValue)
}

func TestCreateTicketValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")
	other, _ := h.workspace(t, "Globex")
	foreign := createTicket(t, h, h.root, other.Workspace.ID, TicketCreateInput{})
	outsider := h.member(t, "outsider@example.com")

	_, err := h.tickets.CreateTicket(ctx, admin, ws.Workspace.ID, TicketCreateInput{Title: "x"})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.tickets.CreateTicket(ctx, admin, ws.Workspace.ID, TicketCreateInput{
		Title: "x", Description: "y", Priority: "extreme", TicketType: "bug",
	})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.tickets.CreateTicket(ctx, admin, ws.Workspace.ID, TicketCreateInput{
		Title: "x", Description: "y", Priority: "low", TicketType: "bug", ParentID: &foreign.ID,
	})
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = h.tickets.CreateTicket(ctx, admin, ws.Workspace.ID, TicketCreateInput{
		Title: "x", Description: "y", Priority: "low", TicketType: "bug", AssignedTo: &outsider.UserID,
	})
	requireCode(t, err, apperrors.CodeNotFound)

	page, err := h.tickets.ListTickets(ctx, admin, ws.Workspace.ID, TicketListInput{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestSuperAdminTicketHasNoDefaultAssignee(t *testing.T) {
	h := newHarness(t)
	ws, _ := h.workspace(t, "Acme")

	ticket := createTicket(t, h, h.root, ws.Workspace.ID, TicketCreateInput{})
	assert.Nil(t, ticket.AssignedTo)
}

func TestUpdateTicketRecordsChangesInFieldOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")
	wsID := ws.Workspace.ID
	ticket := createTicket(t, h, admin, wsID, TicketCreateInput{})

	updated, err := h.tickets.UpdateTicket(ctx, admin, wsID, ticket.ID, diff.Patch{
		"ticket_type": "bug",
		"due_date":    "2025-01-02T03:04:05Z",
		"status":      "in_progress",
		"title":       "  Printer on fire again ",
		"assigned_to": nil,
		"color":       "red",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
	assert.Equal(t, domain.TicketTypeBug, updated.Type)
	assert.Equal(t, "Printer on fire again", updated.Title)
	assert.Nil(t, updated.AssignedTo)
	require.NotNil(t, updated.UpdatedBy)
	assert.Equal(t, admin.UserID, *updated.UpdatedBy)

	rows := historyOf(t, h, wsID, ticket.ID)[len(diff.TicketFields):]
	assert.Equal(t, []string{"title", "status", "assigned_to", "due_date", "ticket_type"}, fields(rows))
	assert.Equal(t, "OPEN", *rows[1].OldValue)
	assert.Equal(t, "IN_PROGRESS", *rows[1].NewValue)
	assert.Equal(t, admin.UserID, *rows[2].OldValue)
	assert.Nil(t, rows[2].NewValue)
	assert.Nil(t, rows[3].OldValue)
	assert.Equal(t, "2025-01-02T03:04:05.000Z", *rows[3].NewValue)
	for _, r := range rows {
		assert.Equal(t, domain.HistoryActionUpdate, r.Action)
	}
}

func TestUpdateTicketNoopWritesNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")
	wsID := ws.Workspace.ID
	ticket := createTicket(t, h, admin, wsID, TicketCreateInput{DueDate: strPtr("2025-03-01T00:00:00Z")})

	got, err := h.tickets.UpdateTicket(ctx, admin, wsID, ticket.ID, diff.Patch{
		"title":    ticket.Title,
		"status":   "open",
		"due_date": "2025-03-01",
	})
	require.NoError(t, err)
	assert.Equal(t, ticket.UpdatedAt, got.UpdatedAt)
	assert.Nil(t, got.UpdatedBy)
	assert.Len(t, historyOf(t, h, wsID, ticket.ID), len(diff.TicketFields))
}

func TestUpdateTicketValidatesReferences(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")
	wsID := ws.Workspace.ID
	other, _ := h.workspace(t, "Globex")
	foreign := createTicket(t, h, h.root, other.Workspace.ID, TicketCreateInput{})
	outsider := h.member(t, "outsider@example.com")

	root := createTicket(t, h, admin, wsID, TicketCreateInput{Title: "root"})
	child := createTicket(t, h, admin, wsID, TicketCreateInput{Title: "child", ParentID: &root.ID})

	_, err := h.tickets.UpdateTicket(ctx, admin, wsID, root.ID, diff.Patch{"parent_id": foreign.ID})
	requireCode(t, err, apperrors.CodeNotFound)
	_, err = h.tickets.UpdateTicket(ctx, admin, wsID, root.ID, diff.Patch{"parent_id": root.ID})
	requireCode(t, err, apperrors.CodeValidation)
	_, err = h.tickets.UpdateTicket(ctx, admin, wsID, root.ID, diff.Patch{"parent_id": child.ID})
	requireCode(t, err, apperrors.CodeValidation)
	_, err = h.tickets.UpdateTicket(ctx, admin, wsID, root.ID, diff.Patch{"assigned_to": outsider.UserID})
	requireCode(t, err, apperrors.CodeNotFound)
	_, err = h.tickets.UpdateTicket(ctx, admin, wsID, root.ID, diff.Patch{"title": nil})
	requireCode(t, err, apperrors.CodeValidation)
	_, err = h.tickets.UpdateTicket(ctx, admin, wsID, root.ID, diff.Patch{"workspace_id": other.Workspace.ID})
	requireCode(t, err, apperrors.CodeValidation)
	_, err = h.tickets.UpdateTicket(ctx, admin, wsID, foreign.ID, diff.Patch{"title": "mine now"})
	requireCode(t, err, apperrors.CodeNotFound)

	assert.Len(t, historyOf(t, h, wsID, root.ID), len(diff.TicketFields))
}

type failingHistory struct {
	repository.TicketHistoryRepository
}

func (failingHistory) Append(context.Context, []domain.TicketHistory) error {
	return errors.New("disk full")
}

func TestUpdateTicketRollsBackWhenHistoryFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")
	wsID := ws.Workspace.ID
	ticket := createTicket(t, h, admin, wsID, TicketCreateInput{})

	broken := NewTicketService(TicketDependencies{
		Transactor:     h.store,
		Authorizer:     h.authz,
		WorkspaceRepo:  h.repos.Workspaces,
		TicketRepo:     h.repos.Tickets,
		CommentRepo:    h.repos.Comments,
		AssignmentRepo: h.repos.Assignments,
		HistoryRepo:    h.repos.History,
		HistoryWriter:  NewHistoryWriter(failingHistory{h.repos.History}, nil),
	})
	_, err := broken.UpdateTicket(ctx, admin, wsID, ticket.ID, diff.Patch{"status": "closed"})
	requireCode(t, err, apperrors.CodeInternal)

	err = broken.DeleteTicket(ctx, admin, wsID, ticket.ID)
	requireCode(t, err, apperrors.CodeInternal)

	stored, err := h.tickets.GetTicket(ctx, admin, wsID, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
}

func TestDeleteTicketCascadesAndKeepsLedger(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")
	wsID := ws.Workspace.ID
	parent := createTicket(t, h, admin, wsID, TicketCreateInput{Title: "parent"})
	child := createTicket(t, h, admin, wsID, TicketCreateInput{Title: "child", ParentID: &parent.ID})
	grandchild := createTicket(t, h, admin, wsID, TicketCreateInput{Title: "grandchild", ParentID: &child.ID})
	_, err := h.comments.CreateComment(ctx, admin, wsID, parent.ID, "on it", nil)
	require.NoError(t, err)

	require.NoError(t, h.tickets.DeleteTicket(ctx, admin, wsID, parent.ID))

	for _, id := range []string{parent.ID, child.ID, grandchild.ID} {
		_, err := h.tickets.GetTicket(ctx, admin, wsID, id)
		requireCode(t, err, apperrors.CodeNotFound)
	}
	comments, err := h.repos.Comments.ListByTicket(ctx, parent.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)

	rows := historyOf(t, h, wsID, parent.ID)
	last := rows[len(rows)-1]
	assert.Equal(t, domain.HistoryActionDelete, last.Action)
	assert.Equal(t, domain.FieldDeleted, last.FieldChanged)
	assert.Equal(t, "false", *last.OldValue)
	assert.Equal(t, "true", *last.NewValue)

	childRows := historyOf(t, h, wsID, child.ID)
	assert.Len(t, childRows, len(diff.TicketFields))

	err = h.tickets.DeleteTicket(ctx, admin, wsID, parent.ID)
	requireCode(t, err, apperrors.CodeNotFound)
	_, err = h.tickets.ListTicketHistory(ctx, admin, wsID, "never-existed")
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestListTicketsFiltersAndPages(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")
	wsID := ws.Workspace.ID
	for _, title := range []string{"alpha bug", "beta", "gamma BUG", "delta"} {
		createTicket(t, h, admin, wsID, TicketCreateInput{Title: title})
	}
	urgent := createTicket(t, h, admin, wsID, TicketCreateInput{Title: "epsilon", Priority: "urgent"})

	page, err := h.tickets.ListTickets(ctx, admin, wsID, TicketListInput{Query: "bug"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, "gamma BUG", page.Tickets[0].Title)

	page, err = h.tickets.ListTickets(ctx, admin, wsID, TicketListInput{Priority: "URGENT"})
	require.NoError(t, err)
	require.Len(t, page.Tickets, 1)
	assert.Equal(t, urgent.ID, page.Tickets[0].ID)

	page, err = h.tickets.ListTickets(ctx, admin, wsID, TicketListInput{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Tickets, 2)
	assert.Equal(t, "beta", page.Tickets[1].Title)

	_, err = h.tickets.ListTickets(ctx, admin, wsID, TicketListInput{Status: "sleeping"})
	requireCode(t, err, apperrors.CodeValidation)
}

func TestGetSubtickets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws, admin := h.workspace(t, "Acme")
	wsID := ws.Workspace.ID
	parent := createTicket(t, h, admin, wsID, TicketCreateInput{Title: "parent"})
	first := createTicket(t, h, admin, wsID, TicketCreateInput{Title: "first", ParentID: &parent.ID})
	second := createTicket(t, h, admin, wsID, TicketCreateInput{Title: "second", ParentID: &parent.ID})

	children, err := h.tickets.GetSubtickets(ctx, admin, wsID, parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, first.ID, children[0].ID)
	assert.Equal(t, second.ID, children[1].ID)

	_, err = h.tickets.GetSubtickets(ctx, admin, wsID, "missing")
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestCreateTicketInMissingWorkspaceIsNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.tickets.CreateTicket(context.Background(), h.root, "3f1c7a52-0000-4000-8000-000000000000", TicketCreateInput{
		Title:       "orphan",
		Description: "nowhere",
		Priority:    "low",
		TicketType:  "task",
	})
	requireCode(t, err, apperrors.CodeNotFound)
}

type unmatchedTickets struct {
	repository.TicketRepository
}

func (unmatchedTickets) List(context.Context, string, domain.TicketFilter) ([]domain.Ticket, int, error) {
	return nil, 0, repository.ErrNotFound
}

func TestListTicketsTreatsUnmatchedIdsAsEmpty(t *testing.T) {
	h := newHarness(t)
	ws, admin := h.workspace(t, "Acme")
	svc := NewTicketService(TicketDependencies{
		Transactor:     h.store,
		Authorizer:     h.authz,
		WorkspaceRepo:  h.repos.Workspaces,
		TicketRepo:     unmatchedTickets{h.repos.Tickets},
		AssignmentRepo: h.repos.Assignments,
		HistoryRepo:    h.repos.History,
	})

	page, err := svc.ListTickets(context.Background(), admin, ws.Workspace.ID, TicketListInput{AssignedTo: "not-a-uuid"})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.Empty(t, page.Tickets)
}
