package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/workspace-tracker/internal/diff"
	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/events"
	"github.com/spec-kit/workspace-tracker/internal/persistence"
	"github.com/spec-kit/workspace-tracker/internal/repository"
	apperrors "github.com/spec-kit/workspace-tracker/pkg/util/errorutil"
)

const (
	defaultPageSize    = 20
	maxPageSize        = 100
	maxTicketTitleSize = 200
)

// TicketService coordinates ticket workflows and their audit trail.
type TicketService struct {
	tx          persistence.Transactor
	authz       *Authorizer
	workspaces  repository.WorkspaceRepository
	tickets     repository.TicketRepository
	comments    repository.CommentRepository
	assignments repository.AssignmentRepository
	history     repository.TicketHistoryRepository
	writer      *HistoryWriter
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// TicketDependencies bundles repositories for the ticket service.
type TicketDependencies struct {
	Transactor     persistence.Transactor
	Authorizer     *Authorizer
	WorkspaceRepo  repository.WorkspaceRepository
	TicketRepo     repository.TicketRepository
	CommentRepo    repository.CommentRepository
	AssignmentRepo repository.AssignmentRepository
	HistoryRepo    repository.TicketHistoryRepository
	HistoryWriter  *HistoryWriter
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    string
	TicketType  string
	Status      *string
	AssignedTo  *string
	DueDate     *string
	ParentID    *string
}

// TicketListInput describes listing filters as received from callers.
type TicketListInput struct {
	Status     string
	Priority   string
	AssignedTo string
	Query      string
	Page       int
	PageSize   int
}

// TicketPage is one page of a ticket listing.
type TicketPage struct {
	Tickets  []domain.Ticket
	Total    int
	Page     int
	PageSize int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	writer := deps.HistoryWriter
	if writer == nil {
		writer = NewHistoryWriter(deps.HistoryRepo, nil)
	}
	return &TicketService{
		tx:          deps.Transactor,
		authz:       deps.Authorizer,
		workspaces:  deps.WorkspaceRepo,
		tickets:     deps.TicketRepo,
		comments:    deps.CommentRepo,
		assignments: deps.AssignmentRepo,
		history:     deps.HistoryRepo,
		writer:      writer,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
	}
}

// CreateTicket creates a ticket and records a CREATE row for every tracked
// field. The assignee defaults to the creator when the creator is a member.
func (s *TicketService) CreateTicket(ctx context.Context, identity domain.Identity, workspaceID string, input TicketCreateInput) (*domain.Ticket, error) {
	if err := s.authz.Require(ctx, identity, workspaceID, domain.EntityTicket, domain.OperationCreate); err != nil {
		return nil, err
	}

	ticket, err := buildTicket(workspaceID, identity.UserID, input)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, persistence.TxOptions{}, func(ctx context.Context) error {
		if _, err := s.workspaces.GetByID(ctx, workspaceID); err != nil {
			return notFoundOr(err, "workspace", map[string]any{"workspaceId": workspaceID})
		}
		if ticket.AssignedTo == nil && identity.UserID != "" {
			if _, err := s.assignments.Get(ctx, workspaceID, identity.UserID); err == nil {
				creator := identity.UserID
				ticket.AssignedTo = &creator
			} else if !errors.Is(err, repository.ErrNotFound) {
				return apperrors.MapError(err)
			}
		} else if ticket.AssignedTo != nil {
			if err := s.checkAssignee(ctx, workspaceID, *ticket.AssignedTo); err != nil {
				return err
			}
		}
		if ticket.ParentID != nil {
			if _, err := s.tickets.GetByID(ctx, workspaceID, *ticket.ParentID); err != nil {
				return notFoundOr(err, "parent ticket", map[string]any{"parentId": *ticket.ParentID})
			}
		}

		if err := s.tickets.Create(ctx, ticket); err != nil {
			return notFoundOr(err, "workspace", map[string]any{"workspaceId": workspaceID})
		}
		_, err := s.writer.Record(ctx, workspaceID, ticket.ID, identity.UserID, domain.HistoryActionCreate,
			diff.Snapshot(ticket.FieldValues(), diff.TicketFields))
		return apperrors.MapError(err)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket created", zap.String("ticket_id", ticket.ID), zap.String("workspace_id", workspaceID))
	s.publish(ctx, identity, ticket, events.EventTicketCreated, events.TicketCreatedPayload{
		Title:      ticket.Title,
		Priority:   ticket.Priority,
		AssignedTo: ticket.AssignedTo,
	})
	if ticket.AssignedTo != nil && *ticket.AssignedTo != identity.UserID {
		s.publish(ctx, identity, ticket, events.EventTicketAssigned, events.TicketAssignedPayload{
			Title:         ticket.Title,
			NewAssigneeID: ticket.AssignedTo,
		})
	}
	return ticket, nil
}

// UpdateTicket applies a partial update. Only keys present in patch are
// considered; a key mapped to nil clears the field. When nothing changes
// the stored ticket is returned and nothing is written.
func (s *TicketService) UpdateTicket(ctx context.Context, identity domain.Identity, workspaceID, ticketID string, patch diff.Patch) (*domain.Ticket, error) {
	if err := s.authz.Require(ctx, identity, workspaceID, domain.EntityTicket, domain.OperationUpdate); err != nil {
		return nil, err
	}

	clean, err := cleanPatch(patch)
	if err != nil {
		return nil, err
	}

	var (
		ticket      *domain.Ticket
		oldAssignee *string
		changes     []domain.FieldChange
	)
	err = s.tx.WithinTx(ctx, persistence.TxOptions{}, func(ctx context.Context) error {
		current, err := s.tickets.GetForUpdate(ctx, workspaceID, ticketID)
		if err != nil {
			return notFoundOr(err, "ticket", map[string]any{"ticketId": ticketID})
		}
		ticket = current
		oldAssignee = current.AssignedTo

		changes = diff.Diff(current.FieldValues(), clean, diff.TicketFields)
		if len(changes) == 0 {
			return nil
		}
		if err := s.checkReferences(ctx, current, changes); err != nil {
			return err
		}

		for _, c := range changes {
			if err := applyChange(current, c); err != nil {
				return err
			}
		}
		actor := identity.UserID
		current.UpdatedBy = &actor
		if err := s.tickets.Update(ctx, current); err != nil {
			return notFoundOr(err, "ticket", map[string]any{"ticketId": ticketID})
		}
		_, err = s.writer.Record(ctx, workspaceID, ticketID, identity.UserID, domain.HistoryActionUpdate, changes)
		return apperrors.MapError(err)
	})
	if err != nil {
		return nil, err
	}

	for _, c := range changes {
		if c.Field == domain.FieldAssignedTo && c.NewValue != nil {
			s.publish(ctx, identity, ticket, events.EventTicketAssigned, events.TicketAssignedPayload{
				Title:         ticket.Title,
				OldAssigneeID: oldAssignee,
				NewAssigneeID: ticket.AssignedTo,
			})
		}
	}
	if len(changes) > 0 {
		s.logger.Info("ticket updated", zap.String("ticket_id", ticketID), zap.Int("changes", len(changes)))
	}
	return ticket, nil
}

// DeleteTicket records the deletion, then removes the ticket together with
// its comments and sub-tickets. Sub-tickets get no history rows of their own.
func (s *TicketService) DeleteTicket(ctx context.Context, identity domain.Identity, workspaceID, ticketID string) error {
	if err := s.authz.Require(ctx, identity, workspaceID, domain.EntityTicket, domain.OperationDelete); err != nil {
		return err
	}

	var ticket *domain.Ticket
	err := s.tx.WithinTx(ctx, persistence.TxOptions{}, func(ctx context.Context) error {
		current, err := s.tickets.GetForUpdate(ctx, workspaceID, ticketID)
		if err != nil {
			return notFoundOr(err, "ticket", map[string]any{"ticketId": ticketID})
		}
		ticket = current

		before, after := "false", "true"
		deletion := []domain.FieldChange{{Field: domain.FieldDeleted, OldValue: &before, NewValue: &after}}
		if _, err := s.writer.Record(ctx, workspaceID, ticketID, identity.UserID, domain.HistoryActionDelete, deletion); err != nil {
			return apperrors.MapError(err)
		}
		if _, err := s.comments.DeleteByTicket(ctx, ticketID); err != nil {
			return apperrors.MapError(err)
		}
		children, err := s.tickets.DeleteChildren(ctx, workspaceID, ticketID)
		if err != nil {
			return apperrors.MapError(err)
		}
		if err := s.tickets.Delete(ctx, workspaceID, ticketID); err != nil {
			return notFoundOr(err, "ticket", map[string]any{"ticketId": ticketID})
		}
		s.logger.Debug("ticket subtree removed", zap.String("ticket_id", ticketID), zap.Int64("children", children))
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("ticket deleted", zap.String("ticket_id", ticketID), zap.String("workspace_id", workspaceID))
	s.publish(ctx, identity, ticket, events.EventTicketDeleted, events.TicketDeletedPayload{Title: ticket.Title})
	return nil
}

// ListTickets returns a filtered page of workspace tickets, newest first.
func (s *TicketService) ListTickets(ctx context.Context, identity domain.Identity, workspaceID string, input TicketListInput) (*TicketPage, error) {
	if err := s.authz.Require(ctx, identity, workspaceID, domain.EntityTicket, domain.OperationRead); err != nil {
		return nil, err
	}

	filter := domain.TicketFilter{
		Query:    strings.TrimSpace(input.Query),
		Page:     input.Page,
		PageSize: input.PageSize,
	}
	if input.Status != "" {
		status, ok := domain.ParseTicketStatus(input.Status)
		if !ok {
			return nil, apperrors.NewValidationError("invalid status filter", map[string]any{"status": input.Status})
		}
		filter.Status = &status
	}
	if input.Priority != "" {
		priority, ok := domain.ParseTicketPriority(input.Priority)
		if !ok {
			return nil, apperrors.NewValidationError("invalid priority filter", map[string]any{"priority": input.Priority})
		}
		filter.Priority = &priority
	}
	if assignee := strings.TrimSpace(input.AssignedTo); assignee != "" {
		filter.AssignedTo = &assignee
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	switch {
	case filter.PageSize <= 0:
		filter.PageSize = defaultPageSize
	case filter.PageSize > maxPageSize:
		filter.PageSize = maxPageSize
	}

	tickets, total, err := s.tickets.List(ctx, workspaceID, filter)
	if errors.Is(err, repository.ErrNotFound) {
		// Malformed ids in the scope or filters match nothing.
		tickets, total = []domain.Ticket{}, 0
	} else if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &TicketPage{Tickets: tickets, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

// GetTicket loads one ticket.
func (s *TicketService) GetTicket(ctx context.Context, identity domain.Identity, workspaceID, ticketID string) (*domain.Ticket, error) {
	if err := s.authz.Require(ctx, identity, workspaceID, domain.EntityTicket, domain.OperationRead); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, workspaceID, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", map[string]any{"ticketId": ticketID})
	}
	return ticket, nil
}

// GetSubtickets lists the direct children of a ticket.
func (s *TicketService) GetSubtickets(ctx context.Context, identity domain.Identity, workspaceID, ticketID string) ([]domain.Ticket, error) {
	if err := s.authz.Require(ctx, identity, workspaceID, domain.EntityTicket, domain.OperationRead); err != nil {
		return nil, err
	}
	if _, err := s.tickets.GetByID(ctx, workspaceID, ticketID); err != nil {
		return nil, notFoundOr(err, "ticket", map[string]any{"ticketId": ticketID})
	}
	children, err := s.tickets.ListChildren(ctx, workspaceID, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return children, nil
}

// ListTicketHistory returns the audit rows of a ticket in write order. Rows
// of deleted tickets stay readable.
func (s *TicketService) ListTicketHistory(ctx context.Context, identity domain.Identity, workspaceID, ticketID string) ([]domain.TicketHistory, error) {
	if err := s.authz.Require(ctx, identity, workspaceID, domain.EntityHistory, domain.OperationRead); err != nil {
		return nil, err
	}
	rows, err := s.history.ListByTicket(ctx, workspaceID, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(rows) == 0 {
		if _, err := s.tickets.GetByID(ctx, workspaceID, ticketID); err != nil {
			return nil, notFoundOr(err, "ticket", map[string]any{"ticketId": ticketID})
		}
	}
	return rows, nil
}

// checkReferences validates the parent and assignee a change set points at.
func (s *TicketService) checkReferences(ctx context.Context, ticket *domain.Ticket, changes []domain.FieldChange) error {
	for _, c := range changes {
		if c.NewValue == nil {
			continue
		}
		switch c.Field {
		case domain.FieldAssignedTo:
			if err := s.checkAssignee(ctx, ticket.WorkspaceID, *c.NewValue); err != nil {
				return err
			}
		case domain.FieldParentID:
			if err := s.checkParent(ctx, ticket, *c.NewValue); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *TicketService) checkAssignee(ctx context.Context, workspaceID, userID string) error {
	if _, err := s.assignments.Get(ctx, workspaceID, userID); err != nil {
		return notFoundOr(err, "assignee in workspace", map[string]any{"assignedTo": userID})
	}
	return nil
}

// checkParent rejects parents outside the workspace and parents that would
// make the ticket its own ancestor.
func (s *TicketService) checkParent(ctx context.Context, ticket *domain.Ticket, parentID string) error {
	if parentID == ticket.ID {
		return apperrors.NewValidationError("ticket cannot be its own parent", nil)
	}
	next := parentID
	for depth := 0; next != ""; depth++ {
		ancestor, err := s.tickets.GetByID(ctx, ticket.WorkspaceID, next)
		if err != nil {
			if depth == 0 {
				return notFoundOr(err, "parent ticket", map[string]any{"parentId": parentID})
			}
			return apperrors.MapError(err)
		}
		if ancestor.ParentID == nil {
			return nil
		}
		if *ancestor.ParentID == ticket.ID {
			return apperrors.NewValidationError("parent would create a cycle", map[string]any{"parentId": parentID})
		}
		next = *ancestor.ParentID
	}
	return nil
}

func (s *TicketService) publish(ctx context.Context, identity domain.Identity, ticket *domain.Ticket, eventType events.EventType, payload any) {
	if s.dispatcher == nil || ticket == nil {
		return
	}
	err := s.dispatcher.Publish(ctx, events.Event{
		Type:        eventType,
		WorkspaceID: ticket.WorkspaceID,
		TicketID:    ticket.ID,
		ActorID:     identity.UserID,
		Payload:     payload,
	})
	if err != nil {
		s.logger.Warn("publish ticket event", zap.Error(err), zap.String("type", string(eventType)))
	}
}

func buildTicket(workspaceID, actorID string, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	var missingFields []string
	if title == "" {
		missingFields = append(missingFields, domain.FieldTitle)
	}
	if description == "" {
		missingFields = append(missingFields, domain.FieldDescription)
	}
	if strings.TrimSpace(input.Priority) == "" {
		missingFields = append(missingFields, domain.FieldPriority)
	}
	if strings.TrimSpace(input.TicketType) == "" {
		missingFields = append(missingFields, domain.FieldTicketType)
	}
	if len(missingFields) > 0 {
		return nil, apperrors.NewValidationError("missing required fields", map[string]any{"fields": missingFields})
	}
	if len(title) > maxTicketTitleSize {
		return nil, apperrors.NewValidationError("title too long", map[string]any{"max": maxTicketTitleSize})
	}

	priority, ok := domain.ParseTicketPriority(input.Priority)
	if !ok {
		return nil, invalidEnum(domain.FieldPriority, input.Priority)
	}
	ticketType, ok := domain.ParseTicketType(input.TicketType)
	if !ok {
		return nil, invalidEnum(domain.FieldTicketType, input.TicketType)
	}
	status := domain.TicketStatusOpen
	if input.Status != nil && strings.TrimSpace(*input.Status) != "" {
		parsed, ok := domain.ParseTicketStatus(*input.Status)
		if !ok {
			return nil, invalidEnum(domain.FieldStatus, *input.Status)
		}
		status = parsed
	}

	ticket := &domain.Ticket{
		WorkspaceID: workspaceID,
		Title:       title,
		Description: description,
		Status:      status,
		Priority:    priority,
		Type:        ticketType,
		AssignedTo:  optionalID(input.AssignedTo),
		ParentID:    optionalID(input.ParentID),
		CreatedBy:   actorID,
	}
	if input.DueDate != nil {
		if norm := diff.Normalize(diff.KindDate, *input.DueDate); norm != nil {
			due, err := time.Parse(diff.TimestampLayout, *norm)
			if err != nil {
				return nil, apperrors.NewInternalError(err)
			}
			ticket.DueDate = &due
		}
	}
	return ticket, nil
}

// cleanPatch validates the shape of an update and trims its values. Keys
// outside the tracked set are dropped.
func cleanPatch(patch diff.Patch) (diff.Patch, error) {
	if _, ok := patch["workspace_id"]; ok {
		return nil, apperrors.NewValidationError("workspace_id cannot be changed", nil)
	}
	clean := make(diff.Patch, len(patch))
	for key, raw := range patch {
		switch key {
		case domain.FieldTitle, domain.FieldDescription:
			s, ok := raw.(string)
			if !ok || strings.TrimSpace(s) == "" {
				return nil, apperrors.NewValidationError(key+" must be a non-empty string", nil)
			}
			if key == domain.FieldTitle && len(strings.TrimSpace(s)) > maxTicketTitleSize {
				return nil, apperrors.NewValidationError("title too long", map[string]any{"max": maxTicketTitleSize})
			}
			clean[key] = strings.TrimSpace(s)
		case domain.FieldStatus, domain.FieldPriority, domain.FieldTicketType:
			s, ok := raw.(string)
			if !ok || !validEnum(key, s) {
				return nil, invalidEnum(key, raw)
			}
			clean[key] = strings.TrimSpace(s)
		case domain.FieldAssignedTo, domain.FieldParentID:
			if raw == nil {
				clean[key] = nil
				continue
			}
			s, ok := raw.(string)
			if !ok {
				return nil, apperrors.NewValidationError(key+" must be a string or null", nil)
			}
			if id := optionalID(&s); id != nil {
				clean[key] = *id
			} else {
				clean[key] = nil
			}
		case domain.FieldDueDate:
			if raw == nil {
				clean[key] = nil
				continue
			}
			s, ok := raw.(string)
			if !ok {
				return nil, apperrors.NewValidationError("due_date must be a string or null", nil)
			}
			clean[key] = s
		}
	}
	return clean, nil
}

func validEnum(field, raw string) bool {
	var ok bool
	switch field {
	case domain.FieldStatus:
		_, ok = domain.ParseTicketStatus(raw)
	case domain.FieldPriority:
		_, ok = domain.ParseTicketPriority(raw)
	case domain.FieldTicketType:
		_, ok = domain.ParseTicketType(raw)
	}
	return ok
}

// applyChange copies a normalized change onto the ticket.
func applyChange(t *domain.Ticket, c domain.FieldChange) error {
	value := c.NewValue
	switch c.Field {
	case domain.FieldTitle:
		t.Title = *value
	case domain.FieldDescription:
		t.Description = *value
	case domain.FieldStatus:
		t.Status = domain.TicketStatus(*value)
	case domain.FieldPriority:
		t.Priority = domain.TicketPriority(*value)
	case domain.FieldTicketType:
		t.Type = domain.TicketType(*value)
	case domain.FieldAssignedTo:
		t.AssignedTo = value
	case domain.FieldParentID:
		t.ParentID = value
	case domain.FieldDueDate:
		if value == nil {
			t.DueDate = nil
			return nil
		}
		due, err := time.Parse(diff.TimestampLayout, *value)
		if err != nil {
			return apperrors.NewInternalError(fmt.Errorf("parse normalized due date: %w", err))
		}
		t.DueDate = &due
	}
	return nil
}

func optionalID(v *string) *string {
	if v == nil {
		return nil
	}
	id := strings.TrimSpace(*v)
	if id == "" {
		return nil
	}
	return &id
}

func invalidEnum(field string, raw any) error {
	return apperrors.NewValidationError("invalid "+field, map[string]any{"value": raw})
}
