package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/repository"
)

type ticketRepo struct{ s *Store }

func (r *ticketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.data.workspaces[ticket.WorkspaceID]; !ok {
		return repository.ErrNotFound
	}
	ticket.ID = uuid.NewString()
	now := r.s.now()
	ticket.CreatedAt, ticket.UpdatedAt = now, now
	r.s.data.tickets[ticket.ID] = *ticket
	return nil
}

func (r *ticketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.data.tickets[ticket.ID]
	if !ok || stored.WorkspaceID != ticket.WorkspaceID {
		return repository.ErrNotFound
	}
	ticket.CreatedAt = stored.CreatedAt
	ticket.CreatedBy = stored.CreatedBy
	ticket.UpdatedAt = r.s.now()
	r.s.data.tickets[ticket.ID] = *ticket
	return nil
}

func (r *ticketRepo) get(workspaceID, id string) (*domain.Ticket, error) {
	stored, ok := r.s.data.tickets[id]
	if !ok || stored.WorkspaceID != workspaceID {
		return nil, repository.ErrNotFound
	}
	return &stored, nil
}

func (r *ticketRepo) GetByID(ctx context.Context, workspaceID, id string) (*domain.Ticket, error) {
	defer r.s.lock(ctx)()
	return r.get(workspaceID, id)
}

// GetForUpdate needs no row lock: writers already hold the store lock.
func (r *ticketRepo) GetForUpdate(ctx context.Context, workspaceID, id string) (*domain.Ticket, error) {
	defer r.s.lock(ctx)()
	return r.get(workspaceID, id)
}

func (r *ticketRepo) Delete(ctx context.Context, workspaceID, id string) error {
	defer r.s.lock(ctx)()

	if _, err := r.get(workspaceID, id); err != nil {
		return err
	}
	r.s.removeTicket(id)
	return nil
}

func (r *ticketRepo) DeleteChildren(ctx context.Context, workspaceID, id string) (int64, error) {
	defer r.s.lock(ctx)()

	var removed int64
	for childID, t := range r.s.data.tickets {
		if t.ParentID != nil && *t.ParentID == id && t.WorkspaceID == workspaceID {
			removed++
			r.s.removeTicket(childID)
		}
	}
	return removed, nil
}

// removeTicket deletes a ticket, its comments and its descendants, the way
// the relational schema cascades.
func (s *Store) removeTicket(id string) {
	delete(s.data.tickets, id)
	for commentID, c := range s.data.comments {
		if c.TicketID == id {
			delete(s.data.comments, commentID)
		}
	}
	for childID, t := range s.data.tickets {
		if t.ParentID != nil && *t.ParentID == id {
			s.removeTicket(childID)
		}
	}
}

func (r *ticketRepo) ListChildren(ctx context.Context, workspaceID, parentID string) ([]domain.Ticket, error) {
	defer r.s.lock(ctx)()

	result := []domain.Ticket{}
	for _, t := range r.s.data.tickets {
		if t.WorkspaceID == workspaceID && t.ParentID != nil && *t.ParentID == parentID {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *ticketRepo) List(ctx context.Context, workspaceID string, filter domain.TicketFilter) ([]domain.Ticket, int, error) {
	defer r.s.lock(ctx)()

	q := strings.ToLower(strings.TrimSpace(filter.Query))
	all := []domain.Ticket{}
	for _, t := range r.s.data.tickets {
		if t.WorkspaceID != workspaceID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && t.Priority != *filter.Priority {
			continue
		}
		if filter.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(t.Title), q) && !strings.Contains(strings.ToLower(t.Description), q) {
			continue
		}
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	total := len(all)
	start := filter.Offset()
	if start > total {
		start = total
	}
	end := total
	if filter.PageSize > 0 && start+filter.PageSize < total {
		end = start + filter.PageSize
	}
	return all[start:end], total, nil
}

type historyRepo struct{ s *Store }

func (r *historyRepo) Append(ctx context.Context, entries []domain.TicketHistory) error {
	defer r.s.lock(ctx)()

	for i := range entries {
		entries[i].ID = uuid.NewString()
		entries[i].CreatedAt = r.s.now()
		r.s.data.history = append(r.s.data.history, entries[i])
	}
	return nil
}

func (r *historyRepo) ListByTicket(ctx context.Context, workspaceID, ticketID string) ([]domain.TicketHistory, error) {
	defer r.s.lock(ctx)()

	result := []domain.TicketHistory{}
	for _, h := range r.s.data.history {
		if h.WorkspaceID == workspaceID && h.TicketID == ticketID {
			result = append(result, h)
		}
	}
	return result, nil
}

type commentRepo struct{ s *Store }

func (r *commentRepo) Create(ctx context.Context, comment *domain.Comment) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.data.tickets[comment.TicketID]; !ok {
		return repository.ErrNotFound
	}
	comment.ID = uuid.NewString()
	now := r.s.now()
	comment.CreatedAt, comment.UpdatedAt = now, now
	stored := *comment
	stored.Replies = nil
	r.s.data.comments[comment.ID] = stored
	return nil
}

func (r *commentRepo) Update(ctx context.Context, comment *domain.Comment) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.data.comments[comment.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Message = comment.Message
	stored.UpdatedAt = r.s.now()
	r.s.data.comments[comment.ID] = stored
	comment.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *commentRepo) GetByID(ctx context.Context, workspaceID, id string) (*domain.Comment, error) {
	defer r.s.lock(ctx)()

	stored, ok := r.s.data.comments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if t, ok := r.s.data.tickets[stored.TicketID]; !ok || t.WorkspaceID != workspaceID {
		return nil, repository.ErrNotFound
	}
	return &stored, nil
}

func (r *commentRepo) Delete(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.data.comments[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.comments, id)
	for replyID, c := range r.s.data.comments {
		if c.ParentID != nil && *c.ParentID == id {
			delete(r.s.data.comments, replyID)
		}
	}
	return nil
}

func (r *commentRepo) DeleteByTicket(ctx context.Context, ticketID string) (int64, error) {
	defer r.s.lock(ctx)()

	var removed int64
	for id, c := range r.s.data.comments {
		if c.TicketID == ticketID {
			delete(r.s.data.comments, id)
			removed++
		}
	}
	return removed, nil
}

func (r *commentRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	defer r.s.lock(ctx)()

	result := []domain.Comment{}
	for _, c := range r.s.data.comments {
		if c.TicketID == ticketID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
