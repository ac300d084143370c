package repository

import (
	"context"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/persistence"
)

// TicketHistoryRepository stores audit entries. The ledger is append-only.
type TicketHistoryRepository interface {
	Append(ctx context.Context, entries []domain.TicketHistory) error
	ListByTicket(ctx context.Context, workspaceID, ticketID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	db persistence.DBTX
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(db persistence.DBTX) TicketHistoryRepository {
	return &ticketHistoryRepository{db: db}
}

func (r *ticketHistoryRepository) Append(ctx context.Context, entries []domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (workspace_id, ticket_id, field_changed, old_value, new_value, action, changed_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	conn := persistence.Conn(ctx, r.db)
	for i := range entries {
		h := &entries[i]
		if err := conn.QueryRow(ctx, query,
			h.WorkspaceID,
			h.TicketID,
			h.FieldChanged,
			h.OldValue,
			h.NewValue,
			h.Action,
			h.ChangedBy,
		).Scan(&h.ID, &h.CreatedAt); err != nil {
			return translate(err)
		}
	}
	return nil
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, workspaceID, ticketID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, workspace_id, ticket_id, field_changed, old_value, new_value, action, changed_by, created_at
        FROM ticket_history WHERE workspace_id=$1 AND ticket_id=$2 ORDER BY seq ASC`
	rows, err := persistence.Conn(ctx, r.db).Query(ctx, query, workspaceID, ticketID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	result := []domain.TicketHistory{}
	for rows.Next() {
		var history domain.TicketHistory
		if err := rows.Scan(
			&history.ID,
			&history.WorkspaceID,
			&history.TicketID,
			&history.FieldChanged,
			&history.OldValue,
			&history.NewValue,
			&history.Action,
			&history.ChangedBy,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
