package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/persistence"
)

// TicketRepository encapsulates ticket persistence. Every lookup is scoped
// to a workspace; tickets of other workspaces are reported as ErrNotFound.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, workspaceID, id string) (*domain.Ticket, error)
	// GetForUpdate reads the ticket and locks it until the enclosing
	// transaction ends.
	GetForUpdate(ctx context.Context, workspaceID, id string) (*domain.Ticket, error)
	Delete(ctx context.Context, workspaceID, id string) error
	// DeleteChildren removes every sub-ticket below id.
	DeleteChildren(ctx context.Context, workspaceID, id string) (int64, error)
	ListChildren(ctx context.Context, workspaceID, parentID string) ([]domain.Ticket, error)
	List(ctx context.Context, workspaceID string, filter domain.TicketFilter) ([]domain.Ticket, int, error)
}

type ticketRepository struct {
	db persistence.DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db persistence.DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, workspace_id, title, description, status, priority, ticket_type,
               assigned_to, due_date, parent_id, created_by, updated_by, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (workspace_id, title, description, status, priority, ticket_type,
                             assigned_to, due_date, parent_id, created_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	err := persistence.Conn(ctx, r.db).QueryRow(ctx, query,
		ticket.WorkspaceID,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Type,
		ticket.AssignedTo,
		ticket.DueDate,
		ticket.ParentID,
		ticket.CreatedBy,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	return translate(err)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, status=$3, priority=$4, ticket_type=$5,
            assigned_to=$6, due_date=$7, parent_id=$8, updated_by=$9, updated_at=NOW()
        WHERE id=$10 AND workspace_id=$11
        RETURNING updated_at`
	err := persistence.Conn(ctx, r.db).QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Type,
		ticket.AssignedTo,
		ticket.DueDate,
		ticket.ParentID,
		ticket.UpdatedBy,
		ticket.ID,
		ticket.WorkspaceID,
	).Scan(&ticket.UpdatedAt)
	return translate(err)
}

func (r *ticketRepository) GetByID(ctx context.Context, workspaceID, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 AND workspace_id=$2`
	return scanTicket(persistence.Conn(ctx, r.db).QueryRow(ctx, query, id, workspaceID))
}

func (r *ticketRepository) GetForUpdate(ctx context.Context, workspaceID, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 AND workspace_id=$2 FOR UPDATE`
	return scanTicket(persistence.Conn(ctx, r.db).QueryRow(ctx, query, id, workspaceID))
}

func (r *ticketRepository) Delete(ctx context.Context, workspaceID, id string) error {
	const query = `DELETE FROM tickets WHERE id=$1 AND workspace_id=$2`
	cmd, err := persistence.Conn(ctx, r.db).Exec(ctx, query, id, workspaceID)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) DeleteChildren(ctx context.Context, workspaceID, id string) (int64, error) {
	// Grandchildren and their comments go with the parent_id cascade.
	const query = `DELETE FROM tickets WHERE parent_id=$1 AND workspace_id=$2`
	cmd, err := persistence.Conn(ctx, r.db).Exec(ctx, query, id, workspaceID)
	if err != nil {
		return 0, translate(err)
	}
	return cmd.RowsAffected(), nil
}

func (r *ticketRepository) ListChildren(ctx context.Context, workspaceID, parentID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE parent_id=$1 AND workspace_id=$2 ORDER BY created_at ASC`
	rows, err := persistence.Conn(ctx, r.db).Query(ctx, query, parentID, workspaceID)
	if err != nil {
		return nil, translate(err)
	}
	return scanTickets(rows)
}

func (r *ticketRepository) List(ctx context.Context, workspaceID string, filter domain.TicketFilter) ([]domain.Ticket, int, error) {
	clauses := []string{"workspace_id=$1"}
	args := []any{workspaceID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+strings.ToLower(q)+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}
	where := strings.Join(clauses, " AND ")

	conn := persistence.Conn(ctx, r.db)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, translate(err)
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC, id LIMIT %d OFFSET %d`,
		ticketColumns, where, filter.PageSize, filter.Offset())
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, translate(err)
	}
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.WorkspaceID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Type,
		&ticket.AssignedTo,
		&ticket.DueDate,
		&ticket.ParentID,
		&ticket.CreatedBy,
		&ticket.UpdatedBy,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	defer rows.Close()
	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
