package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/persistence"
)

// CommentRepository persists ticket comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	Update(ctx context.Context, comment *domain.Comment) error
	// GetByID only finds comments whose ticket belongs to workspaceID.
	GetByID(ctx context.Context, workspaceID, id string) (*domain.Comment, error)
	// Delete removes the comment and its replies.
	Delete(ctx context.Context, id string) error
	DeleteByTicket(ctx context.Context, ticketID string) (int64, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error)
}

type commentRepository struct {
	db persistence.DBTX
}

// NewCommentRepository returns repository.
func NewCommentRepository(db persistence.DBTX) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO comments (ticket_id, user_id, message, parent_id)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	err := persistence.Conn(ctx, r.db).QueryRow(ctx, query,
		comment.TicketID,
		comment.UserID,
		comment.Message,
		comment.ParentID,
	).Scan(&comment.ID, &comment.CreatedAt, &comment.UpdatedAt)
	return translate(err)
}

func (r *commentRepository) Update(ctx context.Context, comment *domain.Comment) error {
	const query = `UPDATE comments SET message=$1, updated_at=NOW() WHERE id=$2 RETURNING updated_at`
	err := persistence.Conn(ctx, r.db).QueryRow(ctx, query, comment.Message, comment.ID).Scan(&comment.UpdatedAt)
	return translate(err)
}

func (r *commentRepository) GetByID(ctx context.Context, workspaceID, id string) (*domain.Comment, error) {
	const query = `
        SELECT c.id, c.ticket_id, c.user_id, c.message, c.parent_id, c.created_at, c.updated_at
        FROM comments c
        JOIN tickets t ON t.id = c.ticket_id
        WHERE c.id=$1 AND t.workspace_id=$2`
	return scanComment(persistence.Conn(ctx, r.db).QueryRow(ctx, query, id, workspaceID))
}

func (r *commentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM comments WHERE id=$1`
	cmd, err := persistence.Conn(ctx, r.db).Exec(ctx, query, id)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *commentRepository) DeleteByTicket(ctx context.Context, ticketID string) (int64, error) {
	const query = `DELETE FROM comments WHERE ticket_id=$1`
	cmd, err := persistence.Conn(ctx, r.db).Exec(ctx, query, ticketID)
	if err != nil {
		return 0, translate(err)
	}
	return cmd.RowsAffected(), nil
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	const query = `
        SELECT id, ticket_id, user_id, message, parent_id, created_at, updated_at
        FROM comments WHERE ticket_id=$1 ORDER BY created_at ASC, id`
	rows, err := persistence.Conn(ctx, r.db).Query(ctx, query, ticketID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	result := []domain.Comment{}
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *comment)
	}
	return result, rows.Err()
}

func scanComment(row pgx.Row) (*domain.Comment, error) {
	var comment domain.Comment
	if err := row.Scan(
		&comment.ID,
		&comment.TicketID,
		&comment.UserID,
		&comment.Message,
		&comment.ParentID,
		&comment.CreatedAt,
		&comment.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &comment, nil
}
