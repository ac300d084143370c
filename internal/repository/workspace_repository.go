package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/persistence"
)

// WorkspaceRepository persists tenancy boundaries.
type WorkspaceRepository interface {
	// Create returns ErrConflict when the name is taken, ignoring case.
	Create(ctx context.Context, ws *domain.Workspace) error
	GetByID(ctx context.Context, id string) (*domain.Workspace, error)
	NameTaken(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]domain.Workspace, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Workspace, error)
}

type workspaceRepository struct {
	db persistence.DBTX
}

// NewWorkspaceRepository returns a Postgres-backed implementation.
func NewWorkspaceRepository(db persistence.DBTX) WorkspaceRepository {
	return &workspaceRepository{db: db}
}

func (r *workspaceRepository) Create(ctx context.Context, ws *domain.Workspace) error {
	const query = `
        INSERT INTO workspaces (name, created_by, admin_id)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at`
	err := persistence.Conn(ctx, r.db).QueryRow(ctx, query, ws.Name, ws.CreatedBy, ws.AdminID).
		Scan(&ws.ID, &ws.CreatedAt, &ws.UpdatedAt)
	return translate(err)
}

func (r *workspaceRepository) GetByID(ctx context.Context, id string) (*domain.Workspace, error) {
	const query = `
        SELECT id, name, created_by, admin_id, created_at, updated_at
        FROM workspaces WHERE id=$1`
	var ws domain.Workspace
	if err := persistence.Conn(ctx, r.db).QueryRow(ctx, query, id).Scan(
		&ws.ID,
		&ws.Name,
		&ws.CreatedBy,
		&ws.AdminID,
		&ws.CreatedAt,
		&ws.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &ws, nil
}

func (r *workspaceRepository) NameTaken(ctx context.Context, name string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM workspaces WHERE LOWER(name)=LOWER($1))`
	var taken bool
	err := persistence.Conn(ctx, r.db).QueryRow(ctx, query, name).Scan(&taken)
	return taken, err
}

func (r *workspaceRepository) List(ctx context.Context) ([]domain.Workspace, error) {
	const query = `
        SELECT id, name, created_by, admin_id, created_at, updated_at
        FROM workspaces ORDER BY created_at DESC`
	rows, err := persistence.Conn(ctx, r.db).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanWorkspaces(rows)
}

func (r *workspaceRepository) ListForUser(ctx context.Context, userID string) ([]domain.Workspace, error) {
	const query = `
        SELECT w.id, w.name, w.created_by, w.admin_id, w.created_at, w.updated_at
        FROM workspaces w
        JOIN user_roles ur ON ur.workspace_id = w.id
        WHERE ur.user_id=$1
        ORDER BY w.name ASC`
	rows, err := persistence.Conn(ctx, r.db).Query(ctx, query, userID)
	if err != nil {
		return nil, translate(err)
	}
	return scanWorkspaces(rows)
}

func scanWorkspaces(rows pgx.Rows) ([]domain.Workspace, error) {
	defer rows.Close()
	var result []domain.Workspace
	for rows.Next() {
		var ws domain.Workspace
		if err := rows.Scan(
			&ws.ID,
			&ws.Name,
			&ws.CreatedBy,
			&ws.AdminID,
			&ws.CreatedAt,
			&ws.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ws)
	}
	return result, rows.Err()
}
