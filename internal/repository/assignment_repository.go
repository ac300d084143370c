package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/persistence"
)

// AssignmentRepository stores the (user, workspace) -> role bindings.
// The storage layer guarantees at most one row per (user, workspace).
type AssignmentRepository interface {
	// Get returns the user's assignment in the workspace with its role
	// name populated, or ErrNotFound.
	Get(ctx context.Context, workspaceID, userID string) (*domain.Assignment, error)
	// Create returns ErrConflict if the user already holds a role there.
	Create(ctx context.Context, a *domain.Assignment) error
	DeleteForUsers(ctx context.Context, workspaceID string, userIDs []string) (int64, error)
	// Delete removes the user's assignment; when roleID is set only a
	// matching assignment is removed.
	Delete(ctx context.Context, workspaceID, userID string, roleID *string) (int64, error)
	CountByRole(ctx context.Context, roleID string) (int, error)
	// ListForUsers returns assignments with role and user populated.
	ListForUsers(ctx context.Context, workspaceID string, userIDs []string) ([]domain.Assignment, error)
}

type assignmentRepository struct {
	db persistence.DBTX
}

// NewAssignmentRepository returns a Postgres-backed implementation.
func NewAssignmentRepository(db persistence.DBTX) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) Get(ctx context.Context, workspaceID, userID string) (*domain.Assignment, error) {
	const query = `
        SELECT ur.id, ur.user_id, ur.role_id, ur.workspace_id, ur.created_at, r.name
        FROM user_roles ur
        JOIN roles r ON r.id = ur.role_id
        WHERE ur.workspace_id=$1 AND ur.user_id=$2`
	var (
		a    domain.Assignment
		role domain.Role
	)
	if err := persistence.Conn(ctx, r.db).QueryRow(ctx, query, workspaceID, userID).Scan(
		&a.ID,
		&a.UserID,
		&a.RoleID,
		&a.WorkspaceID,
		&a.CreatedAt,
		&role.Name,
	); err != nil {
		return nil, translate(err)
	}
	role.ID = a.RoleID
	role.WorkspaceID = a.WorkspaceID
	a.Role = &role
	return &a, nil
}

func (r *assignmentRepository) Create(ctx context.Context, a *domain.Assignment) error {
	const query = `
        INSERT INTO user_roles (user_id, role_id, workspace_id)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`
	err := persistence.Conn(ctx, r.db).QueryRow(ctx, query, a.UserID, a.RoleID, a.WorkspaceID).
		Scan(&a.ID, &a.CreatedAt)
	return translate(err)
}

func (r *assignmentRepository) DeleteForUsers(ctx context.Context, workspaceID string, userIDs []string) (int64, error) {
	const query = `DELETE FROM user_roles WHERE workspace_id=$1 AND user_id::text = ANY($2)`
	cmd, err := persistence.Conn(ctx, r.db).Exec(ctx, query, workspaceID, userIDs)
	if err != nil {
		return 0, translate(err)
	}
	return cmd.RowsAffected(), nil
}

func (r *assignmentRepository) Delete(ctx context.Context, workspaceID, userID string, roleID *string) (int64, error) {
	const query = `
        DELETE FROM user_roles
        WHERE workspace_id=$1 AND user_id=$2 AND ($3::uuid IS NULL OR role_id=$3::uuid)`
	cmd, err := persistence.Conn(ctx, r.db).Exec(ctx, query, workspaceID, userID, roleID)
	if err != nil {
		return 0, translate(err)
	}
	return cmd.RowsAffected(), nil
}

func (r *assignmentRepository) CountByRole(ctx context.Context, roleID string) (int, error) {
	const query = `SELECT COUNT(*) FROM user_roles WHERE role_id=$1`
	var count int
	err := persistence.Conn(ctx, r.db).QueryRow(ctx, query, roleID).Scan(&count)
	return count, translate(err)
}

func (r *assignmentRepository) ListForUsers(ctx context.Context, workspaceID string, userIDs []string) ([]domain.Assignment, error) {
	const query = `
        SELECT ur.id, ur.user_id, ur.role_id, ur.workspace_id, ur.created_at,
               r.name, r.description,
               u.name, u.email
        FROM user_roles ur
        JOIN roles r ON r.id = ur.role_id
        JOIN users u ON u.id = ur.user_id
        WHERE ur.workspace_id=$1 AND ur.user_id::text = ANY($2)
        ORDER BY ur.created_at, u.email`
	rows, err := persistence.Conn(ctx, r.db).Query(ctx, query, workspaceID, userIDs)
	if err != nil {
		return nil, translate(err)
	}
	return scanAssignments(rows)
}

func scanAssignments(rows pgx.Rows) ([]domain.Assignment, error) {
	defer rows.Close()
	var result []domain.Assignment
	for rows.Next() {
		var (
			a    domain.Assignment
			role domain.Role
			user domain.User
		)
		if err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.RoleID,
			&a.WorkspaceID,
			&a.CreatedAt,
			&role.Name,
			&role.Description,
			&user.Name,
			&user.Email,
		); err != nil {
			return nil, err
		}
		role.ID, role.WorkspaceID = a.RoleID, a.WorkspaceID
		user.ID = a.UserID
		a.Role, a.User = &role, &user
		result = append(result, a)
	}
	return result, rows.Err()
}
