package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/persistence"
)

// RoleRepository stores workspace-scoped roles and their grants.
type RoleRepository interface {
	// Create returns ErrConflict when the name exists in the workspace.
	Create(ctx context.Context, role *domain.Role) error
	Update(ctx context.Context, role *domain.Role) error
	Delete(ctx context.Context, workspaceID, roleID string) error
	// GetByID loads the role with its permissions. Roles of other
	// workspaces are reported as ErrNotFound.
	GetByID(ctx context.Context, workspaceID, roleID string) (*domain.Role, error)
	GetByName(ctx context.Context, workspaceID, name string) (*domain.Role, error)
	List(ctx context.Context, workspaceID string) ([]domain.Role, error)
	ListByIDs(ctx context.Context, workspaceID string, ids []string) ([]domain.Role, error)
	AddPermissions(ctx context.Context, roleID string, permissionIDs []string) error
	RemovePermissions(ctx context.Context, roleID string, permissionIDs []string) (int64, error)
	ClearPermissions(ctx context.Context, roleID string) error
}

type roleRepository struct {
	db persistence.DBTX
}

// NewRoleRepository returns a Postgres-backed implementation.
func NewRoleRepository(db persistence.DBTX) RoleRepository {
	return &roleRepository{db: db}
}

const selectRolesWithPermissions = `
        SELECT r.id, r.workspace_id, r.name, r.description, r.created_at, r.updated_at,
               p.id, p.entity, p.operation
        FROM roles r
        LEFT JOIN role_permissions rp ON rp.role_id = r.id
        LEFT JOIN permissions p ON p.id = rp.permission_id`

func (r *roleRepository) Create(ctx context.Context, role *domain.Role) error {
	const query = `
        INSERT INTO roles (workspace_id, name, description)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at`
	err := persistence.Conn(ctx, r.db).QueryRow(ctx, query, role.WorkspaceID, role.Name, role.Description).
		Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	return translate(err)
}

func (r *roleRepository) Update(ctx context.Context, role *domain.Role) error {
	const query = `
        UPDATE roles SET name=$1, description=$2, updated_at=NOW()
        WHERE id=$3 AND workspace_id=$4
        RETURNING updated_at`
	err := persistence.Conn(ctx, r.db).QueryRow(ctx, query, role.Name, role.Description, role.ID, role.WorkspaceID).
		Scan(&role.UpdatedAt)
	return translate(err)
}

func (r *roleRepository) Delete(ctx context.Context, workspaceID, roleID string) error {
	const query = `DELETE FROM roles WHERE id=$1 AND workspace_id=$2`
	cmd, err := persistence.Conn(ctx, r.db).Exec(ctx, query, roleID, workspaceID)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *roleRepository) GetByID(ctx context.Context, workspaceID, roleID string) (*domain.Role, error) {
	query := selectRolesWithPermissions + ` WHERE r.id=$1 AND r.workspace_id=$2 ORDER BY p.entity, p.operation`
	return r.fetchSingle(ctx, query, roleID, workspaceID)
}

func (r *roleRepository) GetByName(ctx context.Context, workspaceID, name string) (*domain.Role, error) {
	query := selectRolesWithPermissions + ` WHERE r.name=$1 AND r.workspace_id=$2 ORDER BY p.entity, p.operation`
	return r.fetchSingle(ctx, query, name, workspaceID)
}

func (r *roleRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Role, error) {
	rows, err := persistence.Conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	roles, err := scanRoles(rows)
	if err != nil {
		return nil, translate(err)
	}
	if len(roles) == 0 {
		return nil, ErrNotFound
	}
	return &roles[0], nil
}

func (r *roleRepository) List(ctx context.Context, workspaceID string) ([]domain.Role, error) {
	query := selectRolesWithPermissions + ` WHERE r.workspace_id=$1 ORDER BY r.name ASC, r.id, p.entity, p.operation`
	rows, err := persistence.Conn(ctx, r.db).Query(ctx, query, workspaceID)
	if err != nil {
		return nil, translate(err)
	}
	return scanRoles(rows)
}

func (r *roleRepository) ListByIDs(ctx context.Context, workspaceID string, ids []string) ([]domain.Role, error) {
	query := selectRolesWithPermissions + ` WHERE r.workspace_id=$1 AND r.id::text = ANY($2) ORDER BY r.name ASC, r.id, p.entity, p.operation`
	rows, err := persistence.Conn(ctx, r.db).Query(ctx, query, workspaceID, ids)
	if err != nil {
		return nil, translate(err)
	}
	return scanRoles(rows)
}

func (r *roleRepository) AddPermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	if len(permissionIDs) == 0 {
		return nil
	}
	const query = `
        INSERT INTO role_permissions (role_id, permission_id)
        SELECT $1, UNNEST($2::uuid[])
        ON CONFLICT DO NOTHING`
	_, err := persistence.Conn(ctx, r.db).Exec(ctx, query, roleID, permissionIDs)
	return translate(err)
}

func (r *roleRepository) RemovePermissions(ctx context.Context, roleID string, permissionIDs []string) (int64, error) {
	if len(permissionIDs) == 0 {
		return 0, nil
	}
	const query = `DELETE FROM role_permissions WHERE role_id=$1 AND permission_id = ANY($2::uuid[])`
	cmd, err := persistence.Conn(ctx, r.db).Exec(ctx, query, roleID, permissionIDs)
	if err != nil {
		return 0, translate(err)
	}
	return cmd.RowsAffected(), nil
}

func (r *roleRepository) ClearPermissions(ctx context.Context, roleID string) error {
	const query = `DELETE FROM role_permissions WHERE role_id=$1`
	_, err := persistence.Conn(ctx, r.db).Exec(ctx, query, roleID)
	return translate(err)
}

// scanRoles folds the role x permission join back into roles, keeping the
// order rows arrive in.
func scanRoles(rows pgx.Rows) ([]domain.Role, error) {
	defer rows.Close()

	var result []domain.Role
	index := map[string]int{}
	for rows.Next() {
		var (
			role      domain.Role
			permID    *string
			entity    *string
			operation *string
		)
		if err := rows.Scan(
			&role.ID,
			&role.WorkspaceID,
			&role.Name,
			&role.Description,
			&role.CreatedAt,
			&role.UpdatedAt,
			&permID,
			&entity,
			&operation,
		); err != nil {
			return nil, err
		}
		pos, ok := index[role.ID]
		if !ok {
			role.Permissions = []domain.Permission{}
			result = append(result, role)
			pos = len(result) - 1
			index[role.ID] = pos
		}
		if permID != nil {
			result[pos].Permissions = append(result[pos].Permissions, domain.Permission{
				ID:        *permID,
				Entity:    domain.Entity(*entity),
				Operation: domain.Operation(*operation),
			})
		}
	}
	return result, rows.Err()
}
