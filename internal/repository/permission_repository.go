package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/persistence"
)

// PermissionRepository is the global registry of (entity, operation) pairs.
// Permissions are never deleted.
type PermissionRepository interface {
	// Ensure returns the permission for the pair, creating it if needed.
	// Concurrent callers for the same pair observe the same row.
	Ensure(ctx context.Context, entity domain.Entity, op domain.Operation) (*domain.Permission, error)
	Find(ctx context.Context, keys []domain.PermissionKey) ([]domain.Permission, error)
	ListByRole(ctx context.Context, roleID string) ([]domain.Permission, error)
}

type permissionRepository struct {
	db persistence.DBTX
}

// NewPermissionRepository returns a Postgres-backed implementation.
func NewPermissionRepository(db persistence.DBTX) PermissionRepository {
	return &permissionRepository{db: db}
}

func (r *permissionRepository) Ensure(ctx context.Context, entity domain.Entity, op domain.Operation) (*domain.Permission, error) {
	// The no-op update makes RETURNING yield the existing row on conflict.
	const query = `
        INSERT INTO permissions (entity, operation)
        VALUES ($1, $2)
        ON CONFLICT (entity, operation) DO UPDATE SET entity = EXCLUDED.entity
        RETURNING id`
	perm := domain.Permission{Entity: entity, Operation: op}
	if err := persistence.Conn(ctx, r.db).QueryRow(ctx, query, entity, op).Scan(&perm.ID); err != nil {
		return nil, err
	}
	return &perm, nil
}

func (r *permissionRepository) Find(ctx context.Context, keys []domain.PermissionKey) ([]domain.Permission, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	entities := make([]string, len(keys))
	operations := make([]string, len(keys))
	for i, k := range keys {
		entities[i] = string(k.Entity)
		operations[i] = string(k.Operation)
	}
	const query = `
        SELECT p.id, p.entity, p.operation
        FROM permissions p
        JOIN UNNEST($1::text[], $2::text[]) AS k(entity, operation)
          ON k.entity = p.entity AND k.operation = p.operation`
	rows, err := persistence.Conn(ctx, r.db).Query(ctx, query, entities, operations)
	if err != nil {
		return nil, err
	}
	return scanPermissions(rows)
}

func (r *permissionRepository) ListByRole(ctx context.Context, roleID string) ([]domain.Permission, error) {
	const query = `
        SELECT p.id, p.entity, p.operation
        FROM permissions p
        JOIN role_permissions rp ON rp.permission_id = p.id
        WHERE rp.role_id=$1
        ORDER BY p.entity, p.operation`
	rows, err := persistence.Conn(ctx, r.db).Query(ctx, query, roleID)
	if err != nil {
		return nil, translate(err)
	}
	return scanPermissions(rows)
}

func scanPermissions(rows pgx.Rows) ([]domain.Permission, error) {
	defer rows.Close()
	var result []domain.Permission
	for rows.Next() {
		var perm domain.Permission
		if err := rows.Scan(&perm.ID, &perm.Entity, &perm.Operation); err != nil {
			return nil, err
		}
		result = append(result, perm)
	}
	return result, rows.Err()
}
