package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/persistence"
)

// UserRepository defines persistence access for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// ExistingIDs returns the subset of ids that resolve to a user.
	ExistingIDs(ctx context.Context, ids []string) ([]string, error)
	ListRegular(ctx context.Context) ([]domain.User, error)
}

type userRepository struct {
	db persistence.DBTX
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db persistence.DBTX) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, name, email, password_hash, user_type, is_active, is_verified, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (name, email, password_hash, user_type, is_active, is_verified)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at`

	if user.Type == "" {
		user.Type = domain.UserTypeOther
	}
	err := persistence.Conn(ctx, r.db).QueryRow(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Type,
		user.IsActive,
		user.IsVerified,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	return translate(err)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(persistence.Conn(ctx, r.db).QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email)=LOWER($1)`
	return scanUser(persistence.Conn(ctx, r.db).QueryRow(ctx, query, email))
}

func (r *userRepository) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	const query = `SELECT id::text FROM users WHERE id::text = ANY($1)`
	rows, err := persistence.Conn(ctx, r.db).Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *userRepository) ListRegular(ctx context.Context) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_type <> 'SUPER_ADMIN' ORDER BY created_at DESC`
	rows, err := persistence.Conn(ctx, r.db).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Type,
		&user.IsActive,
		&user.IsVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}
