package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/workspace-tracker/internal/persistence"
)

var (
	// ErrNotFound is returned when a row does not exist in the requested scope.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write breaks a uniqueness rule.
	ErrConflict = errors.New("record conflicts with existing data")
)

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows), persistence.IsInvalidText(err):
		return ErrNotFound
	case persistence.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case persistence.IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
