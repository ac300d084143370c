package service

import (
	"errors"
	"fmt"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/repository"
	apperrors "github.com/spec-kit/workspace-tracker/pkg/util/errorutil"
)

// notFoundOr maps repository.ErrNotFound to a NotFound error for resource
// and anything else to an internal error.
func notFoundOr(err error, resource string, details map[string]any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, details)
	}
	return apperrors.MapError(err)
}

// PermissionInput is an (entity, operation) pair as supplied by callers.
type PermissionInput struct {
	Entity    string `json:"entity"`
	Operation string `json:"operation"`
}

// parsePermissions canonicalizes and de-duplicates permission inputs.
// Unknown tags fail validation.
func parsePermissions(inputs []PermissionInput) ([]domain.PermissionKey, error) {
	keys := make([]domain.PermissionKey, 0, len(inputs))
	var invalid []string
	for _, in := range inputs {
		entity, okEntity := domain.ParseEntity(in.Entity)
		op, okOp := domain.ParseOperation(in.Operation)
		if !okEntity || !okOp {
			invalid = append(invalid, fmt.Sprintf("%s:%s", in.Entity, in.Operation))
			continue
		}
		keys = append(keys, domain.PermissionKey{Entity: entity, Operation: op})
	}
	if len(invalid) > 0 {
		return nil, apperrors.NewValidationError("unknown permission", map[string]any{"invalid": invalid})
	}
	return domain.DedupeKeys(keys), nil
}
