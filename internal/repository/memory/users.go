package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/repository"
)

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	defer r.s.lock(ctx)()

	for _, existing := range r.s.data.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrConflict
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Type == "" {
		user.Type = domain.UserTypeOther
	}
	now := r.s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.data.users[user.ID] = *user
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	defer r.s.lock(ctx)()

	user, ok := r.s.data.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	defer r.s.lock(ctx)()

	for _, user := range r.s.data.users {
		if strings.EqualFold(user.Email, email) {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	defer r.s.lock(ctx)()

	found := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := r.s.data.users[id]; ok {
			found = append(found, id)
		}
	}
	return found, nil
}

func (r *userRepo) ListRegular(ctx context.Context) ([]domain.User, error) {
	defer r.s.lock(ctx)()

	result := []domain.User{}
	for _, user := range r.s.data.users {
		if user.Type == domain.UserTypeSuperAdmin {
			continue
		}
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

type workspaceRepo struct{ s *Store }

func (r *workspaceRepo) Create(ctx context.Context, ws *domain.Workspace) error {
	defer r.s.lock(ctx)()

	for _, existing := range r.s.data.workspaces {
		if strings.EqualFold(existing.Name, ws.Name) {
			return repository.ErrConflict
		}
	}
	ws.ID = uuid.NewString()
	now := r.s.now()
	ws.CreatedAt, ws.UpdatedAt = now, now
	r.s.data.workspaces[ws.ID] = *ws
	return nil
}

func (r *workspaceRepo) GetByID(ctx context.Context, id string) (*domain.Workspace, error) {
	defer r.s.lock(ctx)()

	ws, ok := r.s.data.workspaces[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ws, nil
}

func (r *workspaceRepo) NameTaken(ctx context.Context, name string) (bool, error) {
	defer r.s.lock(ctx)()

	for _, existing := range r.s.data.workspaces {
		if strings.EqualFold(existing.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (r *workspaceRepo) List(ctx context.Context) ([]domain.Workspace, error) {
	defer r.s.lock(ctx)()

	result := make([]domain.Workspace, 0, len(r.s.data.workspaces))
	for _, ws := range r.s.data.workspaces {
		result = append(result, ws)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *workspaceRepo) ListForUser(ctx context.Context, userID string) ([]domain.Workspace, error) {
	defer r.s.lock(ctx)()

	result := []domain.Workspace{}
	for _, a := range r.s.data.assignments {
		if a.UserID != userID {
			continue
		}
		if ws, ok := r.s.data.workspaces[a.WorkspaceID]; ok {
			result = append(result, ws)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}
