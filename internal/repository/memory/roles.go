package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/repository"
)

type permissionRepo struct{ s *Store }

func (r *permissionRepo) Ensure(ctx context.Context, entity domain.Entity, op domain.Operation) (*domain.Permission, error) {
	defer r.s.lock(ctx)()

	key := domain.PermissionKey{Entity: entity, Operation: op}
	if id, ok := r.s.data.permByKey[key]; ok {
		perm := r.s.data.permissions[id]
		return &perm, nil
	}
	perm := domain.Permission{ID: uuid.NewString(), Entity: entity, Operation: op}
	r.s.data.permissions[perm.ID] = perm
	r.s.data.permByKey[key] = perm.ID
	return &perm, nil
}

func (r *permissionRepo) Find(ctx context.Context, keys []domain.PermissionKey) ([]domain.Permission, error) {
	defer r.s.lock(ctx)()

	var result []domain.Permission
	for _, key := range keys {
		if id, ok := r.s.data.permByKey[key]; ok {
			result = append(result, r.s.data.permissions[id])
		}
	}
	return result, nil
}

func (r *permissionRepo) ListByRole(ctx context.Context, roleID string) ([]domain.Permission, error) {
	defer r.s.lock(ctx)()
	return r.s.permissionsOf(roleID), nil
}

func (s *Store) permissionsOf(roleID string) []domain.Permission {
	result := []domain.Permission{}
	for id := range s.data.rolePerms[roleID] {
		result = append(result, s.data.permissions[id])
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Entity != result[j].Entity {
			return result[i].Entity < result[j].Entity
		}
		return result[i].Operation < result[j].Operation
	})
	return result
}

func (s *Store) roleWithPermissions(role domain.Role) domain.Role {
	role.Permissions = s.permissionsOf(role.ID)
	return role
}

type roleRepo struct{ s *Store }

func (r *roleRepo) nameTaken(workspaceID, name, exceptID string) bool {
	for _, role := range r.s.data.roles {
		if role.WorkspaceID == workspaceID && role.Name == name && role.ID != exceptID {
			return true
		}
	}
	return false
}

func (r *roleRepo) Create(ctx context.Context, role *domain.Role) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.data.workspaces[role.WorkspaceID]; !ok {
		return repository.ErrNotFound
	}
	if r.nameTaken(role.WorkspaceID, role.Name, "") {
		return repository.ErrConflict
	}
	role.ID = uuid.NewString()
	now := r.s.now()
	role.CreatedAt, role.UpdatedAt = now, now
	stored := *role
	stored.Permissions = nil
	r.s.data.roles[role.ID] = stored
	r.s.data.rolePerms[role.ID] = map[string]struct{}{}
	return nil
}

func (r *roleRepo) Update(ctx context.Context, role *domain.Role) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.data.roles[role.ID]
	if !ok || stored.WorkspaceID != role.WorkspaceID {
		return repository.ErrNotFound
	}
	if r.nameTaken(role.WorkspaceID, role.Name, role.ID) {
		return repository.ErrConflict
	}
	stored.Name = role.Name
	stored.Description = role.Description
	stored.UpdatedAt = r.s.now()
	r.s.data.roles[role.ID] = stored
	role.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *roleRepo) Delete(ctx context.Context, workspaceID, roleID string) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.data.roles[roleID]
	if !ok || stored.WorkspaceID != workspaceID {
		return repository.ErrNotFound
	}
	delete(r.s.data.roles, roleID)
	delete(r.s.data.rolePerms, roleID)
	return nil
}

func (r *roleRepo) GetByID(ctx context.Context, workspaceID, roleID string) (*domain.Role, error) {
	defer r.s.lock(ctx)()

	stored, ok := r.s.data.roles[roleID]
	if !ok || stored.WorkspaceID != workspaceID {
		return nil, repository.ErrNotFound
	}
	role := r.s.roleWithPermissions(stored)
	return &role, nil
}

func (r *roleRepo) GetByName(ctx context.Context, workspaceID, name string) (*domain.Role, error) {
	defer r.s.lock(ctx)()

	for _, stored := range r.s.data.roles {
		if stored.WorkspaceID == workspaceID && stored.Name == name {
			role := r.s.roleWithPermissions(stored)
			return &role, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *roleRepo) List(ctx context.Context, workspaceID string) ([]domain.Role, error) {
	defer r.s.lock(ctx)()
	return r.collect(func(role domain.Role) bool { return role.WorkspaceID == workspaceID }), nil
}

func (r *roleRepo) ListByIDs(ctx context.Context, workspaceID string, ids []string) ([]domain.Role, error) {
	defer r.s.lock(ctx)()

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	return r.collect(func(role domain.Role) bool {
		_, ok := wanted[role.ID]
		return ok && role.WorkspaceID == workspaceID
	}), nil
}

func (r *roleRepo) collect(keep func(domain.Role) bool) []domain.Role {
	result := []domain.Role{}
	for _, stored := range r.s.data.roles {
		if keep(stored) {
			result = append(result, r.s.roleWithPermissions(stored))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (r *roleRepo) AddPermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	defer r.s.lock(ctx)()

	perms, ok := r.s.data.rolePerms[roleID]
	if !ok {
		return repository.ErrNotFound
	}
	for _, id := range permissionIDs {
		if _, ok := r.s.data.permissions[id]; !ok {
			return repository.ErrNotFound
		}
		perms[id] = struct{}{}
	}
	return nil
}

func (r *roleRepo) RemovePermissions(ctx context.Context, roleID string, permissionIDs []string) (int64, error) {
	defer r.s.lock(ctx)()

	perms := r.s.data.rolePerms[roleID]
	var removed int64
	for _, id := range permissionIDs {
		if _, ok := perms[id]; ok {
			delete(perms, id)
			removed++
		}
	}
	return removed, nil
}

func (r *roleRepo) ClearPermissions(ctx context.Context, roleID string) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.data.rolePerms[roleID]; ok {
		r.s.data.rolePerms[roleID] = map[string]struct{}{}
	}
	return nil
}

type assignmentRepo struct{ s *Store }

func (r *assignmentRepo) find(workspaceID, userID string) (domain.Assignment, bool) {
	for _, a := range r.s.data.assignments {
		if a.WorkspaceID == workspaceID && a.UserID == userID {
			return a, true
		}
	}
	return domain.Assignment{}, false
}

func (r *assignmentRepo) Get(ctx context.Context, workspaceID, userID string) (*domain.Assignment, error) {
	defer r.s.lock(ctx)()

	a, ok := r.find(workspaceID, userID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	if role, ok := r.s.data.roles[a.RoleID]; ok {
		a.Role = &role
	}
	return &a, nil
}

func (r *assignmentRepo) Create(ctx context.Context, a *domain.Assignment) error {
	defer r.s.lock(ctx)()

	if _, ok := r.find(a.WorkspaceID, a.UserID); ok {
		return repository.ErrConflict
	}
	if _, ok := r.s.data.users[a.UserID]; !ok {
		return repository.ErrNotFound
	}
	if role, ok := r.s.data.roles[a.RoleID]; !ok || role.WorkspaceID != a.WorkspaceID {
		return repository.ErrNotFound
	}
	a.ID = uuid.NewString()
	a.CreatedAt = r.s.now()
	stored := *a
	stored.Role, stored.User = nil, nil
	r.s.data.assignments[a.ID] = stored
	return nil
}

func (r *assignmentRepo) DeleteForUsers(ctx context.Context, workspaceID string, userIDs []string) (int64, error) {
	defer r.s.lock(ctx)()

	targets := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		targets[id] = struct{}{}
	}
	var removed int64
	for id, a := range r.s.data.assignments {
		if _, ok := targets[a.UserID]; ok && a.WorkspaceID == workspaceID {
			delete(r.s.data.assignments, id)
			removed++
		}
	}
	return removed, nil
}

func (r *assignmentRepo) Delete(ctx context.Context, workspaceID, userID string, roleID *string) (int64, error) {
	defer r.s.lock(ctx)()

	var removed int64
	for id, a := range r.s.data.assignments {
		if a.WorkspaceID != workspaceID || a.UserID != userID {
			continue
		}
		if roleID != nil && a.RoleID != *roleID {
			continue
		}
		delete(r.s.data.assignments, id)
		removed++
	}
	return removed, nil
}

func (r *assignmentRepo) CountByRole(ctx context.Context, roleID string) (int, error) {
	defer r.s.lock(ctx)()

	count := 0
	for _, a := range r.s.data.assignments {
		if a.RoleID == roleID {
			count++
		}
	}
	return count, nil
}

func (r *assignmentRepo) ListForUsers(ctx context.Context, workspaceID string, userIDs []string) ([]domain.Assignment, error) {
	defer r.s.lock(ctx)()

	result := []domain.Assignment{}
	for _, userID := range userIDs {
		a, ok := r.find(workspaceID, userID)
		if !ok {
			continue
		}
		if role, ok := r.s.data.roles[a.RoleID]; ok {
			a.Role = &role
		}
		if user, ok := r.s.data.users[a.UserID]; ok {
			a.User = &user
		}
		result = append(result, a)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
