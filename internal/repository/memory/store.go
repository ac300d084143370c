// Package memory is the storage driver used when no database is configured
// and by tests. All repositories share one Store; a transaction holds the
// store lock for its whole duration and restores a snapshot on error.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/persistence"
	"github.com/spec-kit/workspace-tracker/internal/repository"
)

type txKey struct{}

type dataset struct {
	users       map[string]domain.User
	workspaces  map[string]domain.Workspace
	permissions map[string]domain.Permission
	permByKey   map[domain.PermissionKey]string
	roles       map[string]domain.Role
	rolePerms   map[string]map[string]struct{}
	assignments map[string]domain.Assignment
	tickets     map[string]domain.Ticket
	history     []domain.TicketHistory
	comments    map[string]domain.Comment
}

func newDataset() *dataset {
	return &dataset{
		users:       map[string]domain.User{},
		workspaces:  map[string]domain.Workspace{},
		permissions: map[string]domain.Permission{},
		permByKey:   map[domain.PermissionKey]string{},
		roles:       map[string]domain.Role{},
		rolePerms:   map[string]map[string]struct{}{},
		assignments: map[string]domain.Assignment{},
		tickets:     map[string]domain.Ticket{},
		comments:    map[string]domain.Comment{},
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.workspaces {
		c.workspaces[k] = v
	}
	for k, v := range d.permissions {
		c.permissions[k] = v
	}
	for k, v := range d.permByKey {
		c.permByKey[k] = v
	}
	for k, v := range d.roles {
		c.roles[k] = v
	}
	for roleID, perms := range d.rolePerms {
		cp := make(map[string]struct{}, len(perms))
		for id := range perms {
			cp[id] = struct{}{}
		}
		c.rolePerms[roleID] = cp
	}
	for k, v := range d.assignments {
		c.assignments[k] = v
	}
	for k, v := range d.tickets {
		c.tickets[k] = v
	}
	c.history = append([]domain.TicketHistory(nil), d.history...)
	for k, v := range d.comments {
		c.comments[k] = v
	}
	return c
}

// Store holds every table of the in-memory driver.
type Store struct {
	mu   sync.Mutex
	data *dataset
	last time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{data: newDataset()}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Users:       &userRepo{s: s},
		Workspaces:  &workspaceRepo{s: s},
		Permissions: &permissionRepo{s: s},
		Roles:       &roleRepo{s: s},
		Assignments: &assignmentRepo{s: s},
		Tickets:     &ticketRepo{s: s},
		History:     &historyRepo{s: s},
		Comments:    &commentRepo{s: s},
	}
}

// WithinTx runs fn with the store locked. Any error from fn discards every
// write fn made. Isolation is trivially serializable, so opts is ignored.
func (s *Store) WithinTx(ctx context.Context, _ persistence.TxOptions, fn func(ctx context.Context) error) (err error) {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = snapshot
			panic(p)
		}
		if err != nil {
			s.data = snapshot
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, s))
}

func (s *Store) inTx(ctx context.Context) bool {
	held, _ := ctx.Value(txKey{}).(*Store)
	return held == s
}

// lock takes the store lock unless ctx already runs inside a transaction
// on this store.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// now returns strictly increasing timestamps so creation order survives
// sorting by time. Callers hold the lock.
func (s *Store) now() time.Time {
	t := time.Now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

var _ persistence.Transactor = (*Store)(nil)
