package domain

import (
	"sort"
	"strings"
)

// Entity tags the kind of resource a permission applies to.
type Entity string

const (
	EntityWorkspace      Entity = "WORKSPACE"
	EntityRole           Entity = "ROLE"
	EntityUser           Entity = "USER"
	EntityUserRole       Entity = "USER_ROLE"
	EntityRolePermission Entity = "ROLE_PERMISSION"
	EntityTicket         Entity = "TICKET"
	EntityComment        Entity = "COMMENT"
	EntityHistory        Entity = "HISTORY"
)

// Operation tags what is done to an entity.
type Operation string

const (
	OperationCreate Operation = "CREATE"
	OperationRead   Operation = "READ"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

// KnownEntities lists every entity kind the system grants permissions on.
var KnownEntities = []Entity{
	EntityWorkspace,
	EntityRole,
	EntityUser,
	EntityUserRole,
	EntityRolePermission,
	EntityTicket,
	EntityComment,
	EntityHistory,
}

// CRUDOperations in canonical order.
var CRUDOperations = []Operation{OperationCreate, OperationRead, OperationUpdate, OperationDelete}

// ParseEntity canonicalizes an entity tag; ok is false for unknown tags.
func ParseEntity(raw string) (Entity, bool) {
	e := Entity(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range KnownEntities {
		if e == known {
			return e, true
		}
	}
	return "", false
}

// ParseOperation canonicalizes an operation tag; ok is false for unknown tags.
func ParseOperation(raw string) (Operation, bool) {
	op := Operation(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range CRUDOperations {
		if op == known {
			return op, true
		}
	}
	return "", false
}

// PermissionKey is the (entity, operation) identity of a permission.
type PermissionKey struct {
	Entity    Entity
	Operation Operation
}

// String renders the key for logs and error details.
func (k PermissionKey) String() string {
	return string(k.Entity) + ":" + string(k.Operation)
}

// Permission is a globally shared capability token. It is never deleted.
type Permission struct {
	ID        string
	Entity    Entity
	Operation Operation
}

// Key returns the permission's (entity, operation) pair.
func (p Permission) Key() PermissionKey {
	return PermissionKey{Entity: p.Entity, Operation: p.Operation}
}

// PermissionSet is a flat set of permission keys. Membership is exact; there
// is no wildcard or hierarchy.
type PermissionSet map[PermissionKey]struct{}

// NewPermissionSet builds a set from permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p.Key()] = struct{}{}
	}
	return set
}

// Has reports exact membership.
func (s PermissionSet) Has(entity Entity, op Operation) bool {
	_, ok := s[PermissionKey{Entity: entity, Operation: op}]
	return ok
}

// Keys returns the members sorted by entity then operation.
func (s PermissionSet) Keys() []PermissionKey {
	keys := make([]PermissionKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Entity != keys[j].Entity {
			return keys[i].Entity < keys[j].Entity
		}
		return keys[i].Operation < keys[j].Operation
	})
	return keys
}

// DedupeKeys removes repeated keys while keeping first-seen order.
func DedupeKeys(keys []PermissionKey) []PermissionKey {
	seen := make(map[PermissionKey]struct{}, len(keys))
	out := make([]PermissionKey, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
