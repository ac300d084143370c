package repository

import "github.com/spec-kit/workspace-tracker/internal/persistence"

// Repositories groups every store the services depend on.
type Repositories struct {
	Users       UserRepository
	Workspaces  WorkspaceRepository
	Permissions PermissionRepository
	Roles       RoleRepository
	Assignments AssignmentRepository
	Tickets     TicketRepository
	History     TicketHistoryRepository
	Comments    CommentRepository
}

// NewPostgres builds Postgres-backed repositories. Each call joins the
// transaction bound to its context, if any.
func NewPostgres(db persistence.DBTX) Repositories {
	return Repositories{
		Users:       NewUserRepository(db),
		Workspaces:  NewWorkspaceRepository(db),
		Permissions: NewPermissionRepository(db),
		Roles:       NewRoleRepository(db),
		Assignments: NewAssignmentRepository(db),
		Tickets:     NewTicketRepository(db),
		History:     NewTicketHistoryRepository(db),
		Comments:    NewCommentRepository(db),
	}
}
