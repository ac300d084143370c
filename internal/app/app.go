// Package app assembles the HTTP application from storage and services.
package app

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/workspace-tracker/internal/api/http"
	"github.com/spec-kit/workspace-tracker/internal/api/http/handlers"
	"github.com/spec-kit/workspace-tracker/internal/auth"
	"github.com/spec-kit/workspace-tracker/internal/config"
	"github.com/spec-kit/workspace-tracker/internal/events"
	"github.com/spec-kit/workspace-tracker/internal/observability"
	"github.com/spec-kit/workspace-tracker/internal/persistence"
	"github.com/spec-kit/workspace-tracker/internal/queue"
	"github.com/spec-kit/workspace-tracker/internal/repository"
	"github.com/spec-kit/workspace-tracker/internal/service"
)

// Dependencies are the long-lived resources the application runs on.
// Postgres, Redis and Enqueuer are optional.
type Dependencies struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Repos      repository.Repositories
	Transactor persistence.Transactor
	Postgres   *persistence.Postgres
	Redis      *persistence.Redis
	Enqueuer   queue.Enqueuer
}

// App is the assembled application.
type App struct {
	Fiber         *fiber.App
	Auth          *service.AuthService
	Authorizer    *service.Authorizer
	Workspaces    *service.WorkspaceService
	Roles         *service.RoleService
	Assignments   *service.AssignmentService
	Tickets       *service.TicketService
	Comments      *service.CommentService
	Notifications *service.NotificationService
	Dispatcher    events.Dispatcher
}

// New wires services, handlers and routes.
func New(deps Dependencies) *App {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	repos := deps.Repos
	dispatcher := events.NewInMemoryDispatcher()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:     repos.Users,
		TokenManager: tokens,
		Logger:       logger,
	})
	authz := service.NewAuthorizer(service.AuthorizerDependencies{
		AssignmentRepo: repos.Assignments,
		PermissionRepo: repos.Permissions,
		Metrics:        deps.Metrics,
		Logger:         logger,
	})

	a := &App{
		Auth:       authService,
		Authorizer: authz,
		Dispatcher: dispatcher,
		Workspaces: service.NewWorkspaceService(service.WorkspaceDependencies{
			Transactor:     deps.Transactor,
			Authorizer:     authz,
			WorkspaceRepo:  repos.Workspaces,
			UserRepo:       repos.Users,
			RoleRepo:       repos.Roles,
			PermissionRepo: repos.Permissions,
			AssignmentRepo: repos.Assignments,
			Dispatcher:     dispatcher,
			Logger:         logger,
		}),
		Roles: service.NewRoleService(service.RoleDependencies{
			Transactor:     deps.Transactor,
			Authorizer:     authz,
			WorkspaceRepo:  repos.Workspaces,
			RoleRepo:       repos.Roles,
			PermissionRepo: repos.Permissions,
			AssignmentRepo: repos.Assignments,
			Logger:         logger,
		}),
		Assignments: service.NewAssignmentService(service.AssignmentDependencies{
			Transactor:     deps.Transactor,
			Authorizer:     authz,
			WorkspaceRepo:  repos.Workspaces,
			UserRepo:       repos.Users,
			RoleRepo:       repos.Roles,
			AssignmentRepo: repos.Assignments,
			Dispatcher:     dispatcher,
			Logger:         logger,
		}),
		Tickets: service.NewTicketService(service.TicketDependencies{
			Transactor:     deps.Transactor,
			Authorizer:     authz,
			WorkspaceRepo:  repos.Workspaces,
			TicketRepo:     repos.Tickets,
			CommentRepo:    repos.Comments,
			AssignmentRepo: repos.Assignments,
			HistoryRepo:    repos.History,
			HistoryWriter:  service.NewHistoryWriter(repos.History, deps.Metrics),
			Dispatcher:     dispatcher,
			Logger:         logger,
		}),
		Comments: service.NewCommentService(service.CommentDependencies{
			Transactor:  deps.Transactor,
			Authorizer:  authz,
			TicketRepo:  repos.Tickets,
			CommentRepo: repos.Comments,
			Logger:      logger,
		}),
	}
	a.Notifications = service.NewNotificationService(dispatcher, deps.Enqueuer, repos.Users, logger, cfg.Notification)
	a.Notifications.RegisterHandlers()

	probes := map[string]handlers.Pinger{}
	if deps.Postgres != nil {
		probes["postgres"] = deps.Postgres
	}
	var limiter *httptransport.RateLimiter
	if deps.Redis != nil {
		probes["redis"] = deps.Redis
		if cfg.RateLimit.Enabled {
			limiter = httptransport.NewRateLimiter(deps.Redis.Client, cfg.RateLimit, logger)
		}
	}

	// Stored ids come straight from c.Params; they must not alias request buffers.
	server := fiber.New(fiber.Config{AppName: cfg.App.Name, Immutable: true})
	httptransport.RegisterMiddlewares(server, logger, deps.Metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, probes),
		Auth:           handlers.NewAuthHandler(authService),
		Workspaces:     handlers.NewWorkspacesHandler(a.Workspaces, authz),
		Roles:          handlers.NewRolesHandler(a.Roles),
		Assignments:    handlers.NewAssignmentsHandler(a.Assignments),
		Tickets:        handlers.NewTicketsHandler(a.Tickets),
		Comments:       handlers.NewCommentsHandler(a.Comments),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, repos.Users),
		RateLimiter:    limiter,
		Metrics:        deps.Metrics,
	})
	a.Fiber = server
	return a
}
