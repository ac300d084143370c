package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/workspace-tracker/internal/api/http/handlers"
	"github.com/spec-kit/workspace-tracker/internal/auth"
	"github.com/spec-kit/workspace-tracker/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Workspaces     *handlers.WorkspacesHandler
	Roles          *handlers.RolesHandler
	Assignments    *handlers.AssignmentsHandler
	Tickets        *handlers.TicketsHandler
	Comments       *handlers.CommentsHandler
	AuthMiddleware *auth.AuthMiddleware
	RateLimiter    *RateLimiter
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	var authGuards []fiber.Handler
	apiGuards := []fiber.Handler{cfg.AuthMiddleware.Handle}
	if cfg.RateLimiter != nil {
		authGuards = append(authGuards, cfg.RateLimiter.Anonymous)
		apiGuards = []fiber.Handler{cfg.RateLimiter.Anonymous, cfg.AuthMiddleware.Handle, cfg.RateLimiter.PerUser}
	}

	authGroup := app.Group("/auth", authGuards...)
	authGroup.Post("/login", cfg.Auth.Login)

	api := app.Group("/api", apiGuards...)

	api.Get("/users", cfg.Workspaces.ListUsers)
	api.Get("/me/workspaces", cfg.Workspaces.ListMine)
	api.Post("/workspaces", cfg.Workspaces.Create)
	api.Get("/workspaces", cfg.Workspaces.List)

	ws := api.Group("/workspaces/:wid")
	ws.Get("/", cfg.Workspaces.Get)
	ws.Get("/permissions/check", cfg.Workspaces.CheckPermission)

	ws.Post("/assign", cfg.Assignments.Assign)
	ws.Put("/user-roles", cfg.Assignments.SetUserRole)
	ws.Delete("/user-roles", cfg.Assignments.RemoveUserRole)

	ws.Get("/roles", cfg.Roles.List)
	ws.Post("/roles", cfg.Roles.Create)
	ws.Put("/roles/:roleId", cfg.Roles.Update)
	ws.Delete("/roles/:roleId", cfg.Roles.Delete)
	ws.Patch("/roles/:roleId/permissions", cfg.Roles.Grant)
	ws.Patch("/roles/:roleId/permissions/remove", cfg.Roles.Revoke)

	ws.Post("/tickets", cfg.Tickets.CreateTicket)
	ws.Get("/tickets", cfg.Tickets.ListTickets)
	ws.Get("/tickets/:id", cfg.Tickets.GetTicket)
	ws.Get("/tickets/:id/subtickets", cfg.Tickets.GetSubtickets)
	ws.Patch("/tickets/:id", cfg.Tickets.UpdateTicket)
	ws.Delete("/tickets/:id", cfg.Tickets.DeleteTicket)
	ws.Get("/tickets/:id/history", cfg.Tickets.History)
	ws.Post("/tickets/:id/comments", cfg.Comments.Create)
	ws.Get("/tickets/:id/comments", cfg.Comments.List)

	ws.Put("/comments/:commentId", cfg.Comments.Update)
	ws.Delete("/comments/:commentId", cfg.Comments.Delete)
}
