package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workspace-tracker/internal/api/dto"
	"github.com/spec-kit/workspace-tracker/internal/auth"
	"github.com/spec-kit/workspace-tracker/internal/service"
	apperrors "github.com/spec-kit/workspace-tracker/pkg/util/errorutil"
)

// WorkspacesHandler serves workspace provisioning and membership queries.
type WorkspacesHandler struct {
	workspaces *service.WorkspaceService
	authz      *service.Authorizer
}

// NewWorkspacesHandler constructs handler.
func NewWorkspacesHandler(workspaces *service.WorkspaceService, authz *service.Authorizer) *WorkspacesHandler {
	return &WorkspacesHandler{workspaces: workspaces, authz: authz}
}

// Create POST /api/workspaces.
func (h *WorkspacesHandler) Create(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateWorkspaceRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	details, err := h.workspaces.CreateWorkspace(c.UserContext(), identity, service.WorkspaceCreateInput{
		Name:        req.Name,
		AdminUserID: req.AdminUserID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": workspaceDetail(details)})
}

// List GET /api/workspaces.
func (h *WorkspacesHandler) List(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	items, err := h.workspaces.ListWorkspaces(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workspaceList(items)})
}

// ListMine GET /api/me/workspaces.
func (h *WorkspacesHandler) ListMine(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	items, err := h.workspaces.ListMyWorkspaces(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workspaceList(items)})
}

// ListUsers GET /api/users.
func (h *WorkspacesHandler) ListUsers(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	users, err := h.workspaces.ListUsers(c.UserContext(), identity)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, userResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /api/workspaces/:wid.
func (h *WorkspacesHandler) Get(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	details, err := h.workspaces.GetWorkspace(c.UserContext(), identity, c.Params("wid"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workspaceDetail(details)})
}

// CheckPermission GET /api/workspaces/:wid/permissions/check.
func (h *WorkspacesHandler) CheckPermission(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	entity, operation := c.Query("entity"), c.Query("operation")
	if entity == "" || operation == "" {
		return apperrors.NewValidationError("entity and operation are required", nil)
	}
	allowed, err := h.authz.Check(c.UserContext(), identity, c.Params("wid"), entity, operation)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.PermissionCheckResponse{
		Entity:    entity,
		Operation: operation,
		Allowed:   allowed,
	}})
}

func workspaceDetail(details *service.WorkspaceDetails) dto.WorkspaceDetailResponse {
	resp := dto.WorkspaceDetailResponse{
		WorkspaceResponse: workspaceResponse(details.Workspace),
		Roles:             roleList(details.Roles),
	}
	if details.Admin != nil {
		admin := assignmentResponse(details.Admin)
		resp.Admin = &admin
	}
	return resp
}
