package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workspace-tracker/internal/api/dto"
	"github.com/spec-kit/workspace-tracker/internal/auth"
	"github.com/spec-kit/workspace-tracker/internal/service"
	apperrors "github.com/spec-kit/workspace-tracker/pkg/util/errorutil"
)

// RolesHandler manages workspace roles and their grants.
type RolesHandler struct {
	service *service.RoleService
}

// NewRolesHandler constructs handler.
func NewRolesHandler(roleService *service.RoleService) *RolesHandler {
	return &RolesHandler{service: roleService}
}

// List GET /api/workspaces/:wid/roles.
func (h *RolesHandler) List(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	roles, err := h.service.ListRoles(c.UserContext(), identity, c.Params("wid"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": roleList(roles)})
}

// Create POST /api/workspaces/:wid/roles.
func (h *RolesHandler) Create(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	role, err := h.service.CreateRole(c.UserContext(), identity, c.Params("wid"), service.RoleCreateInput{
		Name:        req.Name,
		Description: req.Description,
		Permissions: permissionInputs(req.Permissions),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": roleResponse(role)})
}

// Update PUT /api/workspaces/:wid/roles/:roleId.
func (h *RolesHandler) Update(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	var req dto.UpdateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	input := service.RoleUpdateInput{Name: req.Name, Description: req.Description}
	if req.Permissions != nil {
		perms := permissionInputs(*req.Permissions)
		input.Permissions = &perms
	}
	role, err := h.service.UpdateRole(c.UserContext(), identity, c.Params("wid"), c.Params("roleId"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": roleResponse(role)})
}

// Delete DELETE /api/workspaces/:wid/roles/:roleId.
func (h *RolesHandler) Delete(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteRole(c.UserContext(), identity, c.Params("wid"), c.Params("roleId")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Grant PATCH /api/workspaces/:wid/roles/:roleId/permissions.
func (h *RolesHandler) Grant(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	var req dto.PermissionsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	role, err := h.service.GrantPermissions(c.UserContext(), identity, c.Params("wid"), c.Params("roleId"), permissionInputs(req.Permissions))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": roleResponse(role)})
}

// Revoke PATCH /api/workspaces/:wid/roles/:roleId/permissions/remove.
func (h *RolesHandler) Revoke(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	var req dto.PermissionsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.service.RevokePermissions(c.UserContext(), identity, c.Params("wid"), c.Params("roleId"), permissionInputs(req.Permissions))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.RevokeResponse{Role: roleResponse(result.Role), Removed: result.Removed}})
}

func permissionInputs(reqs []dto.PermissionRequest) []service.PermissionInput {
	out := make([]service.PermissionInput, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, service.PermissionInput{Entity: r.Entity, Operation: r.Operation})
	}
	return out
}
