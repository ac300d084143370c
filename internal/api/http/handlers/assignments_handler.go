package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workspace-tracker/internal/api/dto"
	"github.com/spec-kit/workspace-tracker/internal/auth"
	"github.com/spec-kit/workspace-tracker/internal/service"
	apperrors "github.com/spec-kit/workspace-tracker/pkg/util/errorutil"
)

// AssignmentsHandler binds users to workspace roles.
type AssignmentsHandler struct {
	service *service.AssignmentService
}

// NewAssignmentsHandler constructs handler.
func NewAssignmentsHandler(assignmentService *service.AssignmentService) *AssignmentsHandler {
	return &AssignmentsHandler{service: assignmentService}
}

// Assign POST /api/workspaces/:wid/assign.
func (h *AssignmentsHandler) Assign(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	var req dto.AssignRolesRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.service.AssignRoles(c.UserContext(), identity, c.Params("wid"), service.BulkAssignInput{
		UserIDs: req.Users,
		RoleIDs: req.Roles,
	})
	if err != nil {
		return err
	}
	items := make([]dto.AssignmentResponse, 0, len(result.Assignments))
	for i := range result.Assignments {
		items = append(items, assignmentResponse(&result.Assignments[i]))
	}
	return c.JSON(fiber.Map{"data": items, "count": result.Count})
}

// SetUserRole PUT /api/workspaces/:wid/user-roles.
func (h *AssignmentsHandler) SetUserRole(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	var req dto.UserRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	roleID := ""
	if req.RoleID != nil {
		roleID = *req.RoleID
	}
	assignment, err := h.service.SetUserRole(c.UserContext(), identity, c.Params("wid"), req.UserID, roleID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": assignmentResponse(assignment)})
}

// RemoveUserRole DELETE /api/workspaces/:wid/user-roles. The target may come
// from the JSON body or from user_id/role_id query parameters.
func (h *AssignmentsHandler) RemoveUserRole(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	var req dto.UserRoleRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	if req.UserID == "" {
		req.UserID = c.Query("user_id")
	}
	if req.RoleID == nil {
		if roleID := c.Query("role_id"); roleID != "" {
			req.RoleID = &roleID
		}
	}
	removed, err := h.service.RemoveUserRole(c.UserContext(), identity, c.Params("wid"), req.UserID, req.RoleID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"removed": removed}})
}
