package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workspace-tracker/internal/api/dto"
	"github.com/spec-kit/workspace-tracker/internal/auth"
	"github.com/spec-kit/workspace-tracker/internal/service"
	apperrors "github.com/spec-kit/workspace-tracker/pkg/util/errorutil"
)

// CommentsHandler manages ticket discussion threads.
type CommentsHandler struct {
	service *service.CommentService
}

// NewCommentsHandler constructs handler.
func NewCommentsHandler(commentService *service.CommentService) *CommentsHandler {
	return &CommentsHandler{service: commentService}
}

// Create POST /api/workspaces/:wid/tickets/:id/comments.
func (h *CommentsHandler) Create(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.service.CreateComment(c.UserContext(), identity, c.Params("wid"), c.Params("id"), req.Message, req.ParentID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

// List GET /api/workspaces/:wid/tickets/:id/comments.
func (h *CommentsHandler) List(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	comments, err := h.service.ListComments(c.UserContext(), identity, c.Params("wid"), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, commentResponse(&comments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Update PUT /api/workspaces/:wid/comments/:commentId.
func (h *CommentsHandler) Update(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.service.UpdateComment(c.UserContext(), identity, c.Params("wid"), c.Params("commentId"), req.Message)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": commentResponse(comment)})
}

// Delete DELETE /api/workspaces/:wid/comments/:commentId.
func (h *CommentsHandler) Delete(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteComment(c.UserContext(), identity, c.Params("wid"), c.Params("commentId")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
