package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workspace-tracker/internal/api/dto"
	"github.com/spec-kit/workspace-tracker/internal/auth"
	"github.com/spec-kit/workspace-tracker/internal/diff"
	"github.com/spec-kit/workspace-tracker/internal/service"
	apperrors "github.com/spec-kit/workspace-tracker/pkg/util/errorutil"
)

// TicketsHandler manages workspace ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /api/workspaces/:wid/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), identity, c.Params("wid"), service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		TicketType:  req.TicketType,
		Status:      req.Status,
		AssignedTo:  req.AssignedTo,
		DueDate:     req.DueDate,
		ParentID:    req.ParentID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /api/workspaces/:wid/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "0"))
	result, err := h.service.ListTickets(c.UserContext(), identity, c.Params("wid"), service.TicketListInput{
		Status:     c.Query("status"),
		Priority:   c.Query("priority"),
		AssignedTo: c.Query("assigned_to"),
		Query:      c.Query("q"),
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketPageResponse{
		Items:    ticketList(result.Tickets),
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	}})
}

// GetTicket GET /api/workspaces/:wid/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), identity, c.Params("wid"), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// GetSubtickets GET /api/workspaces/:wid/tickets/:id/subtickets.
func (h *TicketsHandler) GetSubtickets(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	children, err := h.service.GetSubtickets(c.UserContext(), identity, c.Params("wid"), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketList(children)})
}

// UpdateTicket PATCH /api/workspaces/:wid/tickets/:id. The body is decoded
// as a raw patch so absent and null fields stay distinguishable.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	patch := diff.Patch{}
	if err := json.Unmarshal(c.Body(), &patch); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.UpdateTicket(c.UserContext(), identity, c.Params("wid"), c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// DeleteTicket DELETE /api/workspaces/:wid/tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteTicket(c.UserContext(), identity, c.Params("wid"), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// History GET /api/workspaces/:wid/tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	rows, err := h.service.ListTicketHistory(c.UserContext(), identity, c.Params("wid"), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyList(rows)})
}
