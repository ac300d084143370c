package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workspace-tracker/internal/api/dto"
	"github.com/spec-kit/workspace-tracker/internal/service"
	apperrors "github.com/spec-kit/workspace-tracker/pkg/util/errorutil"
)

// AuthHandler issues access tokens.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.service.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AuthResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      userResponse(result.User),
	}})
}
