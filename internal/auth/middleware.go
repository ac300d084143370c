package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/repository"
	apperrors "github.com/spec-kit/workspace-tracker/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	User     *domain.User
	Identity domain.Identity
}

// UserLookup resolves token subjects to user records.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens *TokenManager
	users  UserLookup
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users UserLookup) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// Handle enforces authentication for protected routes. The identity,
// including the super-admin flag, comes from the stored user record.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.GetByID(c.UserContext(), claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}
	if !user.IsActive {
		return apperrors.NewUnauthorized("user inactive")
	}
	if !user.IsVerified {
		return apperrors.NewUnauthorized("user not verified")
	}

	c.Locals(principalKey, &Principal{User: user, Identity: domain.IdentityOf(user)})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// IdentityFromContext returns the caller's identity or an Unauthorized error.
func IdentityFromContext(c *fiber.Ctx) (domain.Identity, error) {
	principal, ok := PrincipalFromContext(c)
	if !ok || principal == nil {
		return domain.Identity{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Identity, nil
}
