package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/workspace-tracker/internal/auth"
	"github.com/spec-kit/workspace-tracker/internal/config"
	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/repository"
	apperrors "github.com/spec-kit/workspace-tracker/pkg/util/errorutil"
)

// AuthService verifies credentials and issues access tokens.
type AuthService struct {
	users    repository.UserRepository
	tokenMgr *auth.TokenManager
	hasher   *auth.PasswordHasher
	logger   *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	TokenManager *auth.TokenManager
	Hasher       *auth.PasswordHasher
	Logger       *zap.Logger
}

// LoginResult carries the authenticated user and its token.
type LoginResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	tokenMgr := deps.TokenManager
	if tokenMgr == nil {
		tokenMgr = auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes)
	}
	hasher := deps.Hasher
	if hasher == nil {
		hasher = auth.NewPasswordHasher(cfg.BcryptCost)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{users: deps.UserRepo, tokenMgr: tokenMgr, hasher: hasher, logger: logger}
}

// Login authenticates by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.Burn(password)
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !ok {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.IsActive {
		return nil, apperrors.NewUnauthorized("account disabled")
	}
	if !user.IsVerified {
		return nil, apperrors.NewUnauthorized("account not verified")
	}

	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{User: user, Token: token, ExpiresAt: exp}, nil
}

// EnsureUser returns the user with email, creating it when absent. Used to
// bootstrap the first super-admin.
func (s *AuthService) EnsureUser(ctx context.Context, name, email, password string, userType domain.UserType) (*domain.User, error) {
	existing, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if password == "" {
		return nil, apperrors.NewValidationError("password is required", nil)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Name:         name,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		Type:         userType,
		IsActive:     true,
		IsVerified:   true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user bootstrapped", zap.String("user_id", user.ID), zap.String("user_type", string(userType)))
	return user, nil
}
