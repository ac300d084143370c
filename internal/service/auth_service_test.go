package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/workspace-tracker/internal/auth"
	"github.com/spec-kit/workspace-tracker/internal/config"
	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/repository/memory"
	apperrors "github.com/spec-kit/workspace-tracker/pkg/util/errorutil"
)

func TestLogin(t *testing.T) {
	repos := memory.NewStore().Repositories()
	svc := NewAuthService(config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 5, BcryptCost: bcrypt.MinCost}, AuthDependencies{UserRepo: repos.Users})
	ctx := context.Background()

	root, err := svc.EnsureUser(ctx, "Root", "Root@Example.com", "s3cret", domain.UserTypeSuperAdmin)
	require.NoError(t, err)
	again, err := svc.EnsureUser(ctx, "Root", "root@example.com", "", domain.UserTypeSuperAdmin)
	require.NoError(t, err)
	assert.Equal(t, root.ID, again.ID)

	result, err := svc.Login(ctx, "ROOT@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, root.ID, result.User.ID)
	assert.NotEmpty(t, result.Token)
	assert.True(t, result.ExpiresAt.After(result.User.CreatedAt))

	_, err = svc.Login(ctx, "root@example.com", "wrong")
	requireCode(t, err, apperrors.CodeUnauthorized)
	_, err = svc.Login(ctx, "nobody@example.com", "s3cret")
	requireCode(t, err, apperrors.CodeUnauthorized)
	_, err = svc.Login(ctx, "", "")
	requireCode(t, err, apperrors.CodeValidation)
}

func TestLoginRejectsUnverifiedAccount(t *testing.T) {
	repos := memory.NewStore().Repositories()
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	svc := NewAuthService(config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 5}, AuthDependencies{UserRepo: repos.Users, Hasher: hasher})
	ctx := context.Background()

	hash, err := hasher.Hash("s3cret")
	require.NoError(t, err)
	require.NoError(t, repos.Users.Create(ctx, &domain.User{
		Name:         "Pending",
		Email:        "pending@example.com",
		PasswordHash: hash,
		Type:         domain.UserTypeOther,
		IsActive:     true,
	}))

	_, err = svc.Login(ctx, "pending@example.com", "s3cret")
	requireCode(t, err, apperrors.CodeUnauthorized)
}
