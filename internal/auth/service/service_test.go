package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"preclear/internal/auth/jwt"
	"preclear/internal/platform/logger"
	userservice "preclear/internal/user/service"
	userstore "preclear/internal/user/store/user"
	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
	"preclear/pkg/platform/audit"
	auditmem "preclear/pkg/platform/audit/store/memory"
)

func newLoginService(t *testing.T) (*Service, *jwt.Service) {
	t.Helper()
	pub := audit.NewPublisher(auditmem.New(), logger.NewNop())
	users := userservice.New(userstore.NewInMemory(), pub, logger.NewNop())
	_, err := users.Create(context.Background(), userservice.CreateInput{
		Email:    "broker@example.com",
		FullName: "Billie Broker",
		Role:     id.RoleBroker,
		Password: "correct horse",
	})
	require.NoError(t, err)

	tokens := jwt.New("test-signing-key", time.Hour)
	return New(users, tokens, pub, logger.NewNop()), tokens
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc, tokens := newLoginService(t)

	result, err := svc.Login(context.Background(), "broker@example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, "Bearer", result.TokenType)
	require.Equal(t, time.Hour, result.ExpiresIn)

	claims, err := tokens.ValidateToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, result.User.ID, claims.UserID)
	require.Equal(t, id.RoleBroker, claims.Role)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newLoginService(t)

	_, err := svc.Login(context.Background(), "broker@example.com", "wrong")
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = svc.Login(context.Background(), "", "correct horse")
	require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
