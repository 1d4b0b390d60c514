// Package service implements the login flow: credential verification against
// the user context, then access token issuance.
package service

import (
	"context"
	"log/slog"
	"time"

	"preclear/internal/user/models"
	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
	"preclear/pkg/platform/audit"
	"preclear/pkg/requestcontext"
)

// CredentialVerifier is the slice of the user service the login flow needs.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, email, password string) (*models.User, error)
}

// TokenIssuer signs access tokens. Implemented by internal/auth/jwt.
type TokenIssuer interface {
	GenerateAccessToken(userID id.UserID, role id.Role, now time.Time) (string, error)
	TTL() time.Duration
}

type Service struct {
	users  CredentialVerifier
	tokens TokenIssuer
	audit  *audit.Publisher
	logger *slog.Logger
}

func New(users CredentialVerifier, tokens TokenIssuer, auditPub *audit.Publisher, logger *slog.Logger) *Service {
	return &Service{users: users, tokens: tokens, audit: auditPub, logger: logger}
}

// LoginResult is what a successful login returns.
type LoginResult struct {
	AccessToken string
	TokenType   string
	ExpiresIn   time.Duration
	User        *models.User
}

// Login verifies credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" {
		return nil, dErrors.NewField(dErrors.CodeInvalidInput, "email", "email is required")
	}
	if password == "" {
		return nil, dErrors.NewField(dErrors.CodeInvalidInput, "password", "password is required")
	}

	u, err := s.users.VerifyCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.GenerateAccessToken(u.ID, u.Role, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not issue access token")
	}

	s.audit.EmitAudit(ctx, audit.AuditEvent{
		Entity:   audit.EntityUser,
		EntityID: u.ID.String(),
		ActorID:  u.ID,
		Action:   "logged_in",
	})
	return &LoginResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   s.tokens.TTL(),
		User:        u,
	}, nil
}
