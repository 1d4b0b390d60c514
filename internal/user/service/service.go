// Package service implements user account management: creation with bcrypt
// hashing, selective updates that preserve the stored hash unless a new
// password is supplied, and credential verification for the login flow.
package service

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"preclear/internal/user/models"
	userstore "preclear/internal/user/store/user"
	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
	"preclear/pkg/platform/audit"
	"preclear/pkg/platform/sentinel"
	"preclear/pkg/requestcontext"
)

// minPasswordLength is a floor, not a policy engine.
const minPasswordLength = 8

type Service struct {
	store  userstore.Store
	audit  *audit.Publisher
	logger *slog.Logger
}

func New(store userstore.Store, auditPub *audit.Publisher, logger *slog.Logger) *Service {
	return &Service{store: store, audit: auditPub, logger: logger}
}

// CreateInput carries a new account request. Password arrives in the clear
// exactly once and is hashed before it touches any store.
type CreateInput struct {
	Email       string
	FullName    string
	CompanyName string
	Role        id.Role
	Password    string
}

// Create registers a new account. Duplicate emails fail with CodeConflict.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.User, error) {
	now := requestcontext.Now(ctx)

	if len(input.Password) < minPasswordLength {
		return nil, dErrors.NewField(dErrors.CodeInvalidInput, "password", "password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not hash password")
	}

	u := &models.User{
		ID:           id.NewUserID(),
		Email:        models.NormalizeEmail(input.Email),
		FullName:     input.FullName,
		CompanyName:  input.CompanyName,
		Role:         input.Role,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.NewField(dErrors.CodeConflict, "email", "email already in use")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not create user")
	}

	s.audit.EmitAudit(ctx, audit.AuditEvent{
		Entity:   audit.EntityUser,
		EntityID: u.ID.String(),
		Action:   "created",
		Details:  map[string]any{"role": u.Role.String()},
	})
	return u, nil
}

// Get loads one account.
func (s *Service) Get(ctx context.Context, userID id.UserID) (*models.User, error) {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load user")
	}
	return u, nil
}

// List returns all accounts, newest first.
func (s *Service) List(ctx context.Context) ([]models.User, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not list users")
	}
	return users, nil
}

// UpdateFields is the whitelist of mutable account fields. Nil pointers leave
// stored values untouched; in particular a nil Password preserves the
// existing hash.
type UpdateFields struct {
	Email       *string
	FullName    *string
	CompanyName *string
	Role        *id.Role
	Active      *bool
	Password    *string
}

// Update applies a partial update and refreshes UpdatedAt.
func (s *Service) Update(ctx context.Context, userID id.UserID, fields UpdateFields) (*models.User, error) {
	now := requestcontext.Now(ctx)

	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if fields.Email != nil {
		u.Email = models.NormalizeEmail(*fields.Email)
	}
	if fields.FullName != nil {
		u.FullName = *fields.FullName
	}
	if fields.CompanyName != nil {
		u.CompanyName = *fields.CompanyName
	}
	if fields.Role != nil {
		if !fields.Role.IsValid() {
			return nil, dErrors.NewField(dErrors.CodeInvalidInput, "role", "unknown role")
		}
		u.Role = *fields.Role
	}
	if fields.Active != nil {
		u.Active = *fields.Active
	}
	if fields.Password != nil {
		if len(*fields.Password) < minPasswordLength {
			return nil, dErrors.NewField(dErrors.CodeInvalidInput, "password", "password must be at least 8 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*fields.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not hash password")
		}
		u.PasswordHash = hash
	}
	u.UpdatedAt = now

	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, u); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			return nil, dErrors.NewField(dErrors.CodeConflict, "email", "email already in use")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not update user")
		}
	}

	s.audit.EmitAudit(ctx, audit.AuditEvent{
		Entity:   audit.EntityUser,
		EntityID: userID.String(),
		Action:   "updated",
	})
	return u, nil
}

// Delete removes the account. Shipments they created survive with a null
// creator reference.
func (s *Service) Delete(ctx context.Context, userID id.UserID) error {
	if err := s.store.Delete(ctx, userID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not delete user")
	}
	s.audit.EmitAudit(ctx, audit.AuditEvent{
		Entity:   audit.EntityUser,
		EntityID: userID.String(),
		Action:   "deleted",
	})
	return nil
}

// VerifyCredentials checks an email/password pair for the login flow.
// Unknown emails and wrong passwords return the same error so the endpoint
// does not become an account oracle.
func (s *Service) VerifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.store.GetByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load user")
	}
	if !u.Active {
		return nil, dErrors.New(dErrors.CodeForbidden, "account is deactivated")
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "failed login attempt", "user_id", u.ID.String())
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
	}
	return u, nil
}
