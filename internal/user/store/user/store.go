// Package user persists user accounts. Stores return sentinel errors; the
// service translates them into coded domain errors.
package user

import (
	"context"

	"preclear/internal/user/models"
	id "preclear/pkg/domain"
)

// Store is the persistence boundary for user accounts.
type Store interface {
	// Create inserts a new user. Returns sentinel.ErrAlreadyUsed when the
	// email is taken.
	Create(ctx context.Context, u *models.User) error
	// GetByID returns sentinel.ErrNotFound for unknown ids.
	GetByID(ctx context.Context, userID id.UserID) (*models.User, error)
	// GetByEmail looks up by normalized email.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// Update rewrites the mutable columns of an existing user.
	Update(ctx context.Context, u *models.User) error
	// List returns all users ordered by creation time, newest first.
	List(ctx context.Context) ([]models.User, error)
	// Delete removes the user. Shipments created by them keep a null
	// created_by rather than disappearing.
	Delete(ctx context.Context, userID id.UserID) error
}
