// Package notification persists per-user notifications. Stores return
// sentinel errors; the service translates them into coded domain errors.
package notification

import (
	"context"
	"time"

	"preclear/internal/notification/models"
	id "preclear/pkg/domain"
)

// Store is the persistence port for notifications.
type Store interface {
	// Create inserts a notification. A duplicate DedupKey returns
	// sentinel.ErrConflict; callers treat that as already-delivered.
	Create(ctx context.Context, n *models.Notification) error

	// Get loads one notification or sentinel.ErrNotFound.
	Get(ctx context.Context, notificationID id.NotificationID) (*models.Notification, error)

	// ListByUser returns a user's notifications newest-first, optionally
	// only the unread ones.
	ListByUser(ctx context.Context, userID id.UserID, unreadOnly bool) ([]models.Notification, error)

	// MarkRead flips one notification to read. Returns sentinel.ErrNotFound
	// when the notification does not exist or belongs to another user.
	MarkRead(ctx context.Context, notificationID id.NotificationID, userID id.UserID, at time.Time) error

	// MarkAllRead flips every unread notification of a user and reports how
	// many rows changed.
	MarkAllRead(ctx context.Context, userID id.UserID, at time.Time) (int, error)
}
