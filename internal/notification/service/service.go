// Package service exposes the notification inbox: delivery (from the event
// materializer), listing, and read receipts. Ownership is enforced here, not
// in the handler: a user can only ever see or mark their own rows.
package service

import (
	"context"
	"errors"
	"log/slog"

	"preclear/internal/notification/models"
	notifstore "preclear/internal/notification/store/notification"
	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
	"preclear/pkg/platform/sentinel"
	"preclear/pkg/requestcontext"
)

type Service struct {
	store  notifstore.Store
	logger *slog.Logger
}

func New(store notifstore.Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// DeliverInput carries one notification to be delivered.
type DeliverInput struct {
	UserID   id.UserID
	Title    string
	Body     string
	Entity   string
	EntityID string
	DedupKey string
}

// Deliver creates a notification. A duplicate dedup key is treated as
// already-delivered and returns nil, which keeps the event materializer
// idempotent under replay.
func (s *Service) Deliver(ctx context.Context, input DeliverInput) (*models.Notification, error) {
	n := &models.Notification{
		ID:        id.NewNotificationID(),
		UserID:    input.UserID,
		Title:     input.Title,
		Body:      input.Body,
		Entity:    input.Entity,
		EntityID:  input.EntityID,
		DedupKey:  input.DedupKey,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, n); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.logger.DebugContext(ctx, "duplicate notification dropped",
				"dedup_key", input.DedupKey)
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not deliver notification")
	}
	return n, nil
}

// List returns the calling user's notifications, newest first.
func (s *Service) List(ctx context.Context, unreadOnly bool) ([]models.Notification, error) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	out, err := s.store.ListByUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not list notifications")
	}
	return out, nil
}

// MarkRead marks one of the calling user's notifications as read. A
// notification owned by someone else reads as not found.
func (s *Service) MarkRead(ctx context.Context, notificationID id.NotificationID) error {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	err := s.store.MarkRead(ctx, notificationID, userID, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "notification not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not mark notification read")
	}
	return nil
}

// MarkAllRead marks every unread notification of the calling user and
// reports how many changed.
func (s *Service) MarkAllRead(ctx context.Context) (int, error) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return 0, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	changed, err := s.store.MarkAllRead(ctx, userID, requestcontext.Now(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "could not mark notifications read")
	}
	return changed, nil
}
