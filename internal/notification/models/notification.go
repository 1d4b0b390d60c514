// Package models defines per-user notifications. Notifications are
// materialized from the approval event stream and read over HTTP; they are
// never a source of truth, so losing one is an inconvenience, not a bug.
package models

import (
	"time"

	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
)

// Notification is one message addressed to one user. DedupKey makes
// materialization idempotent under at-least-once delivery: replaying the same
// event produces the same key and the store drops the duplicate.
type Notification struct {
	ID        id.NotificationID
	UserID    id.UserID
	Title     string
	Body      string
	Entity    string
	EntityID  string
	DedupKey  string
	Read      bool
	CreatedAt time.Time
	ReadAt    *time.Time
}

// Validate checks the structural invariants before a row reaches a store.
func (n *Notification) Validate() error {
	if n.UserID.IsNil() {
		return dErrors.NewField(dErrors.CodeInvalidInput, "userId", "notification recipient is required")
	}
	if n.Title == "" {
		return dErrors.NewField(dErrors.CodeInvalidInput, "title", "notification title is required")
	}
	return nil
}

// MarkRead flips the read flag once; marking an already-read notification is
// a no-op so the operation stays idempotent.
func (n *Notification) MarkRead(at time.Time) {
	if n.Read {
		return
	}
	n.Read = true
	n.ReadAt = &at
}
