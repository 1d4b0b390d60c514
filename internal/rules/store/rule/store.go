// Package rule persists import/export rule versions and change requests.
// Memory and postgres twins; sentinel errors at the boundary.
package rule

import (
	"context"
	"time"

	"preclear/internal/rules/models"
	id "preclear/pkg/domain"
)

// Store is the persistence port for the rules context.
type Store interface {
	// CreateRule inserts a new rule version. Returns sentinel.ErrConflict
	// when the (code, version) pair already exists.
	CreateRule(ctx context.Context, r *models.Rule) error
	// GetRule returns sentinel.ErrNotFound for unknown ids.
	GetRule(ctx context.Context, ruleID id.RuleID) (*models.Rule, error)
	// ListRules returns all versions, newest first.
	ListRules(ctx context.Context) ([]models.Rule, error)
	// ActiveRules returns the versions in effect at the given instant for a
	// destination country, including the applies-to-all rows.
	ActiveRules(ctx context.Context, country string, at time.Time) ([]models.Rule, error)
	// LatestVersion returns the highest stored version for a code, zero
	// when the code is new.
	LatestVersion(ctx context.Context, code string) (int, error)
	// DeactivateCode retires every active version of a code.
	DeactivateCode(ctx context.Context, code string, now time.Time) error
	// UpdateRule rewrites the mutable columns of an existing version.
	UpdateRule(ctx context.Context, r *models.Rule) error

	CreateChangeRequest(ctx context.Context, c *models.ChangeRequest) error
	GetChangeRequest(ctx context.Context, requestID id.ChangeRequestID) (*models.ChangeRequest, error)
	// ListChangeRequests filters by status when status is non-empty.
	ListChangeRequests(ctx context.Context, status models.ChangeRequestStatus) ([]models.ChangeRequest, error)
	UpdateChangeRequest(ctx context.Context, c *models.ChangeRequest) error
}
