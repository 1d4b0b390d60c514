// Package token stores issued preclear tokens with a TTL. A token is saved
// when the broker approves a shipment and consumed exactly once when the
// shipper books; expiry and reuse both fail verification.
package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	id "preclear/pkg/domain"
)

// Store is the persistence port for preclear tokens.
type Store interface {
	// Save associates the token with the shipment for the given TTL.
	Save(ctx context.Context, token string, shipmentID id.ShipmentID, ttl time.Duration) error
	// Peek verifies the token without removing it, returning the shipment
	// it was issued for. sentinel.ErrNotFound for unknown or expired
	// tokens.
	Peek(ctx context.Context, token string) (id.ShipmentID, error)
	// Consume atomically verifies and removes the token, returning the
	// shipment it was issued for. sentinel.ErrNotFound for unknown or
	// expired tokens.
	Consume(ctx context.Context, token string) (id.ShipmentID, error)
}

// New generates an opaque 32-character hex token.
func New() string {
	buf := make([]byte, 16)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}
