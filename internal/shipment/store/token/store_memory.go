package token

import (
	"context"
	"sync"
	"time"

	id "preclear/pkg/domain"
	"preclear/pkg/platform/sentinel"
)

type entry struct {
	shipmentID id.ShipmentID
	expiresAt  time.Time
}

// InMemory is the fallback Store when redis is not configured, and the unit
// test double. Expired entries are dropped lazily on Consume.
type InMemory struct {
	mu     sync.Mutex
	tokens map[string]entry
	now    func() time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{tokens: make(map[string]entry), now: time.Now}
}

func (s *InMemory) Save(_ context.Context, token string, shipmentID id.ShipmentID, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = entry{shipmentID: shipmentID, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *InMemory) Peek(_ context.Context, token string) (id.ShipmentID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tokens[token]
	if !ok || s.now().After(e.expiresAt) {
		return id.ShipmentID{}, sentinel.ErrNotFound
	}
	return e.shipmentID, nil
}

func (s *InMemory) Consume(_ context.Context, token string) (id.ShipmentID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tokens[token]
	if !ok {
		return id.ShipmentID{}, sentinel.ErrNotFound
	}
	delete(s.tokens, token)
	if s.now().After(e.expiresAt) {
		return id.ShipmentID{}, sentinel.ErrNotFound
	}
	return e.shipmentID, nil
}
