package rule

import (
	"context"
	"sort"
	"sync"
	"time"

	"preclear/internal/rules/models"
	id "preclear/pkg/domain"
	"preclear/pkg/platform/sentinel"
)

// InMemory is the map-backed twin of the postgres store, used by unit tests.
type InMemory struct {
	mu       sync.RWMutex
	rules    map[id.RuleID]*models.Rule
	requests map[id.ChangeRequestID]*models.ChangeRequest
}

func NewInMemory() *InMemory {
	return &InMemory{
		rules:    make(map[id.RuleID]*models.Rule),
		requests: make(map[id.ChangeRequestID]*models.ChangeRequest),
	}
}

func (s *InMemory) CreateRule(_ context.Context, r *models.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rules {
		if existing.Code == r.Code && existing.Version == r.Version {
			return sentinel.ErrConflict
		}
	}
	clone := *r
	s.rules[r.ID] = &clone
	return nil
}

func (s *InMemory) GetRule(_ context.Context, ruleID id.RuleID) (*models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[ruleID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *r
	return &clone, nil
}

func (s *InMemory) ListRules(_ context.Context) ([]models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out, nil
}

func (s *InMemory) ActiveRules(_ context.Context, country string, at time.Time) ([]models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Rule
	for _, r := range s.rules {
		if !r.InEffect(at) {
			continue
		}
		if r.Country != "" && r.Country != country {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *InMemory) LatestVersion(_ context.Context, code string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest := 0
	for _, r := range s.rules {
		if r.Code == code && r.Version > latest {
			latest = r.Version
		}
	}
	return latest, nil
}

func (s *InMemory) DeactivateCode(_ context.Context, code string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rules {
		if r.Code == code && r.Active {
			r.Active = false
			r.UpdatedAt = now
		}
	}
	return nil
}

func (s *InMemory) UpdateRule(_ context.Context, r *models.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[r.ID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *r
	s.rules[r.ID] = &clone
	return nil
}

func (s *InMemory) CreateChangeRequest(_ context.Context, c *models.ChangeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *c
	s.requests[c.ID] = &clone
	return nil
}

func (s *InMemory) GetChangeRequest(_ context.Context, requestID id.ChangeRequestID) (*models.ChangeRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (s *InMemory) ListChangeRequests(_ context.Context, status models.ChangeRequestStatus) ([]models.ChangeRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ChangeRequest
	for _, c := range s.requests {
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out, nil
}

func (s *InMemory) UpdateChangeRequest(_ context.Context, c *models.ChangeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[c.ID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *c
	s.requests[c.ID] = &clone
	return nil
}
