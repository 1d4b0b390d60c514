package user

import (
	"context"
	"sort"
	"sync"

	"preclear/internal/user/models"
	id "preclear/pkg/domain"
	"preclear/pkg/platform/sentinel"
)

// InMemory is the map-backed twin of the postgres store, used by unit tests.
type InMemory struct {
	mu     sync.RWMutex
	users  map[id.UserID]*models.User
	emails map[string]id.UserID
}

func NewInMemory() *InMemory {
	return &InMemory{
		users:  make(map[id.UserID]*models.User),
		emails: make(map[string]id.UserID),
	}
}

func (s *InMemory) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.emails[u.Email]; taken {
		return sentinel.ErrAlreadyUsed
	}
	clone := *u
	s.users[u.ID] = &clone
	s.emails[u.Email] = u.ID
	return nil
}

func (s *InMemory) GetByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *InMemory) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.emails[email]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.users[userID]
	return &clone, nil
}

func (s *InMemory) Update(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[u.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if u.Email != current.Email {
		if owner, taken := s.emails[u.Email]; taken && owner != u.ID {
			return sentinel.ErrAlreadyUsed
		}
		delete(s.emails, current.Email)
		s.emails[u.Email] = u.ID
	}
	clone := *u
	s.users[u.ID] = &clone
	return nil
}

func (s *InMemory) Delete(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.emails, u.Email)
	delete(s.users, userID)
	return nil
}

func (s *InMemory) List(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out, nil
}
