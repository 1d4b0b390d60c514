package notification

import (
	"context"
	"sort"
	"sync"
	"time"

	"preclear/internal/notification/models"
	id "preclear/pkg/domain"
	"preclear/pkg/platform/sentinel"
)

// InMemory is the map-backed twin of the postgres store, used by unit tests.
type InMemory struct {
	mu            sync.RWMutex
	notifications map[id.NotificationID]*models.Notification
	dedup         map[string]id.NotificationID
}

func NewInMemory() *InMemory {
	return &InMemory{
		notifications: make(map[id.NotificationID]*models.Notification),
		dedup:         make(map[string]id.NotificationID),
	}
}

func (s *InMemory) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.DedupKey != "" {
		if _, seen := s.dedup[n.DedupKey]; seen {
			return sentinel.ErrConflict
		}
	}
	clone := *n
	s.notifications[n.ID] = &clone
	if n.DedupKey != "" {
		s.dedup[n.DedupKey] = n.ID
	}
	return nil
}

func (s *InMemory) Get(_ context.Context, notificationID id.NotificationID) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[notificationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *n
	return &clone, nil
}

func (s *InMemory) ListByUser(_ context.Context, userID id.UserID, unreadOnly bool) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Notification
	for _, n := range s.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemory) MarkRead(_ context.Context, notificationID id.NotificationID, userID id.UserID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[notificationID]
	if !ok || n.UserID != userID {
		return sentinel.ErrNotFound
	}
	n.MarkRead(at)
	return nil
}

func (s *InMemory) MarkAllRead(_ context.Context, userID id.UserID, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed int
	for _, n := range s.notifications {
		if n.UserID != userID || n.Read {
			continue
		}
		n.MarkRead(at)
		changed++
	}
	return changed, nil
}
