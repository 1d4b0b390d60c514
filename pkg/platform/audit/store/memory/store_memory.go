package memory

import (
	"context"
	"sync"

	audit "preclear/pkg/platform/audit"
)

// Store keeps events in slices. For tests and endpoint-less development.
type Store struct {
	mu        sync.RWMutex
	approvals []audit.ApprovalEvent
	audits    []audit.AuditEvent
}

func New() *Store {
	return &Store{}
}

func (s *Store) AppendApproval(_ context.Context, event audit.ApprovalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvals = append(s.approvals, event)
	return nil
}

func (s *Store) AppendAudit(_ context.Context, event audit.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, event)
	return nil
}

func (s *Store) ListApprovals(_ context.Context, entity audit.Entity, entityID string) ([]audit.ApprovalEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.ApprovalEvent
	for _, event := range s.approvals {
		if event.Entity == entity && event.EntityID == entityID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (s *Store) ListAudits(_ context.Context, entity audit.Entity, entityID string) ([]audit.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.AuditEvent
	for _, event := range s.audits {
		if event.Entity == entity && event.EntityID == entityID {
			out = append(out, event)
		}
	}
	return out, nil
}
