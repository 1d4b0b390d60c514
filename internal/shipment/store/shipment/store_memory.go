package shipment

import (
	"context"
	"sort"
	"strings"
	"sync"

	"preclear/internal/shipment/models"
	id "preclear/pkg/domain"
	"preclear/pkg/platform/sentinel"
)

// InMemory is a map-backed Store for unit tests. It mirrors the Postgres
// store's semantics: reference uniqueness, cascade delete, row-version CAS,
// per-type document versioning.
type InMemory struct {
	mu         sync.RWMutex
	shipments  map[id.ShipmentID]*models.ShipmentDetail
	references map[string]id.ShipmentID
	tracking   map[id.ShipmentID][]models.TrackingEvent
	messages   map[id.ShipmentID][]models.Message
	payments   map[id.ShipmentID][]models.Payment
	reviews    map[id.ShipmentID]*models.BrokerReview
	requests   map[id.ShipmentID][]models.BrokerRequest
}

func NewInMemory() *InMemory {
	return &InMemory{
		shipments:  make(map[id.ShipmentID]*models.ShipmentDetail),
		references: make(map[string]id.ShipmentID),
		tracking:   make(map[id.ShipmentID][]models.TrackingEvent),
		messages:   make(map[id.ShipmentID][]models.Message),
		payments:   make(map[id.ShipmentID][]models.Payment),
		reviews:    make(map[id.ShipmentID]*models.BrokerReview),
		requests:   make(map[id.ShipmentID][]models.BrokerRequest),
	}
}

func (s *InMemory) Create(_ context.Context, detail *models.ShipmentDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.shipments[detail.ID]; exists {
		return sentinel.ErrConflict
	}
	ref := strings.ToUpper(detail.ReferenceID)
	if _, taken := s.references[ref]; taken {
		return sentinel.ErrAlreadyUsed
	}
	s.shipments[detail.ID] = cloneDetail(detail)
	s.references[ref] = detail.ID
	return nil
}

func (s *InMemory) Get(_ context.Context, shipmentID id.ShipmentID) (*models.ShipmentDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	detail, ok := s.shipments[shipmentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneDetail(detail), nil
}

func (s *InMemory) List(_ context.Context, page, pageSize int) ([]models.Shipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]models.Shipment, 0, len(s.shipments))
	for _, detail := range s.shipments {
		all = append(all, detail.Shipment)
	}
	// newest first, id as tiebreaker for a stable order
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID.String() > all[j].ID.String()
	})
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []models.Shipment{}, nil
	}
	end := min(start+pageSize, len(all))
	return all[start:end], nil
}

func (s *InMemory) Update(_ context.Context, shipment *models.Shipment, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	detail, ok := s.shipments[shipment.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if detail.RowVersion != expectedVersion {
		return sentinel.ErrConflict
	}
	next := *shipment
	next.RowVersion = expectedVersion + 1
	detail.Shipment = next
	shipment.RowVersion = next.RowVersion
	return nil
}

func (s *InMemory) Delete(_ context.Context, shipmentID id.ShipmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	detail, ok := s.shipments[shipmentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.references, strings.ToUpper(detail.ReferenceID))
	delete(s.shipments, shipmentID)
	delete(s.tracking, shipmentID)
	delete(s.messages, shipmentID)
	delete(s.payments, shipmentID)
	delete(s.reviews, shipmentID)
	delete(s.requests, shipmentID)
	return nil
}

func (s *InMemory) UpsertCompliance(_ context.Context, record *models.ComplianceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	detail, ok := s.shipments[record.ShipmentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	clone := *record
	detail.Compliance = &clone
	return nil
}

func (s *InMemory) AppendFindings(_ context.Context, findings []models.Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range findings {
		detail, ok := s.shipments[f.ShipmentID]
		if !ok {
			return sentinel.ErrNotFound
		}
		detail.Findings = append(detail.Findings, f)
	}
	return nil
}

func (s *InMemory) AddDocument(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	detail, ok := s.shipments[doc.ShipmentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	maxVersion := 0
	for _, existing := range detail.Documents {
		if existing.DocumentType == doc.DocumentType && existing.Version > maxVersion {
			maxVersion = existing.Version
		}
	}
	doc.Version = maxVersion + 1
	detail.Documents = append(detail.Documents, *doc)
	return nil
}

func (s *InMemory) ListDocuments(_ context.Context, shipmentID id.ShipmentID) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	detail, ok := s.shipments[shipmentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]models.Document{}, detail.Documents...), nil
}

func (s *InMemory) AddTracking(_ context.Context, event *models.TrackingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shipments[event.ShipmentID]; !ok {
		return sentinel.ErrNotFound
	}
	s.tracking[event.ShipmentID] = append(s.tracking[event.ShipmentID], *event)
	return nil
}

func (s *InMemory) ListTracking(_ context.Context, shipmentID id.ShipmentID) ([]models.TrackingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.shipments[shipmentID]; !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]models.TrackingEvent{}, s.tracking[shipmentID]...), nil
}

func (s *InMemory) AddMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shipments[msg.ShipmentID]; !ok {
		return sentinel.ErrNotFound
	}
	s.messages[msg.ShipmentID] = append(s.messages[msg.ShipmentID], *msg)
	return nil
}

func (s *InMemory) ListMessages(_ context.Context, shipmentID id.ShipmentID) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.shipments[shipmentID]; !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]models.Message{}, s.messages[shipmentID]...), nil
}

func (s *InMemory) CreatePayment(_ context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shipments[payment.ShipmentID]; !ok {
		return sentinel.ErrNotFound
	}
	s.payments[payment.ShipmentID] = append(s.payments[payment.ShipmentID], *payment)
	return nil
}

func (s *InMemory) UpdatePayment(_ context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempts := s.payments[payment.ShipmentID]
	for i := range attempts {
		if attempts[i].ID == payment.ID {
			attempts[i] = *payment
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func (s *InMemory) ListPayments(_ context.Context, shipmentID id.ShipmentID) ([]models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.shipments[shipmentID]; !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]models.Payment{}, s.payments[shipmentID]...), nil
}

func (s *InMemory) UpsertPendingReview(_ context.Context, review *models.BrokerReview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shipments[review.ShipmentID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *review
	s.reviews[review.ShipmentID] = &clone
	return nil
}

func (s *InMemory) LatestReview(_ context.Context, shipmentID id.ShipmentID) (*models.BrokerReview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	review, ok := s.reviews[shipmentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *review
	return &clone, nil
}

func (s *InMemory) UpdateReview(_ context.Context, review *models.BrokerReview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.reviews[review.ShipmentID]
	if !ok || existing.ID != review.ID {
		return sentinel.ErrNotFound
	}
	clone := *review
	s.reviews[review.ShipmentID] = &clone
	return nil
}

func (s *InMemory) CreateBrokerRequest(_ context.Context, request *models.BrokerRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shipments[request.ShipmentID]; !ok {
		return sentinel.ErrNotFound
	}
	s.requests[request.ShipmentID] = append(s.requests[request.ShipmentID], *request)
	return nil
}

func (s *InMemory) OpenBrokerRequests(_ context.Context, shipmentID id.ShipmentID) ([]models.BrokerRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var open []models.BrokerRequest
	for _, req := range s.requests[shipmentID] {
		if req.Status == models.RequestOpen {
			open = append(open, req)
		}
	}
	return open, nil
}

func (s *InMemory) ResolveBrokerRequest(_ context.Context, request *models.BrokerRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reqs := s.requests[request.ShipmentID]
	for i := range reqs {
		if reqs[i].ID == request.ID {
			reqs[i] = *request
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func cloneDetail(detail *models.ShipmentDetail) *models.ShipmentDetail {
	clone := &models.ShipmentDetail{
		Shipment: detail.Shipment,
		Parties:  append([]models.Party{}, detail.Parties...),
		Items:    append([]models.Item{}, detail.Items...),
		Packages: append([]models.Package{}, detail.Packages...),
	}
	if detail.Service != nil {
		svc := *detail.Service
		clone.Service = &svc
	}
	if detail.Compliance != nil {
		rec := *detail.Compliance
		clone.Compliance = &rec
	}
	clone.Documents = append([]models.Document{}, detail.Documents...)
	clone.Findings = append([]models.Finding{}, detail.Findings...)
	return clone
}
