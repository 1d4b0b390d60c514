// Package service implements the shipment lifecycle operations: CRUD, the
// compliance evaluation step, broker review, document handling, and the
// booking flow gated on the preclear token.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"preclear/internal/compliance"
	"preclear/internal/platform/objectstore"
	"preclear/internal/shipment/metrics"
	"preclear/internal/shipment/models"
	shipmentstore "preclear/internal/shipment/store/shipment"
	tokenstore "preclear/internal/shipment/store/token"
	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
	"preclear/pkg/platform/audit"
	"preclear/pkg/platform/sentinel"
	"preclear/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Evaluator,RuleProvider

// Evaluator screens a shipment. Implemented by the compliance package,
// mockable at the service boundary.
type Evaluator interface {
	Evaluate(input compliance.Input, cutoff int) compliance.Result
}

// EvaluatorFunc adapts compliance.Evaluate to the Evaluator interface.
type EvaluatorFunc func(input compliance.Input, cutoff int) compliance.Result

func (f EvaluatorFunc) Evaluate(input compliance.Input, cutoff int) compliance.Result {
	return f(input, cutoff)
}

// RuleProvider supplies the active dynamic rule set for a destination.
type RuleProvider interface {
	ActiveRules(ctx context.Context, destinationCountry string) ([]compliance.Rule, error)
}

// TxRunner runs a function transactionally. tx.Runner in production,
// tx.NoopRunner with memory stores.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Config carries the service's tunables.
type Config struct {
	AiScoreCutoff    int
	PreclearTokenTTL time.Duration
}

type Service struct {
	store     shipmentstore.Store
	tokens    tokenstore.Store
	blobs     objectstore.Store
	evaluator Evaluator
	rules     RuleProvider
	audit     *audit.Publisher
	runner    TxRunner
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	cfg       Config
}

func New(
	store shipmentstore.Store,
	tokens tokenstore.Store,
	blobs objectstore.Store,
	evaluator Evaluator,
	rules RuleProvider,
	auditPub *audit.Publisher,
	runner TxRunner,
	m *metrics.Metrics,
	logger *slog.Logger,
	tracer trace.Tracer,
	cfg Config,
) *Service {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("shipment")
	}
	if cfg.AiScoreCutoff == 0 {
		cfg.AiScoreCutoff = 90
	}
	if cfg.PreclearTokenTTL == 0 {
		cfg.PreclearTokenTTL = 72 * time.Hour
	}
	return &Service{
		store:     store,
		tokens:    tokens,
		blobs:     blobs,
		evaluator: evaluator,
		rules:     rules,
		audit:     auditPub,
		runner:    runner,
		metrics:   m,
		logger:    logger,
		tracer:    tracer,
		cfg:       cfg,
	}
}

// Create validates and persists a new shipment aggregate in draft.
func (s *Service) Create(ctx context.Context, detail *models.ShipmentDetail) (*models.ShipmentDetail, error) {
	now := requestcontext.Now(ctx)

	detail.ID = id.NewShipmentID()
	if detail.ReferenceID == "" {
		detail.ReferenceID = models.NewReferenceID()
	}
	detail.Status = models.StatusDraft
	detail.PreclearToken = ""
	detail.RowVersion = 1
	detail.CreatedAt = now
	detail.UpdatedAt = now
	if actor := requestcontext.UserID(ctx); !actor.IsNil() {
		detail.CreatedBy = &actor
	}
	for i := range detail.Parties {
		detail.Parties[i].ID = uuid.New()
		detail.Parties[i].ShipmentID = detail.ID
	}
	for i := range detail.Items {
		detail.Items[i].ID = uuid.New()
		detail.Items[i].ShipmentID = detail.ID
		if detail.Items[i].TotalValue == 0 {
			detail.Items[i].TotalValue = detail.Items[i].Quantity * detail.Items[i].UnitPrice
		}
	}
	for i := range detail.Packages {
		detail.Packages[i].ID = uuid.New()
		detail.Packages[i].ShipmentID = detail.ID
	}
	if detail.Service != nil {
		detail.Service.ShipmentID = detail.ID
		if detail.Service.Currency == "" {
			detail.Service.Currency = "USD"
		}
	}

	if err := models.ValidateNew(detail); err != nil {
		return nil, err
	}

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, detail); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.NewField(dErrors.CodeConflict, "referenceId", "reference id already in use")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not create shipment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ShipmentsCreated.Inc()
	s.audit.EmitAudit(ctx, audit.AuditEvent{
		Entity:   audit.EntityShipment,
		EntityID: detail.ID.String(),
		Action:   "created",
		Details:  map[string]any{"reference_id": detail.ReferenceID},
	})
	return detail, nil
}

// Get loads the full aggregate.
func (s *Service) Get(ctx context.Context, shipmentID id.ShipmentID) (*models.ShipmentDetail, error) {
	detail, err := s.store.Get(ctx, shipmentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "shipment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load shipment")
	}
	return detail, nil
}

// List returns a page of shipments, newest first. Page defaults to 1 and
// pageSize to 25; a page past the end is empty, not an error.
func (s *Service) List(ctx context.Context, page, pageSize int) ([]models.Shipment, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 25
	}
	shipments, err := s.store.List(ctx, page, pageSize)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not list shipments")
	}
	return shipments, nil
}

// UpdateFields is the whitelist of mutable shipment fields. Nil pointers
// leave the stored value untouched.
type UpdateFields struct {
	Name            *string
	Mode            *models.Mode
	ShipmentType    *models.ShipmentType
	Carrier         *string
	Status          *models.Status
	ExpectedVersion int64
}

// Update applies a partial update. A status change goes through the state
// machine; any other combination only refreshes fields and updatedAt. The
// row-version CAS rejects concurrent edits with CodeConflict.
func (s *Service) Update(ctx context.Context, shipmentID id.ShipmentID, fields UpdateFields) (*models.Shipment, error) {
	now := requestcontext.Now(ctx)

	var updated *models.Shipment
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		detail, err := s.Get(ctx, shipmentID)
		if err != nil {
			return err
		}
		sh := detail.Shipment

		expected := fields.ExpectedVersion
		if expected == 0 {
			expected = sh.RowVersion
		}

		if fields.Name != nil {
			sh.Name = *fields.Name
		}
		if fields.Mode != nil {
			if _, err := models.ParseMode(string(*fields.Mode)); err != nil {
				return err
			}
			sh.Mode = *fields.Mode
		}
		if fields.ShipmentType != nil {
			if _, err := models.ParseShipmentType(string(*fields.ShipmentType)); err != nil {
				return err
			}
			sh.ShipmentType = *fields.ShipmentType
		}
		if fields.Carrier != nil {
			sh.Carrier = *fields.Carrier
		}
		previous := sh.Status
		if fields.Status != nil && *fields.Status != sh.Status {
			if err := sh.ApplyTransition(*fields.Status, now); err != nil {
				return err
			}
		}
		sh.Touch(now)

		if err := s.writeShipment(ctx, &sh, expected); err != nil {
			return err
		}
		if sh.Status != previous {
			s.metrics.Transitions.WithLabelValues(previous.String(), sh.Status.String()).Inc()
		}
		updated = &sh
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.EmitAudit(ctx, audit.AuditEvent{
		Entity:   audit.EntityShipment,
		EntityID: shipmentID.String(),
		Action:   "updated",
	})
	return updated, nil
}

// Delete removes the shipment and cascades to every child entity.
func (s *Service) Delete(ctx context.Context, shipmentID id.ShipmentID) error {
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Delete(ctx, shipmentID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "shipment not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not delete shipment")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.EmitAudit(ctx, audit.AuditEvent{
		Entity:   audit.EntityShipment,
		EntityID: shipmentID.String(),
		Action:   "deleted",
	})
	return nil
}

// writeShipment maps store sentinels from the CAS update onto domain errors.
func (s *Service) writeShipment(ctx context.Context, sh *models.Shipment, expectedVersion int64) error {
	err := s.store.Update(ctx, sh, expectedVersion)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "shipment not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "shipment was modified concurrently, reload and retry")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not update shipment")
	}
}
