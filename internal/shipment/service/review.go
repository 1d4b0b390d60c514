package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"preclear/internal/compliance"
	"preclear/internal/shipment/models"
	tokenstore "preclear/internal/shipment/store/token"
	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
	"preclear/pkg/platform/audit"
	"preclear/pkg/platform/sentinel"
	"preclear/pkg/requestcontext"
)

// Decision is the broker's verdict on a pre-cleared shipment.
type Decision string

const (
	DecisionApproved           Decision = "Approved"
	DecisionRejected           Decision = "Rejected"
	DecisionDocumentsRequested Decision = "DocumentsRequested"
)

// RequestBrokerReview opens a pending broker review. Only a pre_cleared
// shipment can enter review; the status itself does not change until the
// broker decides.
func (s *Service) RequestBrokerReview(ctx context.Context, shipmentID id.ShipmentID) (*models.BrokerReview, error) {
	now := requestcontext.Now(ctx)

	var review *models.BrokerReview
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		detail, err := s.Get(ctx, shipmentID)
		if err != nil {
			return err
		}
		if detail.Status != models.StatusPreCleared {
			return dErrors.New(dErrors.CodeInvalidTransition,
				"broker review requires a pre_cleared shipment, current status is "+detail.Status.String())
		}
		review = &models.BrokerReview{
			ID:         uuid.New(),
			ShipmentID: shipmentID,
			Status:     models.ReviewPending,
			CreatedAt:  now,
		}
		if err := s.store.UpsertPendingReview(ctx, review); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not open broker review")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.EmitAudit(ctx, audit.AuditEvent{
		Entity:   audit.EntityBrokerReview,
		EntityID: review.ID.String(),
		Action:   "created",
		Details:  map[string]any{"shipment_id": shipmentID.String()},
	})
	return review, nil
}

// DecisionInput carries the broker's verdict. DocumentType is required for
// DecisionDocumentsRequested and names the document being asked for.
type DecisionInput struct {
	Decision     Decision
	Comments     string
	DocumentType models.DocumentType
}

// SubmitBrokerDecision closes the pending review. Approval generates the
// preclear token and advances to token_generated; a rejection or a document
// request sends the shipment to requires_resolution. Dual approval is
// enforced structurally: only a pre_cleared shipment, which implies a Cleared
// AI verdict, can be decided.
func (s *Service) SubmitBrokerDecision(ctx context.Context, shipmentID id.ShipmentID, input DecisionInput) (*models.ShipmentDetail, error) {
	now := requestcontext.Now(ctx)
	broker := requestcontext.UserID(ctx)

	var preclearToken string
	if input.Decision == DecisionApproved {
		// saved before the transaction so an aborted commit leaves only a
		// harmless orphan that the TTL reaps
		preclearToken = tokenstore.New()
		if err := s.tokens.Save(ctx, preclearToken, shipmentID, s.cfg.PreclearTokenTTL); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not issue preclear token")
		}
	}

	var detail *models.ShipmentDetail
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		detail, err = s.Get(ctx, shipmentID)
		if err != nil {
			return err
		}
		if detail.Status != models.StatusPreCleared {
			return dErrors.New(dErrors.CodeInvalidTransition,
				"broker decision requires a pre_cleared shipment, current status is "+detail.Status.String())
		}
		if detail.Compliance == nil || detail.Compliance.AiStatus != compliance.StatusCleared {
			return dErrors.New(dErrors.CodeInvariantViolation,
				"pre_cleared shipment is missing a Cleared compliance verdict")
		}
		review, err := s.store.LatestReview(ctx, shipmentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeInvalidTransition, "no broker review has been requested")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not load broker review")
		}
		if review.Status != models.ReviewPending {
			return dErrors.New(dErrors.CodeInvalidTransition, "broker review is already decided")
		}

		sh := detail.Shipment
		expected := sh.RowVersion
		previous := sh.Status
		action := audit.ActionApprove

		switch input.Decision {
		case DecisionApproved:
			if err := sh.ApplyTransition(models.StatusTokenGenerated, now); err != nil {
				return err
			}
			sh.PreclearToken = preclearToken
			review.Status = models.ReviewApproved
			review.DecidedAt = &now
		case DecisionRejected:
			action = audit.ActionReject
			if err := sh.ApplyTransition(models.StatusRequiresResolution, now); err != nil {
				return err
			}
			review.Status = models.ReviewRejected
			review.DecidedAt = &now
		case DecisionDocumentsRequested:
			action = audit.ActionRequestChanges
			if input.DocumentType == "" {
				return dErrors.NewField(dErrors.CodeInvalidInput, "documentType", "documentType is required when requesting documents")
			}
			if _, err := models.ParseDocumentType(string(input.DocumentType)); err != nil {
				return err
			}
			if err := sh.ApplyTransition(models.StatusRequiresResolution, now); err != nil {
				return err
			}
			request := &models.BrokerRequest{
				ID:           uuid.New(),
				ShipmentID:   shipmentID,
				DocumentType: input.DocumentType,
				Message:      input.Comments,
				Status:       models.RequestOpen,
				CreatedAt:    now,
			}
			if !broker.IsNil() {
				request.RequestedBy = &broker
			}
			if err := s.store.CreateBrokerRequest(ctx, request); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "could not record document request")
			}
		default:
			return dErrors.NewField(dErrors.CodeInvalidInput, "decision", "decision must be Approved, Rejected or DocumentsRequested")
		}

		if !broker.IsNil() {
			review.BrokerID = &broker
		}
		review.Comments = input.Comments
		if err := s.store.UpdateReview(ctx, review); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not update broker review")
		}
		if err := s.writeShipment(ctx, &sh, expected); err != nil {
			return err
		}
		s.metrics.Transitions.WithLabelValues(previous.String(), sh.Status.String()).Inc()
		detail.Shipment = sh

		return s.audit.EmitApproval(ctx, audit.ApprovalEvent{
			Entity:        audit.EntityShipment,
			EntityID:      shipmentID.String(),
			ApproverID:    broker,
			ApproverRole:  "broker",
			Action:        action,
			PreviousState: previous.String(),
			NewState:      sh.Status.String(),
			Comments:      input.Comments,
		})
	})
	if err != nil {
		return nil, err
	}

	if input.Decision == DecisionApproved {
		s.metrics.TokensIssued.Inc()
	}
	return detail, nil
}

// Book verifies the preclear token, advances the shipment to booked and then
// retires the token. The token is single-use; an expired, unknown or
// mismatched token fails with CodeForbidden and does not change state, and a
// rejected transition does not spend the token.
func (s *Service) Book(ctx context.Context, shipmentID id.ShipmentID, preclearToken string) (*models.Shipment, error) {
	now := requestcontext.Now(ctx)

	if preclearToken == "" {
		return nil, dErrors.NewField(dErrors.CodeInvalidInput, "preclearToken", "preclearToken is required")
	}
	// Verify without consuming: a rejected booking must leave the
	// single-use token intact for the next attempt.
	tokenShipment, err := s.tokens.Peek(ctx, preclearToken)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.TokensConsumed.WithLabelValues("invalid").Inc()
			return nil, dErrors.New(dErrors.CodeForbidden, "preclear token is invalid or expired")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not verify preclear token")
	}
	if tokenShipment != shipmentID {
		s.metrics.TokensConsumed.WithLabelValues("mismatch").Inc()
		return nil, dErrors.New(dErrors.CodeForbidden, "preclear token was issued for a different shipment")
	}

	var booked *models.Shipment
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		detail, err := s.Get(ctx, shipmentID)
		if err != nil {
			return err
		}
		sh := detail.Shipment
		expected := sh.RowVersion
		previous := sh.Status
		if err := sh.ApplyTransition(models.StatusBooked, now); err != nil {
			return err
		}
		if err := s.writeShipment(ctx, &sh, expected); err != nil {
			return err
		}
		s.metrics.Transitions.WithLabelValues(previous.String(), sh.Status.String()).Inc()
		booked = &sh
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The CAS write serializes concurrent bookings, so exactly one caller
	// reaches this consume; a racer fails the transition above and keeps
	// its hands off the token.
	if _, err := s.tokens.Consume(ctx, preclearToken); err != nil {
		s.logger.WarnContext(ctx, "booked shipment but could not retire preclear token",
			"shipment_id", shipmentID, "error", err.Error())
	}
	s.metrics.TokensConsumed.WithLabelValues("ok").Inc()
	s.audit.EmitAudit(ctx, audit.AuditEvent{
		Entity:   audit.EntityShipment,
		EntityID: shipmentID.String(),
		Action:   "booked",
	})
	return booked, nil
}
