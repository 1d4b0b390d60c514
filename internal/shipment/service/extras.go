package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"preclear/internal/compliance"
	"preclear/internal/shipment/models"
	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
	"preclear/pkg/platform/audit"
	"preclear/pkg/platform/sentinel"
	"preclear/pkg/requestcontext"
)

// AppendTracking records a movement event. Append-only.
func (s *Service) AppendTracking(ctx context.Context, shipmentID id.ShipmentID, event models.TrackingEvent) (*models.TrackingEvent, error) {
	now := requestcontext.Now(ctx)
	if event.Status == "" {
		return nil, dErrors.NewField(dErrors.CodeInvalidInput, "status", "tracking status is required")
	}
	event.ID = uuid.New()
	event.ShipmentID = shipmentID
	event.CreatedAt = now
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now
	}
	if err := s.store.AddTracking(ctx, &event); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "shipment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not save tracking event")
	}
	return &event, nil
}

// ListTracking returns all movement events, oldest first.
func (s *Service) ListTracking(ctx context.Context, shipmentID id.ShipmentID) ([]models.TrackingEvent, error) {
	events, err := s.store.ListTracking(ctx, shipmentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "shipment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not list tracking events")
	}
	return events, nil
}

// PostMessage appends one chat entry between shipper and broker.
func (s *Service) PostMessage(ctx context.Context, shipmentID id.ShipmentID, body string) (*models.Message, error) {
	if body == "" {
		return nil, dErrors.NewField(dErrors.CodeInvalidInput, "body", "message body is required")
	}
	msg := &models.Message{
		ID:         uuid.New(),
		ShipmentID: shipmentID,
		SenderRole: requestcontext.Role(ctx),
		Body:       body,
		CreatedAt:  requestcontext.Now(ctx),
	}
	if sender := requestcontext.UserID(ctx); !sender.IsNil() {
		msg.SenderID = &sender
	}
	if err := s.store.AddMessage(ctx, msg); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "shipment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not save message")
	}
	return msg, nil
}

// ListMessages returns the conversation, oldest first.
func (s *Service) ListMessages(ctx context.Context, shipmentID id.ShipmentID) ([]models.Message, error) {
	msgs, err := s.store.ListMessages(ctx, shipmentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "shipment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not list messages")
	}
	return msgs, nil
}

// QuotePrice computes the deterministic price breakdown for the shipment as
// it stands.
func (s *Service) QuotePrice(ctx context.Context, shipmentID id.ShipmentID) (*compliance.Quote, error) {
	detail, err := s.Get(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	quote := compliance.Price(pricingInput(detail))
	return &quote, nil
}

// CreatePayment opens a pending payment attempt priced from the current
// aggregate state.
func (s *Service) CreatePayment(ctx context.Context, shipmentID id.ShipmentID) (*models.Payment, error) {
	now := requestcontext.Now(ctx)

	var payment *models.Payment
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		detail, err := s.Get(ctx, shipmentID)
		if err != nil {
			return err
		}
		quote := compliance.Price(pricingInput(detail))
		payment = &models.Payment{
			ID:         id.NewPaymentID(),
			ShipmentID: shipmentID,
			Amount:     quote.Total,
			Currency:   quote.Currency,
			Status:     models.PaymentPending,
			Breakdown:  quote,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.store.CreatePayment(ctx, payment); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not create payment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.EmitAudit(ctx, audit.AuditEvent{
		Entity:   audit.EntityPayment,
		EntityID: payment.ID.String(),
		Action:   "created",
		Details:  map[string]any{"shipment_id": shipmentID.String(), "amount": payment.Amount},
	})
	return payment, nil
}

// MarkPaymentPaid settles a pending payment.
func (s *Service) MarkPaymentPaid(ctx context.Context, shipmentID id.ShipmentID, paymentID id.PaymentID) (*models.Payment, error) {
	now := requestcontext.Now(ctx)

	var payment *models.Payment
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		payments, err := s.store.ListPayments(ctx, shipmentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "shipment not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not list payments")
		}
		for i := range payments {
			if payments[i].ID == paymentID {
				payment = &payments[i]
				break
			}
		}
		if payment == nil {
			return dErrors.New(dErrors.CodeNotFound, "payment not found")
		}
		if payment.Status != models.PaymentPending {
			return dErrors.New(dErrors.CodeInvalidTransition,
				"payment in status "+string(payment.Status)+" cannot be settled")
		}
		payment.Status = models.PaymentPaid
		payment.PaidAt = &now
		payment.UpdatedAt = now
		if err := s.store.UpdatePayment(ctx, payment); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not update payment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.EmitAudit(ctx, audit.AuditEvent{
		Entity:   audit.EntityPayment,
		EntityID: payment.ID.String(),
		Action:   "paid",
	})
	return payment, nil
}

// ListPayments returns all payment attempts for the shipment.
func (s *Service) ListPayments(ctx context.Context, shipmentID id.ShipmentID) ([]models.Payment, error) {
	payments, err := s.store.ListPayments(ctx, shipmentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "shipment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not list payments")
	}
	return payments, nil
}

// pricingInput derives the quote input from the aggregate. Customs value is
// the item total; the service row supplies level, currency and pickup.
func pricingInput(detail *models.ShipmentDetail) compliance.PricingInput {
	input := compliance.PricingInput{
		Currency:      "USD",
		ServiceLevel:  compliance.ServiceStandard,
		LineItemCount: len(detail.Items),
	}
	for _, item := range detail.Items {
		input.CustomsValue += item.TotalValue
	}
	if shipper := detail.PartyByType(models.PartyShipper); shipper != nil {
		input.OriginCountry = shipper.CountryCode
	}
	if consignee := detail.PartyByType(models.PartyConsignee); consignee != nil {
		input.DestinationCountry = consignee.CountryCode
	}
	if svc := detail.Service; svc != nil {
		if svc.ServiceLevel != "" {
			input.ServiceLevel = svc.ServiceLevel
		}
		if svc.Currency != "" {
			input.Currency = svc.Currency
		}
		input.ScheduledPickup = svc.PickupType == models.PickupScheduled
	}
	if c := detail.Compliance; c != nil {
		input.SpecialCommodity = c.DangerousGoods || c.LithiumBattery || c.FoodPharma
	}
	return input
}
