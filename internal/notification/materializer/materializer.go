// Package materializer consumes the approval event topic and turns each
// decision into an inbox notification for the affected user. Delivery is
// at-least-once; the notification dedup key absorbs replays.
package materializer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"preclear/internal/notification/service"
	"preclear/internal/platform/kafka"
	rulemodels "preclear/internal/rules/models"
	shipmodels "preclear/internal/shipment/models"
	id "preclear/pkg/domain"
	"preclear/pkg/platform/audit"
	"preclear/pkg/platform/sentinel"
)

// ShipmentLookup is the slice of the shipment store the resolver needs.
type ShipmentLookup interface {
	Get(ctx context.Context, shipmentID id.ShipmentID) (*shipmodels.ShipmentDetail, error)
}

// ChangeRequestLookup is the slice of the rules store the resolver needs.
type ChangeRequestLookup interface {
	GetChangeRequest(ctx context.Context, requestID id.ChangeRequestID) (*rulemodels.ChangeRequest, error)
}

// OwnerResolver maps an approval event's subject to the user who should hear
// about it: the shipment owner, or the author of a rule change request.
// Entities without a natural recipient resolve to none and are skipped.
type OwnerResolver struct {
	Shipments ShipmentLookup
	Requests  ChangeRequestLookup
}

func (r OwnerResolver) Recipient(ctx context.Context, entity audit.Entity, entityID string) (id.UserID, error) {
	switch entity {
	case audit.EntityShipment:
		shipmentID, err := id.ParseShipmentID(entityID)
		if err != nil {
			return id.UserID{}, sentinel.ErrNotFound
		}
		detail, err := r.Shipments.Get(ctx, shipmentID)
		if err != nil {
			return id.UserID{}, err
		}
		if detail.CreatedBy == nil {
			return id.UserID{}, sentinel.ErrNotFound
		}
		return *detail.CreatedBy, nil
	case audit.EntityChangeRequest:
		requestID, err := id.ParseChangeRequestID(entityID)
		if err != nil {
			return id.UserID{}, sentinel.ErrNotFound
		}
		c, err := r.Requests.GetChangeRequest(ctx, requestID)
		if err != nil {
			return id.UserID{}, err
		}
		if c.RequestedBy == nil {
			return id.UserID{}, sentinel.ErrNotFound
		}
		return *c.RequestedBy, nil
	default:
		return id.UserID{}, sentinel.ErrNotFound
	}
}

// Resolver finds who an approval event concerns.
type Resolver interface {
	Recipient(ctx context.Context, entity audit.Entity, entityID string) (id.UserID, error)
}

// Materializer is the kafka.Handler for the approval topic.
type Materializer struct {
	notifications *service.Service
	resolver      Resolver
	logger        *slog.Logger
}

func New(notifications *service.Service, resolver Resolver, logger *slog.Logger) *Materializer {
	return &Materializer{notifications: notifications, resolver: resolver, logger: logger}
}

// Handle decodes one approval event and delivers the matching notification.
// Malformed payloads and subjects without a recipient are dropped, not
// retried; only infrastructure errors leave the offset uncommitted.
func (m *Materializer) Handle(ctx context.Context, msg *kafka.Message) error {
	var event audit.ApprovalEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		m.logger.WarnContext(ctx, "dropping undecodable approval event",
			"topic", msg.Topic,
			"error", err.Error(),
		)
		return nil
	}

	recipient, err := m.resolver.Recipient(ctx, event.Entity, event.EntityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("resolve recipient for %s %s: %w", event.Entity, event.EntityID, err)
	}

	_, err = m.notifications.Deliver(ctx, service.DeliverInput{
		UserID:   recipient,
		Title:    titleFor(event),
		Body:     bodyFor(event),
		Entity:   string(event.Entity),
		EntityID: event.EntityID,
		DedupKey: dedupKey(event),
	})
	if err != nil {
		return fmt.Errorf("deliver notification for %s %s: %w", event.Entity, event.EntityID, err)
	}
	return nil
}

func dedupKey(event audit.ApprovalEvent) string {
	return string(event.Entity) + ":" + event.EntityID + ":" + string(event.Action) +
		":" + strconv.FormatInt(event.Timestamp.UnixNano(), 10)
}

func titleFor(event audit.ApprovalEvent) string {
	if event.Entity == audit.EntityChangeRequest {
		switch event.Action {
		case audit.ActionApprove:
			return "Rule change approved"
		case audit.ActionReject:
			return "Rule change rejected"
		default:
			return "Rule change needs revision"
		}
	}
	switch event.Action {
	case audit.ActionApprove:
		return "Shipment cleared"
	case audit.ActionReject:
		return "Shipment blocked"
	case audit.ActionRequestChanges:
		return "Shipment requires resolution"
	case audit.ActionEscalate:
		return "Shipment escalated for review"
	}
	return "Shipment updated"
}

func bodyFor(event audit.ApprovalEvent) string {
	if event.Comments != "" {
		return event.Comments
	}
	if event.PreviousState != "" && event.NewState != "" {
		return "Status changed from " + event.PreviousState + " to " + event.NewState + "."
	}
	return "A reviewer acted on your " + string(event.Entity) + "."
}
