// Package shipment provides persistence for the shipment aggregate and its
// child entities. Two implementations: InMemory for unit tests and Postgres
// for production. Stores return sentinel errors; services translate them into
// domain errors.
package shipment

import (
	"context"

	"preclear/internal/shipment/models"
	id "preclear/pkg/domain"
)

// Store is the persistence port for the shipment aggregate.
//
// Update performs a compare-and-swap on RowVersion: the row is written only
// when the stored version equals expectedVersion, otherwise sentinel.ErrConflict
// is returned and the caller decides whether to reload and retry.
type Store interface {
	Create(ctx context.Context, detail *models.ShipmentDetail) error
	Get(ctx context.Context, shipmentID id.ShipmentID) (*models.ShipmentDetail, error)
	List(ctx context.Context, page, pageSize int) ([]models.Shipment, error)
	Update(ctx context.Context, shipment *models.Shipment, expectedVersion int64) error
	Delete(ctx context.Context, shipmentID id.ShipmentID) error

	UpsertCompliance(ctx context.Context, record *models.ComplianceRecord) error
	AppendFindings(ctx context.Context, findings []models.Finding) error

	// AddDocument assigns doc.Version as the previous max version for the
	// (shipment, type) pair plus one, then persists the row.
	AddDocument(ctx context.Context, doc *models.Document) error
	ListDocuments(ctx context.Context, shipmentID id.ShipmentID) ([]models.Document, error)

	AddTracking(ctx context.Context, event *models.TrackingEvent) error
	ListTracking(ctx context.Context, shipmentID id.ShipmentID) ([]models.TrackingEvent, error)

	AddMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, shipmentID id.ShipmentID) ([]models.Message, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	UpdatePayment(ctx context.Context, payment *models.Payment) error
	ListPayments(ctx context.Context, shipmentID id.ShipmentID) ([]models.Payment, error)

	// UpsertPendingReview creates the review row or resets an existing one
	// back to Pending for a fresh review round.
	UpsertPendingReview(ctx context.Context, review *models.BrokerReview) error
	LatestReview(ctx context.Context, shipmentID id.ShipmentID) (*models.BrokerReview, error)
	UpdateReview(ctx context.Context, review *models.BrokerReview) error

	CreateBrokerRequest(ctx context.Context, request *models.BrokerRequest) error
	OpenBrokerRequests(ctx context.Context, shipmentID id.ShipmentID) ([]models.BrokerRequest, error)
	ResolveBrokerRequest(ctx context.Context, request *models.BrokerRequest) error
}
