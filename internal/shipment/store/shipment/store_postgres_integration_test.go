//go:build integration

package shipment_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"preclear/internal/compliance"
	"preclear/internal/shipment/models"
	"preclear/internal/shipment/store/shipment"
	id "preclear/pkg/domain"
	"preclear/pkg/platform/sentinel"
	"preclear/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *shipment.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = shipment.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "shipments"))
}

func newDetail() *models.ShipmentDetail {
	now := time.Now().UTC().Truncate(time.Microsecond)
	shipmentID := id.NewShipmentID()
	return &models.ShipmentDetail{
		Shipment: models.Shipment{
			ID:           shipmentID,
			ReferenceID:  models.NewReferenceID(),
			Name:         "battery samples",
			Mode:         models.ModeAir,
			ShipmentType: models.TypeInternational,
			Carrier:      "DHL",
			Status:       models.StatusDraft,
			RowVersion:   1,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		Parties: []models.Party{
			{
				ID: uuid.New(), ShipmentID: shipmentID, PartyType: models.PartyShipper,
				CompanyName: "Volt Cells GmbH", ContactName: "J. Weber",
				Email: "ops@voltcells.example", CountryCode: "DE",
			},
			{
				ID: uuid.New(), ShipmentID: shipmentID, PartyType: models.PartyConsignee,
				CompanyName: "Pacific Import Co", CountryCode: "US",
			},
		},
		Items: []models.Item{
			{
				ID: uuid.New(), ShipmentID: shipmentID, Description: "lithium cells",
				HSCode: "850760", Quantity: 10, UnitPrice: 25, TotalValue: 250,
				CountryOfOrigin: "DE", ExportReason: models.ReasonSale,
			},
		},
		Packages: []models.Package{
			{
				ID: uuid.New(), ShipmentID: shipmentID, PackageType: models.PackageBox,
				Length: 40, Width: 30, Height: 20, DimensionUnit: "cm",
				Weight: 5.5, WeightUnit: "kg", Quantity: 1,
			},
		},
		Service: &models.ServiceDetail{
			ShipmentID: shipmentID, ServiceLevel: compliance.ServiceExpress,
			Incoterm: "DAP", Currency: "USD", DeclaredValue: 250,
			PickupType: models.PickupDropOff,
		},
	}
}

func (s *PostgresStoreSuite) TestCreateGetRoundTrip() {
	ctx := context.Background()
	detail := newDetail()
	s.Require().NoError(s.store.Create(ctx, detail))

	loaded, err := s.store.Get(ctx, detail.ID)
	s.Require().NoError(err)
	s.Equal(detail.ReferenceID, loaded.ReferenceID)
	s.Equal(models.StatusDraft, loaded.Status)
	s.Len(loaded.Parties, 2)
	s.Len(loaded.Items, 1)
	s.Len(loaded.Packages, 1)
	s.Require().NotNil(loaded.Service)
	s.Equal(compliance.ServiceExpress, loaded.Service.ServiceLevel)
	s.InDelta(250.0, loaded.Items[0].TotalValue, 0.001)
}

func (s *PostgresStoreSuite) TestGetMissing() {
	_, err := s.store.Get(context.Background(), id.NewShipmentID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDuplicateReference() {
	ctx := context.Background()
	first := newDetail()
	s.Require().NoError(s.store.Create(ctx, first))

	second := newDetail()
	second.ReferenceID = first.ReferenceID
	s.ErrorIs(s.store.Create(ctx, second), sentinel.ErrAlreadyUsed)
}

func (s *PostgresStoreSuite) TestOptimisticLocking() {
	ctx := context.Background()
	detail := newDetail()
	s.Require().NoError(s.store.Create(ctx, detail))

	fresh := detail.Shipment
	fresh.Name = "renamed"
	fresh.UpdatedAt = time.Now().UTC()
	s.Require().NoError(s.store.Update(ctx, &fresh, 1))
	s.Equal(int64(2), fresh.RowVersion)

	stale := detail.Shipment
	stale.Name = "stale write"
	s.ErrorIs(s.store.Update(ctx, &stale, 1), sentinel.ErrConflict)

	gone := detail.Shipment
	gone.ID = id.NewShipmentID()
	s.ErrorIs(s.store.Update(ctx, &gone, 1), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDeleteCascades() {
	ctx := context.Background()
	detail := newDetail()
	s.Require().NoError(s.store.Create(ctx, detail))
	s.Require().NoError(s.store.AddTracking(ctx, &models.TrackingEvent{
		ID: uuid.New(), ShipmentID: detail.ID, Status: "picked_up",
		Location: "Hamburg", OccurredAt: time.Now().UTC(), CreatedAt: time.Now().UTC(),
	}))

	s.Require().NoError(s.store.Delete(ctx, detail.ID))

	var count int
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM shipment_tracking`).Scan(&count))
	s.Zero(count)

	s.ErrorIs(s.store.Delete(ctx, detail.ID), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListPagination() {
	ctx := context.Background()
	for range 5 {
		s.Require().NoError(s.store.Create(ctx, newDetail()))
	}

	first, err := s.store.List(ctx, 1, 2)
	s.Require().NoError(err)
	s.Len(first, 2)

	third, err := s.store.List(ctx, 3, 2)
	s.Require().NoError(err)
	s.Len(third, 1)
}

func (s *PostgresStoreSuite) TestDocumentVersioning() {
	ctx := context.Background()
	detail := newDetail()
	s.Require().NoError(s.store.Create(ctx, detail))

	now := time.Now().UTC()
	first := &models.Document{
		ID: id.NewDocumentID(), ShipmentID: detail.ID,
		DocumentType: models.DocSDS, FileName: "sds-v1.pdf",
		StorageKey: "docs/" + detail.ID.String() + "/sds-v1.pdf", CreatedAt: now,
	}
	s.Require().NoError(s.store.AddDocument(ctx, first))
	s.Equal(1, first.Version)

	second := &models.Document{
		ID: id.NewDocumentID(), ShipmentID: detail.ID,
		DocumentType: models.DocSDS, FileName: "sds-v2.pdf",
		StorageKey: "docs/" + detail.ID.String() + "/sds-v2.pdf", CreatedAt: now,
	}
	s.Require().NoError(s.store.AddDocument(ctx, second))
	s.Equal(2, second.Version)
}
