package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"preclear/internal/compliance"
	"preclear/internal/platform/logger"
	"preclear/internal/platform/objectstore"
	"preclear/internal/shipment/metrics"
	"preclear/internal/shipment/models"
	shipmentstore "preclear/internal/shipment/store/shipment"
	tokenstore "preclear/internal/shipment/store/token"
	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
	"preclear/pkg/platform/audit"
	auditmem "preclear/pkg/platform/audit/store/memory"
	"preclear/pkg/platform/tx"
	"preclear/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	store      *shipmentstore.InMemory
	tokens     *tokenstore.InMemory
	auditStore *auditmem.Store
	svc        *Service
	broker     id.UserID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = shipmentstore.NewInMemory()
	s.tokens = tokenstore.NewInMemory()
	s.auditStore = auditmem.New()
	s.broker = id.NewUserID()
	s.svc = New(
		s.store,
		s.tokens,
		objectstore.NewMemory(),
		EvaluatorFunc(compliance.Evaluate),
		nil,
		audit.NewPublisher(s.auditStore, logger.NewNop()),
		tx.NoopRunner{},
		metrics.New(prometheus.NewRegistry()),
		logger.NewNop(),
		nil,
		Config{AiScoreCutoff: 90, PreclearTokenTTL: time.Hour},
	)
}

// ctxAt pins the request time so timestamp assertions are exact.
func (s *ServiceSuite) ctxAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *ServiceSuite) brokerCtx(t time.Time) context.Context {
	ctx := requestcontext.WithUserID(s.ctxAt(t), s.broker)
	return requestcontext.WithRole(ctx, id.RoleBroker)
}

func (s *ServiceSuite) newDetail(hsCode string) *models.ShipmentDetail {
	return &models.ShipmentDetail{
		Shipment: models.Shipment{
			Name:         "Diode batch",
			Mode:         models.ModeAir,
			ShipmentType: models.TypeInternational,
			Carrier:      "DHL",
		},
		Parties: []models.Party{
			{PartyType: models.PartyShipper, ContactName: "Acme Exports", CountryCode: "US"},
			{PartyType: models.PartyConsignee, ContactName: "Empfanger GmbH", CountryCode: "DE"},
		},
		Items: []models.Item{{
			Description: "Solar diodes",
			HSCode:      hsCode,
			Quantity:    10,
			UnitPrice:   500,
			TotalValue:  5000,
		}},
		Service: &models.ServiceDetail{
			ServiceLevel: compliance.ServiceStandard,
			Currency:     "USD",
		},
	}
}

// TestCreate verifies aggregate validation and reference assignment.
func (s *ServiceSuite) TestCreate() {
	s.Run("assigns id, reference and draft status", func() {
		created, err := s.svc.Create(s.ctxAt(time.Now()), s.newDetail("8541.10"))
		s.Require().NoError(err)
		s.False(created.ID.IsNil())
		s.Regexp(regexp.MustCompile(`^REF-[0-9A-F]{12}$`), created.ReferenceID)
		s.Equal(models.StatusDraft, created.Status)
		s.Equal(int64(1), created.RowVersion)
		s.Equal(created.CreatedAt, created.UpdatedAt)

		audits, err := s.auditStore.ListAudits(context.Background(), audit.EntityShipment, created.ID.String())
		s.Require().NoError(err)
		s.Require().Len(audits, 1)
		s.Equal("created", audits[0].Action)
	})

	s.Run("rejects a shipment without items", func() {
		detail := s.newDetail("8541.10")
		detail.Items = nil
		_, err := s.svc.Create(s.ctxAt(time.Now()), detail)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		s.Equal("items", dErrors.FieldOf(err))
	})

	s.Run("rejects a shipment without a shipper party", func() {
		detail := s.newDetail("8541.10")
		detail.Parties = detail.Parties[1:]
		_, err := s.svc.Create(s.ctxAt(time.Now()), detail)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects a duplicate reference with CodeConflict", func() {
		first, err := s.svc.Create(s.ctxAt(time.Now()), s.newDetail("8541.10"))
		s.Require().NoError(err)

		dup := s.newDetail("8541.10")
		dup.ReferenceID = first.ReferenceID
		_, err = s.svc.Create(s.ctxAt(time.Now()), dup)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

// TestHappyPath walks a clean shipment through the entire lifecycle: AI
// clearance, broker approval, token issue, booking.
func (s *ServiceSuite) TestHappyPath() {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	created, err := s.svc.Create(s.ctxAt(t0), s.newDetail("8541.10"))
	s.Require().NoError(err)

	evaluated, err := s.svc.RequestAiEvaluation(s.ctxAt(t0.Add(time.Minute)), created.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPreCleared, evaluated.Status)
	s.Require().NotNil(evaluated.Compliance)
	s.Equal(compliance.StatusCleared, evaluated.Compliance.AiStatus)
	s.Equal(100, evaluated.Compliance.AiScore)

	approvals, err := s.auditStore.ListApprovals(context.Background(), audit.EntityShipment, created.ID.String())
	s.Require().NoError(err)
	s.Require().Len(approvals, 1)
	s.Equal("AI", approvals[0].ApproverRole)
	s.Equal(audit.ActionApprove, approvals[0].Action)

	review, err := s.svc.RequestBrokerReview(s.brokerCtx(t0.Add(2*time.Minute)), created.ID)
	s.Require().NoError(err)
	s.Equal(models.ReviewPending, review.Status)

	decided, err := s.svc.SubmitBrokerDecision(s.brokerCtx(t0.Add(3*time.Minute)), created.ID,
		DecisionInput{Decision: DecisionApproved, Comments: "paperwork in order"})
	s.Require().NoError(err)
	s.Equal(models.StatusTokenGenerated, decided.Status)
	s.Require().NotEmpty(decided.PreclearToken)

	approvals, err = s.auditStore.ListApprovals(context.Background(), audit.EntityShipment, created.ID.String())
	s.Require().NoError(err)
	s.Require().Len(approvals, 2)
	s.Equal("broker", approvals[1].ApproverRole)
	s.Equal(s.broker, approvals[1].ApproverID)

	s.Run("wrong token does not book", func() {
		_, err := s.svc.Book(s.ctxAt(t0.Add(4*time.Minute)), created.ID, "bogus")
		s.Require().True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	booked, err := s.svc.Book(s.ctxAt(t0.Add(5*time.Minute)), created.ID, decided.PreclearToken)
	s.Require().NoError(err)
	s.Equal(models.StatusBooked, booked.Status)

	s.Run("token is single use", func() {
		_, err := s.svc.Book(s.ctxAt(t0.Add(6*time.Minute)), created.ID, decided.PreclearToken)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

// TestRejectedBookingKeepsToken verifies a booking that fails the status
// check leaves the single-use token intact for a later attempt.
func (s *ServiceSuite) TestRejectedBookingKeepsToken() {
	t0 := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	created, err := s.svc.Create(s.ctxAt(t0), s.newDetail("8541.10"))
	s.Require().NoError(err)
	_, err = s.svc.RequestAiEvaluation(s.ctxAt(t0.Add(time.Minute)), created.ID)
	s.Require().NoError(err)
	_, err = s.svc.RequestBrokerReview(s.brokerCtx(t0.Add(2*time.Minute)), created.ID)
	s.Require().NoError(err)
	decided, err := s.svc.SubmitBrokerDecision(s.brokerCtx(t0.Add(3*time.Minute)), created.ID,
		DecisionInput{Decision: DecisionApproved})
	s.Require().NoError(err)
	s.Require().NotEmpty(decided.PreclearToken)

	cancelled := models.StatusCancelled
	_, err = s.svc.Update(s.ctxAt(t0.Add(4*time.Minute)), created.ID, UpdateFields{Status: &cancelled})
	s.Require().NoError(err)

	_, err = s.svc.Book(s.ctxAt(t0.Add(5*time.Minute)), created.ID, decided.PreclearToken)
	s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidTransition), "%v", err)

	tokenShipment, err := s.tokens.Peek(context.Background(), decided.PreclearToken)
	s.Require().NoError(err, "rejected booking must not retire the token")
	s.Equal(created.ID, tokenShipment)
}

// TestRestrictedFlow walks the lithium-without-SDS path: NeedsDocuments with
// a finding, requires_resolution, recovery through document upload and
// re-evaluation.
func (s *ServiceSuite) TestRestrictedFlow() {
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	detail := s.newDetail("8507.60")
	detail.Items[0].Description = "Li-ion cells"
	created, err := s.svc.Create(s.ctxAt(t0), detail)
	s.Require().NoError(err)

	evaluated, err := s.svc.RequestAiEvaluation(s.ctxAt(t0.Add(time.Minute)), created.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusRequiresResolution, evaluated.Status)
	s.Equal(compliance.StatusNeedsDocuments, evaluated.Compliance.AiStatus)

	var missing bool
	for _, f := range evaluated.Findings {
		if f.MissingDocument == string(models.DocSDS) {
			missing = true
		}
	}
	s.True(missing, "expected a finding naming the missing SDS")

	approvals, err := s.auditStore.ListApprovals(context.Background(), audit.EntityShipment, created.ID.String())
	s.Require().NoError(err)
	s.Require().Len(approvals, 1)
	s.Equal(audit.ActionReject, approvals[0].Action)

	doc, err := s.svc.UploadDocument(s.ctxAt(t0.Add(2*time.Minute)), created.ID, UploadInput{
		DocumentType: models.DocSDS,
		FileName:     "sds.pdf",
	})
	s.Require().NoError(err)
	s.Equal(1, doc.Version)

	afterUpload, err := s.svc.Get(context.Background(), created.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPendingValidation, afterUpload.Status)

	reevaluated, err := s.svc.RequestAiEvaluation(s.ctxAt(t0.Add(3*time.Minute)), created.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPreCleared, reevaluated.Status)
	s.Equal(95, reevaluated.Compliance.AiScore)
}

// TestTransitionLegality verifies every guarded entry point rejects
// out-of-order calls.
func (s *ServiceSuite) TestTransitionLegality() {
	created, err := s.svc.Create(s.ctxAt(time.Now()), s.newDetail("8541.10"))
	s.Require().NoError(err)

	s.Run("broker review needs pre_cleared", func() {
		_, err := s.svc.RequestBrokerReview(s.brokerCtx(time.Now()), created.ID)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("broker decision needs pre_cleared", func() {
		_, err := s.svc.SubmitBrokerDecision(s.brokerCtx(time.Now()), created.ID,
			DecisionInput{Decision: DecisionApproved})
		s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("status update cannot skip states", func() {
		status := models.StatusBooked
		_, err := s.svc.Update(s.ctxAt(time.Now()), created.ID, UpdateFields{Status: &status})
		s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("decision without an open review fails", func() {
		_, err := s.svc.RequestAiEvaluation(s.ctxAt(time.Now()), created.ID)
		s.Require().NoError(err)
		_, err = s.svc.SubmitBrokerDecision(s.brokerCtx(time.Now()), created.ID,
			DecisionInput{Decision: DecisionApproved})
		s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("cancel is allowed from any non-terminal state", func() {
		status := models.StatusCancelled
		sh, err := s.svc.Update(s.ctxAt(time.Now()), created.ID, UpdateFields{Status: &status})
		s.Require().NoError(err)
		s.Equal(models.StatusCancelled, sh.Status)

		next := models.StatusDraft
		_, err = s.svc.Update(s.ctxAt(time.Now()), created.ID, UpdateFields{Status: &next})
		s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

// TestUpdate verifies the whitelist update, CAS conflicts and updatedAt
// monotonicity.
func (s *ServiceSuite) TestUpdate() {
	t0 := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	created, err := s.svc.Create(s.ctxAt(t0), s.newDetail("8541.10"))
	s.Require().NoError(err)

	s.Run("mutation refreshes updatedAt and bumps the version", func() {
		carrier := "FedEx"
		updated, err := s.svc.Update(s.ctxAt(t0.Add(time.Minute)), created.ID,
			UpdateFields{Carrier: &carrier, ExpectedVersion: 1})
		s.Require().NoError(err)
		s.Equal("FedEx", updated.Carrier)
		s.Equal(int64(2), updated.RowVersion)
		s.True(updated.UpdatedAt.After(updated.CreatedAt))
		s.Equal(t0.Add(time.Minute), updated.UpdatedAt)
	})

	s.Run("stale version surfaces CodeConflict", func() {
		name := "renamed"
		_, err := s.svc.Update(s.ctxAt(t0.Add(2*time.Minute)), created.ID,
			UpdateFields{Name: &name, ExpectedVersion: 1})
		s.Require().True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown shipment surfaces CodeNotFound", func() {
		name := "ghost"
		_, err := s.svc.Update(s.ctxAt(time.Now()), id.ShipmentID(uuid.New()),
			UpdateFields{Name: &name})
		s.Require().True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// TestPayments verifies quoting and the pending-to-paid flow.
func (s *ServiceSuite) TestPayments() {
	t0 := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	created, err := s.svc.Create(s.ctxAt(t0), s.newDetail("8541.10"))
	s.Require().NoError(err)

	quote, err := s.svc.QuotePrice(context.Background(), created.ID)
	s.Require().NoError(err)
	// 5000 value: base 250, standard service 250, DE clearance 20+40
	s.Equal(250.0, quote.BasePrice)
	s.Equal(60.0, quote.CustomsClearance)
	s.Equal(560.0, quote.Subtotal)
	s.Equal(660.80, quote.Total)

	payment, err := s.svc.CreatePayment(s.ctxAt(t0.Add(time.Minute)), created.ID)
	s.Require().NoError(err)
	s.Equal(models.PaymentPending, payment.Status)
	s.Equal(quote.Total, payment.Amount)

	paid, err := s.svc.MarkPaymentPaid(s.ctxAt(t0.Add(2*time.Minute)), created.ID, payment.ID)
	s.Require().NoError(err)
	s.Equal(models.PaymentPaid, paid.Status)
	s.Require().NotNil(paid.PaidAt)
	s.Equal(t0.Add(2*time.Minute), *paid.PaidAt)

	s.Run("settling twice fails", func() {
		_, err := s.svc.MarkPaymentPaid(s.ctxAt(t0.Add(3*time.Minute)), created.ID, payment.ID)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}
