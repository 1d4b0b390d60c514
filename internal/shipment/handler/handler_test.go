package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"preclear/internal/compliance"
	"preclear/internal/platform/logger"
	platformMetrics "preclear/internal/platform/metrics"
	"preclear/internal/platform/middleware"
	"preclear/internal/platform/objectstore"
	shipmentMetrics "preclear/internal/shipment/metrics"
	"preclear/internal/shipment/service"
	shipmentstore "preclear/internal/shipment/store/shipment"
	tokenstore "preclear/internal/shipment/store/token"
	id "preclear/pkg/domain"
	"preclear/pkg/platform/audit"
	auditmem "preclear/pkg/platform/audit/store/memory"
	"preclear/pkg/platform/tx"
)

// stubValidator resolves fixed bearer tokens to identities.
type stubValidator struct {
	claims map[string]*middleware.JWTClaims
}

func (v stubValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	claims, ok := v.claims[token]
	if !ok {
		return nil, fmt.Errorf("unknown token")
	}
	return claims, nil
}

const (
	shipperToken = "shipper-token"
	brokerToken  = "broker-token"
)

// HandlerSuite drives the full router with a real service over in-memory
// stores, so routing, auth and status codes are all exercised together.
type HandlerSuite struct {
	suite.Suite
	router chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	svc := service.New(
		shipmentstore.NewInMemory(),
		tokenstore.NewInMemory(),
		objectstore.NewMemory(),
		service.EvaluatorFunc(compliance.Evaluate),
		nil,
		audit.NewPublisher(auditmem.New(), logger.NewNop()),
		tx.NoopRunner{},
		shipmentMetrics.New(prometheus.NewRegistry()),
		logger.NewNop(),
		nil,
		service.Config{AiScoreCutoff: 90, PreclearTokenTTL: time.Hour},
	)

	validator := stubValidator{claims: map[string]*middleware.JWTClaims{
		shipperToken: {UserID: id.NewUserID(), Role: id.RoleShipper},
		brokerToken:  {UserID: id.NewUserID(), Role: id.RoleBroker},
	}}

	h := New(svc, logger.NewNop(), platformMetrics.New(prometheus.NewRegistry()), validator)
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) do(token, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var resp map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (s *HandlerSuite) createBody(hsCode string) map[string]any {
	return map[string]any{
		"name":         "Diode batch",
		"mode":         "Air",
		"shipmentType": "International",
		"carrier":      "DHL",
		"parties": []map[string]any{
			{"partyType": "shipper", "contactName": "Acme Exports", "countryCode": "US"},
			{"partyType": "consignee", "contactName": "Empfanger GmbH", "countryCode": "DE"},
		},
		"items": []map[string]any{{
			"description": "Solar diodes",
			"hsCode":      hsCode,
			"quantity":    10,
			"unitPrice":   500,
		}},
		"service": map[string]any{
			"serviceLevel": "Standard",
			"currency":     "USD",
		},
	}
}

func (s *HandlerSuite) createShipment(hsCode string) string {
	w := s.do(shipperToken, http.MethodPost, "/shipments/", s.createBody(hsCode))
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	return s.decode(w)["id"].(string)
}

// TestAuthRequired verifies the whole surface sits behind bearer auth.
func (s *HandlerSuite) TestAuthRequired() {
	s.Run("missing token", func() {
		w := s.do("", http.MethodGet, "/shipments/", nil)
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("unknown token", func() {
		w := s.do("bogus", http.MethodGet, "/shipments/", nil)
		s.Equal(http.StatusUnauthorized, w.Code)
	})
}

// TestCreateAndGet covers creation, the Location header and the read side.
func (s *HandlerSuite) TestCreateAndGet() {
	w := s.do(shipperToken, http.MethodPost, "/shipments/", s.createBody("8541.10"))
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	created := s.decode(w)
	s.Equal("draft", created["status"])
	s.Regexp(`^REF-[0-9A-F]{12}$`, created["referenceId"])
	s.Empty(created["preclearToken"], "token must never appear on the shipment body")
	s.Equal("/api/shipments/"+created["id"].(string), w.Header().Get("Location"))

	s.Run("get returns the aggregate", func() {
		w := s.do(shipperToken, http.MethodGet, "/shipments/"+created["id"].(string), nil)
		s.Require().Equal(http.StatusOK, w.Code)
		got := s.decode(w)
		s.Equal(created["id"], got["id"])
		s.Len(got["parties"], 2)
		s.Len(got["items"], 1)
	})

	s.Run("unknown id is 404", func() {
		w := s.do(shipperToken, http.MethodGet, "/shipments/"+id.NewShipmentID().String(), nil)
		s.Equal(http.StatusNotFound, w.Code)
	})

	s.Run("malformed id is 400", func() {
		w := s.do(shipperToken, http.MethodGet, "/shipments/not-a-uuid", nil)
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

// TestValidation covers body-level rejections.
func (s *HandlerSuite) TestValidation() {
	s.Run("missing items", func() {
		body := s.createBody("8541.10")
		delete(body, "items")
		w := s.do(shipperToken, http.MethodPost, "/shipments/", body)
		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("items", s.decode(w)["field"])
	})

	s.Run("unknown json field", func() {
		w := s.do(shipperToken, http.MethodPost, "/shipments/", map[string]any{"nam": "typo"})
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("bad decision verb", func() {
		sid := s.createShipment("8541.10")
		w := s.do(brokerToken, http.MethodPost, "/shipments/"+sid+"/decision",
			map[string]any{"decision": "Maybe"})
		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("decision", s.decode(w)["field"])
	})
}

// TestPreclearFlow walks evaluate, review, broker decision and booking
// through the HTTP surface.
func (s *HandlerSuite) TestPreclearFlow() {
	sid := s.createShipment("8541.10")

	w := s.do(shipperToken, http.MethodPost, "/shipments/"+sid+"/evaluate", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	evaluated := s.decode(w)
	s.Equal("pre_cleared", evaluated["status"])
	verdict := evaluated["compliance"].(map[string]any)
	s.Equal("Cleared", verdict["aiStatus"])
	s.Equal(float64(100), verdict["aiScore"])

	w = s.do(shipperToken, http.MethodPost, "/shipments/"+sid+"/review", nil)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.Equal("Pending", s.decode(w)["status"])

	s.Run("decision is broker-only", func() {
		w := s.do(shipperToken, http.MethodPost, "/shipments/"+sid+"/decision",
			map[string]any{"decision": "Approved"})
		s.Equal(http.StatusForbidden, w.Code)
	})

	w = s.do(brokerToken, http.MethodPost, "/shipments/"+sid+"/decision",
		map[string]any{"decision": "Approved", "comments": "documents in order"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	decision := s.decode(w)
	token := decision["preclearToken"].(string)
	s.NotEmpty(token)
	s.Equal("token_generated", decision["shipment"].(map[string]any)["status"])

	s.Run("wrong token is forbidden", func() {
		w := s.do(shipperToken, http.MethodPost, "/shipments/"+sid+"/book",
			map[string]any{"preclearToken": "deadbeef"})
		s.Equal(http.StatusForbidden, w.Code)
	})

	w = s.do(shipperToken, http.MethodPost, "/shipments/"+sid+"/book",
		map[string]any{"preclearToken": token})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("booked", s.decode(w)["status"])
}

// TestUpdateAndDelete covers the whitelisted update, the version check and
// deletion semantics.
func (s *HandlerSuite) TestUpdateAndDelete() {
	sid := s.createShipment("8541.10")

	w := s.do(shipperToken, http.MethodPut, "/shipments/"+sid,
		map[string]any{"carrier": "FedEx", "rowVersion": 1})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	updated := s.decode(w)
	s.Equal("FedEx", updated["carrier"])
	s.Equal(float64(2), updated["rowVersion"])

	s.Run("stale version conflicts", func() {
		w := s.do(shipperToken, http.MethodPut, "/shipments/"+sid,
			map[string]any{"carrier": "UPS", "rowVersion": 1})
		s.Equal(http.StatusConflict, w.Code)
	})

	s.Run("delete then get", func() {
		w := s.do(shipperToken, http.MethodDelete, "/shipments/"+sid, nil)
		s.Equal(http.StatusNoContent, w.Code)

		w = s.do(shipperToken, http.MethodGet, "/shipments/"+sid, nil)
		s.Equal(http.StatusNotFound, w.Code)
	})
}

// TestDocuments uploads a multipart document and downloads it back.
func (s *HandlerSuite) TestDocuments() {
	sid := s.createShipment("8507.60")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	s.Require().NoError(mw.WriteField("documentType", "SDS"))
	part, err := mw.CreateFormFile("file", "sds.pdf")
	s.Require().NoError(err)
	_, err = part.Write([]byte("%PDF-1.4 safety data sheet"))
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/shipments/"+sid+"/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+shipperToken)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	uploaded := s.decode(w)
	s.Equal("SDS", uploaded["documentType"])
	s.Equal(float64(1), uploaded["version"])

	s.Run("download round trip", func() {
		w := s.do(shipperToken, http.MethodGet,
			"/shipments/"+sid+"/documents/"+uploaded["id"].(string), nil)
		s.Require().Equal(http.StatusOK, w.Code)
		s.Equal("%PDF-1.4 safety data sheet", w.Body.String())
		s.Contains(w.Header().Get("Content-Disposition"), "sds.pdf")
	})
}

// TestTrackingAndMessages covers the append-only side channels.
func (s *HandlerSuite) TestTrackingAndMessages() {
	sid := s.createShipment("8541.10")

	w := s.do(shipperToken, http.MethodPost, "/shipments/"+sid+"/tracking",
		map[string]any{"status": "picked_up", "location": "SFO"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	s.Run("bad timestamp rejected", func() {
		w := s.do(shipperToken, http.MethodPost, "/shipments/"+sid+"/tracking",
			map[string]any{"status": "in_transit", "occurredAt": "yesterday"})
		s.Equal(http.StatusBadRequest, w.Code)
	})

	w = s.do(shipperToken, http.MethodGet, "/shipments/"+sid+"/tracking", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var events []map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &events))
	s.Require().Len(events, 1)
	s.Equal("SFO", events[0]["location"])

	w = s.do(brokerToken, http.MethodPost, "/shipments/"+sid+"/messages",
		map[string]any{"body": "please confirm the HS code"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.Equal("broker", s.decode(w)["senderRole"])

	w = s.do(shipperToken, http.MethodGet, "/shipments/"+sid+"/messages", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var messages []map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &messages))
	s.Require().Len(messages, 1)
}

// TestQuoteAndPayments covers pricing and settlement over HTTP.
func (s *HandlerSuite) TestQuoteAndPayments() {
	sid := s.createShipment("8541.10")

	w := s.do(shipperToken, http.MethodGet, "/shipments/"+sid+"/quote", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	quote := s.decode(w)
	s.Equal(float64(250), quote["basePrice"])
	s.Equal("USD", quote["currency"])

	w = s.do(shipperToken, http.MethodPost, "/shipments/"+sid+"/payments", nil)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	payment := s.decode(w)
	s.Equal("pending", payment["status"])

	w = s.do(shipperToken, http.MethodPost,
		"/shipments/"+sid+"/payments/"+payment["id"].(string)+"/pay", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	paid := s.decode(w)
	s.Equal("paid", paid["status"])
	s.NotEmpty(paid["paidAt"])

	w = s.do(shipperToken, http.MethodGet, "/shipments/"+sid+"/payments", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var payments []map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &payments))
	s.Require().Len(payments, 1)
}
