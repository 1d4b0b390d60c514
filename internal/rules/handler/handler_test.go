package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"preclear/internal/platform/logger"
	platformMetrics "preclear/internal/platform/metrics"
	"preclear/internal/platform/middleware"
	"preclear/internal/rules/service"
	rulestore "preclear/internal/rules/store/rule"
	id "preclear/pkg/domain"
	"preclear/pkg/platform/audit"
	auditmem "preclear/pkg/platform/audit/store/memory"
	"preclear/pkg/platform/tx"
	"preclear/pkg/testutil"
)

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
	adminToken   = "admin-token"
	brokerToken  = "broker-token"
	shipperToken = "shipper-token"
)

type HandlerSuite struct {
	suite.Suite
	router chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	svc := service.New(
		rulestore.NewInMemory(),
		audit.NewPublisher(auditmem.New(), logger.NewNop()),
		tx.NoopRunner{},
		logger.NewNop(),
	)

	validator := stubValidator{claims: map[string]*middleware.JWTClaims{
		adminToken:   {UserID: id.NewUserID(), Role: id.RoleAdmin},
		brokerToken:  {UserID: id.NewUserID(), Role: id.RoleBroker},
		shipperToken: {UserID: id.NewUserID(), Role: id.RoleShipper},
	}}

	h := New(svc, logger.NewNop(), platformMetrics.New(prometheus.NewRegistry()), validator)
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) do(token, method, path string, body any, wantStatus int) *map[string]any {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := testutil.DoRequest(s.router, req)
	s.Require().Equal(wantStatus, rr.Code, rr.Body.String())
	if rr.Body.Len() == 0 {
		return nil
	}
	return testutil.UnmarshalResponse[map[string]any](s.T(), rr)
}

func ruleBodyJSON() map[string]any {
	return map[string]any{
		"requiresDocument": "sds",
		"message":          "lithium batteries need a safety data sheet",
	}
}

func createRuleJSON(code string) map[string]any {
	return map[string]any{
		"code":     code,
		"hsPrefix": "8507",
		"body":     ruleBodyJSON(),
	}
}

func (s *HandlerSuite) TestCreateVersionsAndDeactivate() {
	v1 := s.do(adminToken, http.MethodPost, "/rules", createRuleJSON("LITHIUM"), http.StatusCreated)
	s.Equal(float64(1), (*v1)["version"])
	s.Equal(true, (*v1)["active"])

	v2 := s.do(adminToken, http.MethodPost, "/rules", createRuleJSON("LITHIUM"), http.StatusCreated)
	s.Equal(float64(2), (*v2)["version"])

	// publishing v2 retires v1
	old := s.do(brokerToken, http.MethodGet, "/rules/"+(*v1)["id"].(string), nil, http.StatusOK)
	s.Equal(false, (*old)["active"])

	s.do(adminToken, http.MethodDelete, "/rules/"+(*v2)["id"].(string), nil, http.StatusNoContent)
	gone := s.do(brokerToken, http.MethodGet, "/rules/"+(*v2)["id"].(string), nil, http.StatusOK)
	s.Equal(false, (*gone)["active"])
}

func (s *HandlerSuite) TestRoleEnforcement() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/rules", createRuleJSON("LITHIUM"))
	req.Header.Set("Authorization", "Bearer "+brokerToken)
	testutil.AssertErrorCode(s.T(), testutil.DoRequest(s.router, req), http.StatusForbidden, "forbidden")

	shipperReq := testutil.NewJSONRequest(s.T(), http.MethodGet, "/rules", nil)
	shipperReq.Header.Set("Authorization", "Bearer "+shipperToken)
	testutil.AssertErrorCode(s.T(), testutil.DoRequest(s.router, shipperReq), http.StatusForbidden, "forbidden")

	anon := testutil.NewJSONRequest(s.T(), http.MethodGet, "/rules", nil)
	testutil.AssertErrorCode(s.T(), testutil.DoRequest(s.router, anon), http.StatusUnauthorized, "unauthorized")
}

func (s *HandlerSuite) TestCreateWithoutBody() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/rules", map[string]any{"code": "LITHIUM"})
	req.Header.Set("Authorization", "Bearer "+adminToken)
	testutil.AssertErrorCode(s.T(), testutil.DoRequest(s.router, req), http.StatusBadRequest, "invalid_input")
}

func (s *HandlerSuite) TestChangeRequestApproval() {
	proposal := s.do(brokerToken, http.MethodPost, "/rules/change-requests", map[string]any{
		"ruleCode":      "EMBARGO-KP",
		"country":       "KP",
		"proposed":      map[string]any{"restricted": true, "message": "destination embargoed"},
		"justification": "sanctions update",
	}, http.StatusCreated)
	s.Equal("pending", (*proposal)["status"])

	requestID := (*proposal)["id"].(string)
	decided := s.do(adminToken, http.MethodPost, "/rules/change-requests/"+requestID+"/decision",
		map[string]any{"status": "approved", "comments": "confirmed against the sanctions list"}, http.StatusOK)
	s.Equal("approved", (*decided)["status"])
	s.NotNil((*decided)["decidedAt"])

	// approval published the proposal as the rule code's active version
	listReq := testutil.NewJSONRequest(s.T(), http.MethodGet, "/rules", nil)
	listReq.Header.Set("Authorization", "Bearer "+brokerToken)
	rr := testutil.DoRequest(s.router, listReq)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	rules := testutil.UnmarshalResponse[[]map[string]any](s.T(), rr)
	s.Require().Len(*rules, 1)
	s.Equal("EMBARGO-KP", (*rules)[0]["code"])
	s.Equal(true, (*rules)[0]["active"])
}

func (s *HandlerSuite) TestDecideTwice() {
	proposal := s.do(brokerToken, http.MethodPost, "/rules/change-requests", map[string]any{
		"ruleCode":      "PHARMA",
		"proposed":      map[string]any{"requiresDocument": "import_permit", "message": "permit required"},
		"justification": "regulator notice",
	}, http.StatusCreated)
	path := "/rules/change-requests/" + (*proposal)["id"].(string) + "/decision"

	s.do(adminToken, http.MethodPost, path, map[string]any{"status": "rejected"}, http.StatusOK)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]any{"status": "approved"})
	req.Header.Set("Authorization", "Bearer "+adminToken)
	testutil.AssertErrorCode(s.T(), testutil.DoRequest(s.router, req), http.StatusConflict, "invalid_transition")
}

func (s *HandlerSuite) TestStatusFilter() {
	s.do(brokerToken, http.MethodPost, "/rules/change-requests", map[string]any{
		"ruleCode":      "A",
		"proposed":      map[string]any{"requiresDocument": "sds", "message": "m"},
		"justification": "j",
	}, http.StatusCreated)

	req := testutil.NewJSONRequest(s.T(), http.MethodGet, "/rules/change-requests?status=bogus", nil)
	req.Header.Set("Authorization", "Bearer "+brokerToken)
	testutil.AssertErrorCode(s.T(), testutil.DoRequest(s.router, req), http.StatusBadRequest, "invalid_input")
}
