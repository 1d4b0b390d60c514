// Package handler exposes rule management and the change request workflow.
// Brokers read rules and propose changes; publishing and deciding is admin
// work.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	platformMetrics "preclear/internal/platform/metrics"
	"preclear/internal/platform/middleware"
	"preclear/internal/rules/models"
	"preclear/internal/rules/service"
	"preclear/internal/transport/http/shared"
	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
)

// Service defines the interface for rule operations.
type Service interface {
	CreateRule(ctx context.Context, input service.RuleInput) (*models.Rule, error)
	GetRule(ctx context.Context, ruleID id.RuleID) (*models.Rule, error)
	ListRules(ctx context.Context) ([]models.Rule, error)
	DeactivateRule(ctx context.Context, ruleID id.RuleID) (*models.Rule, error)

	Propose(ctx context.Context, input service.ProposeInput) (*models.ChangeRequest, error)
	GetChangeRequest(ctx context.Context, requestID id.ChangeRequestID) (*models.ChangeRequest, error)
	ListChangeRequests(ctx context.Context, status models.ChangeRequestStatus) ([]models.ChangeRequest, error)
	Decide(ctx context.Context, requestID id.ChangeRequestID, verdict models.ChangeRequestStatus, comments string) (*models.ChangeRequest, error)
}

type Handler struct {
	logger       *slog.Logger
	rules        Service
	metrics      *platformMetrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(rules Service, logger *slog.Logger, metrics *platformMetrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{logger: logger, rules: rules, metrics: metrics, jwtValidator: jwtValidator}
}

// Register mounts the rules routes.
func (h *Handler) Register(r chi.Router) {
	rulesRouter := chi.NewRouter()
	rulesRouter.Use(middleware.Recovery(h.logger))
	rulesRouter.Use(middleware.RequestID)
	rulesRouter.Use(middleware.Metadata)
	rulesRouter.Use(middleware.Logger(h.logger))
	rulesRouter.Use(middleware.Timeout(15 * time.Second))
	rulesRouter.Use(middleware.ContentTypeJSON)
	rulesRouter.Use(middleware.Latency(h.metrics))
	rulesRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	adminOnly := middleware.RequireRole(h.logger, id.RoleAdmin)
	brokerOrAdmin := middleware.RequireRole(h.logger, id.RoleBroker, id.RoleAdmin)

	rulesRouter.With(brokerOrAdmin).Get("/", h.handleList)
	rulesRouter.With(brokerOrAdmin).Get("/{ruleID}", h.handleGet)
	rulesRouter.With(adminOnly).Post("/", h.handleCreate)
	rulesRouter.With(adminOnly).Delete("/{ruleID}", h.handleDeactivate)

	rulesRouter.With(brokerOrAdmin).Post("/change-requests", h.handlePropose)
	rulesRouter.With(brokerOrAdmin).Get("/change-requests", h.handleListRequests)
	rulesRouter.With(brokerOrAdmin).Get("/change-requests/{requestID}", h.handleGetRequest)
	rulesRouter.With(adminOnly).Post("/change-requests/{requestID}/decision", h.handleDecide)

	r.Mount("/rules", rulesRouter)
}

func (h *Handler) ruleID(w http.ResponseWriter, r *http.Request) (id.RuleID, bool) {
	rid, err := id.ParseRuleID(chi.URLParam(r, "ruleID"))
	if err != nil {
		shared.WriteError(w, dErrors.NewField(dErrors.CodeInvalidInput, "ruleId", "invalid rule id"))
		return id.RuleID{}, false
	}
	return rid, true
}

func (h *Handler) requestID(w http.ResponseWriter, r *http.Request) (id.ChangeRequestID, bool) {
	rid, err := id.ParseChangeRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, dErrors.NewField(dErrors.CodeInvalidInput, "requestId", "invalid change request id"))
		return id.ChangeRequestID{}, false
	}
	return rid, true
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	created, err := h.rules.CreateRule(r.Context(), input)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	w.Header().Set("Location", "/api/rules/"+created.ID.String())
	shared.WriteJSON(w, http.StatusCreated, fromRule(*created))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.ListRules(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, fromRule(rule))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	rid, ok := h.ruleID(w, r)
	if !ok {
		return
	}
	rule, err := h.rules.GetRule(r.Context(), rid)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, fromRule(*rule))
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	rid, ok := h.ruleID(w, r)
	if !ok {
		return
	}
	if _, err := h.rules.DeactivateRule(r.Context(), rid); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePropose(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	created, err := h.rules.Propose(r.Context(), req.toInput())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	w.Header().Set("Location", "/api/rules/change-requests/"+created.ID.String())
	shared.WriteJSON(w, http.StatusCreated, fromChangeRequest(*created))
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	var status models.ChangeRequestStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := models.ParseChangeRequestStatus(raw)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		status = parsed
	}
	requests, err := h.rules.ListChangeRequests(r.Context(), status)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]changeRequestResponse, 0, len(requests))
	for _, c := range requests {
		out = append(out, fromChangeRequest(c))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	rid, ok := h.requestID(w, r)
	if !ok {
		return
	}
	c, err := h.rules.GetChangeRequest(r.Context(), rid)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, fromChangeRequest(*c))
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	rid, ok := h.requestID(w, r)
	if !ok {
		return
	}
	var req decideRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	verdict, err := models.ParseChangeRequestStatus(req.Status)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	decided, err := h.rules.Decide(r.Context(), rid, verdict, req.Comments)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, fromChangeRequest(*decided))
}
