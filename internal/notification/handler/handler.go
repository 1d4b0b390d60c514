// Package handler exposes the notification inbox. Every route is scoped to
// the authenticated user; there is no cross-user access, not even for admins.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"preclear/internal/notification/models"
	"preclear/internal/notification/service"
	platformMetrics "preclear/internal/platform/metrics"
	"preclear/internal/platform/middleware"
	"preclear/internal/transport/http/shared"
	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
)

type Handler struct {
	logger        *slog.Logger
	notifications *service.Service
	metrics       *platformMetrics.Metrics
	jwtValidator  middleware.JWTValidator
}

func New(notifications *service.Service, logger *slog.Logger, metrics *platformMetrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{logger: logger, notifications: notifications, metrics: metrics, jwtValidator: jwtValidator}
}

// Register mounts the notification routes.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Metadata)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(15 * time.Second))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.Latency(h.metrics))
	router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	router.Get("/", h.handleList)
	router.Post("/{notificationID}/read", h.handleMarkRead)
	router.Post("/read-all", h.handleMarkAllRead)

	r.Mount("/notifications", router)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	unreadOnly := r.URL.Query().Get("unread") == "true"
	list, err := h.notifications.List(r.Context(), unreadOnly)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]notificationResponse, 0, len(list))
	for _, n := range list {
		out = append(out, fromNotification(n))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	notificationID, err := id.ParseNotificationID(chi.URLParam(r, "notificationID"))
	if err != nil {
		shared.WriteError(w, dErrors.NewField(dErrors.CodeInvalidInput, "notificationId", "invalid notification id"))
		return
	}
	if err := h.notifications.MarkRead(r.Context(), notificationID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	changed, err := h.notifications.MarkAllRead(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]int{"marked": changed})
}

type notificationResponse struct {
	ID        id.NotificationID `json:"id"`
	Title     string            `json:"title"`
	Body      string            `json:"body,omitempty"`
	Entity    string            `json:"entity,omitempty"`
	EntityID  string            `json:"entityId,omitempty"`
	Read      bool              `json:"read"`
	CreatedAt time.Time         `json:"createdAt"`
	ReadAt    *time.Time        `json:"readAt,omitempty"`
}

func fromNotification(n models.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		Title:     n.Title,
		Body:      n.Body,
		Entity:    n.Entity,
		EntityID:  n.EntityID,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
		ReadAt:    n.ReadAt,
	}
}
