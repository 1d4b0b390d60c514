// Package handler exposes the user account CRUD endpoints. Password hashes
// never appear in any response shape.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	platformMetrics "preclear/internal/platform/metrics"
	"preclear/internal/platform/middleware"
	"preclear/internal/transport/http/shared"
	"preclear/internal/user/models"
	"preclear/internal/user/service"
	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
	"preclear/pkg/requestcontext"
)

// Service defines the interface for user account operations.
type Service interface {
	Create(ctx context.Context, input service.CreateInput) (*models.User, error)
	Get(ctx context.Context, userID id.UserID) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, userID id.UserID, fields service.UpdateFields) (*models.User, error)
	Delete(ctx context.Context, userID id.UserID) error
}

type Handler struct {
	logger       *slog.Logger
	users        Service
	metrics      *platformMetrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(users Service, logger *slog.Logger, metrics *platformMetrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{logger: logger, users: users, metrics: metrics, jwtValidator: jwtValidator}
}

// Register mounts the user routes. Listing, creating and deleting accounts is
// admin work; reading and updating is allowed for the account owner too.
func (h *Handler) Register(r chi.Router) {
	userRouter := chi.NewRouter()
	userRouter.Use(middleware.Recovery(h.logger))
	userRouter.Use(middleware.RequestID)
	userRouter.Use(middleware.Metadata)
	userRouter.Use(middleware.Logger(h.logger))
	userRouter.Use(middleware.Timeout(15 * time.Second))
	userRouter.Use(middleware.ContentTypeJSON)
	userRouter.Use(middleware.Latency(h.metrics))
	userRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	adminOnly := middleware.RequireRole(h.logger, id.RoleAdmin)
	userRouter.With(adminOnly).Post("/", h.handleCreate)
	userRouter.With(adminOnly).Get("/", h.handleList)
	userRouter.With(adminOnly).Delete("/{userID}", h.handleDelete)
	userRouter.Get("/{userID}", h.handleGet)
	userRouter.Put("/{userID}", h.handleUpdate)

	r.Mount("/users", userRouter)
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	uid, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, dErrors.NewField(dErrors.CodeInvalidInput, "userId", "invalid user id"))
		return id.UserID{}, false
	}
	return uid, true
}

// selfOrAdmin guards the per-account routes: admins see everyone, everyone
// else only themselves.
func selfOrAdmin(ctx context.Context, subject id.UserID) bool {
	if requestcontext.Role(ctx) == id.RoleAdmin {
		return true
	}
	return requestcontext.UserID(ctx) == subject
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createUserRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	created, err := h.users.Create(ctx, input)
	if err != nil {
		h.logger.WarnContext(ctx, "create user failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	w.Header().Set("Location", "/api/users/"+created.ID.String())
	shared.WriteJSON(w, http.StatusCreated, fromUser(*created))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, fromUser(u))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	if !selfOrAdmin(r.Context(), uid) {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "cannot read another user's account"))
		return
	}
	u, err := h.users.Get(r.Context(), uid)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, fromUser(*u))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	if !selfOrAdmin(ctx, uid) {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "cannot update another user's account"))
		return
	}

	var req updateUserRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	fields, err := req.toFields()
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	// role and active are admin levers, not self-service ones
	if requestcontext.Role(ctx) != id.RoleAdmin && (fields.Role != nil || fields.Active != nil) {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "only admins can change role or active state"))
		return
	}

	updated, err := h.users.Update(ctx, uid, fields)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, fromUser(*updated))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.users.Delete(r.Context(), uid); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
