// Package handler exposes the unauthenticated login endpoint.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"preclear/internal/auth/service"
	platformMetrics "preclear/internal/platform/metrics"
	"preclear/internal/platform/middleware"
	"preclear/internal/transport/http/shared"
	id "preclear/pkg/domain"
)

// Service defines the interface for login.
type Service interface {
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
}

type Handler struct {
	logger  *slog.Logger
	auth    Service
	metrics *platformMetrics.Metrics
}

func New(auth Service, logger *slog.Logger, metrics *platformMetrics.Metrics) *Handler {
	return &Handler{logger: logger, auth: auth, metrics: metrics}
}

// Register mounts the auth routes. No RequireAuth here: login is how a
// caller gets a token in the first place.
func (h *Handler) Register(r chi.Router) {
	authRouter := chi.NewRouter()
	authRouter.Use(middleware.Recovery(h.logger))
	authRouter.Use(middleware.RequestID)
	authRouter.Use(middleware.Metadata)
	authRouter.Use(middleware.Logger(h.logger))
	authRouter.Use(middleware.Timeout(10 * time.Second))
	authRouter.Use(middleware.ContentTypeJSON)
	authRouter.Use(middleware.Latency(h.metrics))

	authRouter.Post("/login", h.handleLogin)

	r.Mount("/auth", authRouter)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresIn   int64     `json:"expiresIn"`
	UserID      id.UserID `json:"userId"`
	Role        string    `json:"role"`
	FullName    string    `json:"fullName"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	result, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "login failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken: result.AccessToken,
		TokenType:   result.TokenType,
		ExpiresIn:   int64(result.ExpiresIn.Seconds()),
		UserID:      result.User.ID,
		Role:        result.User.Role.String(),
		FullName:    result.User.FullName,
	})
}
