// Package httptransport assembles the HTTP surface: CORS, health and metrics
// endpoints, and the bounded-context route groups. Each context handler owns
// its own middleware chain; the router only decides where things mount.
package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"preclear/internal/transport/http/shared"
)

// Registrar is implemented by every bounded-context HTTP handler.
type Registrar interface {
	Register(r chi.Router)
}

// RouterConfig carries the router's own dependencies. Context handlers are
// passed separately so the router stays ignorant of their construction.
type RouterConfig struct {
	AllowedOrigins []string
	Gatherer       prometheus.Gatherer

	// Health reports readiness of the backing stores. nil means always ready.
	Health func(ctx context.Context) error
}

// NewRouter mounts public registrars at the root and the rest under /api.
func NewRouter(cfg RouterConfig, public []Registrar, api []Registrar) *chi.Mux {
	r := chi.NewRouter()

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Location"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", healthHandler(cfg.Health))
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	for _, reg := range public {
		reg.Register(r)
	}
	r.Route("/api", func(r chi.Router) {
		for _, reg := range api {
			reg.Register(r)
		}
	})
	return r
}

func healthHandler(health func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				shared.WriteJSON(w, http.StatusServiceUnavailable,
					map[string]string{"status": "unavailable", "reason": err.Error()})
				return
			}
		}
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
