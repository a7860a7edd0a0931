// Package httptransport assembles the public HTTP surface. Handlers stay in
// their subsystem packages; this router only mounts them and the operational
// endpoints.
package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"credence/internal/platform/metrics"
	"credence/pkg/platform/httputil"
)

// Registrar is any subsystem handler that can mount itself on the router.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports readiness of one backing dependency.
type HealthCheck func(ctx context.Context) error

// NewRouter wires the API, health and metrics endpoints.
func NewRouter(httpMetrics *metrics.HTTP, checks map[string]HealthCheck, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if httpMetrics != nil {
		r.Use(httpMetrics.Middleware)
	}

	for _, h := range handlers {
		h.Register(r)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(checks))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// readiness runs every registered dependency check and reports per-check
// state. Any failing check turns the endpoint 503 so orchestrators hold
// traffic.
func readiness(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}
		httputil.WriteJSON(w, status, results)
	}
}
