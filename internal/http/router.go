// Package httpapi assembles the service's chi router.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"compliance/internal/platform/metrics"
	"compliance/internal/platform/middleware"
	"compliance/pkg/platform/httputil"
	"compliance/pkg/platform/middleware/metadata"
	"compliance/pkg/platform/middleware/request"
	"compliance/pkg/platform/middleware/requesttime"
	"compliance/pkg/platform/middleware/tracing"
)

const requestTimeout = 30 * time.Second

// Registrar is implemented by feature handlers.
type Registrar interface {
	Register(r chi.Router)
}

// ReadRegistrar is implemented by handlers that also expose unthrottled reads.
type ReadRegistrar interface {
	RegisterReads(r chi.Router)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps is everything the router needs.
type Deps struct {
	Logger             *slog.Logger
	Metrics            *metrics.Metrics
	Gatherer           prometheus.Gatherer
	Handlers           []Registrar
	HealthChecks       map[string]HealthCheck
	RateLimitPerMinute int
}

// NewRouter wires middleware, feature routes, health and metrics.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(tracing.Middleware)
	r.Use(request.Recovery(d.Logger))
	r.Use(request.Logger(d.Logger))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	if d.Metrics != nil {
		r.Use(middleware.LatencyMiddleware(d.Metrics))
	}

	r.Get("/healthz", healthHandler(d.HealthChecks))
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(requestTimeout))
		r.Use(request.ContentTypeJSON)

		// Intake is throttled per client; reads are not.
		r.Group(func(r chi.Router) {
			if d.RateLimitPerMinute > 0 {
				r.Use(httprate.Limit(
					d.RateLimitPerMinute,
					time.Minute,
					httprate.WithKeyFuncs(httprate.KeyByRealIP),
					httprate.WithLimitHandler(rateLimitExceeded),
				))
			}
			for _, h := range d.Handlers {
				h.Register(r)
			}
		})
		for _, h := range d.Handlers {
			if rr, ok := h.(ReadRegistrar); ok {
				rr.RegisterReads(r)
			}
		}
	})

	return r
}

func rateLimitExceeded(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]string{
		"error":             "rate_limited",
		"error_description": "too many requests, retry later",
	})
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		failing := map[string]string{}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				failing[name] = err.Error()
			}
		}
		if len(failing) > 0 {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "degraded",
				"checks": failing,
			})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
