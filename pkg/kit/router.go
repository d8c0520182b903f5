package kit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string

	// Middleware runs after the shared stack, before any route.
	Middleware []func(http.Handler) http.Handler
}

// NewRouter builds the mux every service starts from: request ids, panic
// recovery, request logging, request metrics and a token-guarded /metrics.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(Recoverer)
	r.Use(Logging(deps.Log))

	if deps.Registry != nil {
		r.Use(NewMetrics(deps.Registry).Middleware(deps.Service, ChiRoutePatternOrPath))
	}
	r.Use(deps.Middleware...)

	if deps.Registry != nil && deps.MetricsEnabled {
		r.With(MetricsAuth(deps.MetricsToken)).
			Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}
	return r
}
