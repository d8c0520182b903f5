package cart

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"RocketShoes/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string

	// CatalogURL, when set, is reverse-proxied under /products so the UI
	// can list products through the same origin.
	CatalogURL string
}

// NewHandler serves the cart API. Request spans parent the cart.* operation
// spans opened by the Store.
func NewHandler(s *Server, deps HTTPDeps) (http.Handler, error) {
	r := kit.NewRouter(kit.RouterDeps{
		Log:            deps.Log,
		Service:        deps.Service,
		Registry:       deps.Registry,
		MetricsEnabled: deps.MetricsEnabled,
		MetricsToken:   deps.MetricsToken,
		Middleware:     []func(http.Handler) http.Handler{kit.Tracing(deps.Service)},
	})

	if deps.CatalogURL != "" {
		proxy, err := kit.NewReverseProxy(deps.CatalogURL, deps.Log)
		if err != nil {
			return nil, err
		}
		r.Handle("/products", proxy)
		r.Handle("/products/*", proxy)
	}

	r.Mount("/", s.Routes())
	return r, nil
}
