package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/journals"
	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/reports"
	"github.com/ak-rocksdev/hyperbiz-core/internal/aging"
	"github.com/ak-rocksdev/hyperbiz-core/internal/banking"
	"github.com/ak-rocksdev/hyperbiz-core/internal/observability"
	"github.com/ak-rocksdev/hyperbiz-core/jobs"
)

// RouterParams carries everything the HTTP surface mounts.
type RouterParams struct {
	Logger   *slog.Logger
	Config   *Config
	Metrics  *observability.Metrics
	Journals *journals.Handler
	Reports  *reports.Handler
	Aging    *aging.Handler
	Banking  *banking.Handler
	Jobs     *jobs.Handler
}

// NewRouter assembles the chi router with the full middleware stack and the
// accounting API mounted under /api/v1.
func NewRouter(p RouterParams) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: p.Logger, Config: p.Config, Metrics: p.Metrics}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		if p.Journals != nil {
			api.Route("/journal-entries", p.Journals.MountRoutes)
		}
		if p.Reports != nil {
			api.Route("/reports", p.Reports.MountRoutes)
		}
		if p.Aging != nil {
			api.Route("/aging", p.Aging.MountRoutes)
		}
		if p.Banking != nil {
			api.Route("/banking", p.Banking.MountRoutes)
		}
		if p.Jobs != nil {
			api.Route("/jobs", p.Jobs.MountRoutes)
		}
	})
	return r
}
