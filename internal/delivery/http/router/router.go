package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/user/webmonitor/internal/auth"
	"github.com/user/webmonitor/internal/delivery/http/handler"
	"github.com/user/webmonitor/internal/delivery/http/middleware"
	"github.com/user/webmonitor/pkg/metrics"
)

type Options struct {
	Verifier *auth.Verifier
	Metrics  *metrics.Metrics
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

func New(h *handler.Handler, opts Options) http.Handler {
	m := opts.Metrics
	if m == nil {
		m = metrics.NewNop()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	verifier := opts.Verifier
	if verifier == nil {
		verifier = auth.NewVerifier("")
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics(m))
	r.Use(chimw.Recoverer)

	r.Get("/api/health", h.HandleHealthCheck)
	r.Get("/tracker.js", h.HandleTrackerScript)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/collect", func(r chi.Router) {
		r.Use(middleware.CORS)
		r.Post("/", h.HandleCollect)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(verifier))
			r.Get("/", h.HandleListSites)
			r.Get("/sites/{monitoringCode}", h.HandleSiteDetail)
		})
	})

	return r
}
