package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	BeaconsReceived    *prometheus.CounterVec // result: stored, suppressed, invalid, failed
	EventsStored       *prometheus.CounterVec // kind: performance, error, console, image, resource
	EventsDeduplicated *prometheus.CounterVec
	SitesCreated       prometheus.Counter

	ProbeRuns     *prometheus.CounterVec // status: success, failure
	ProbeDuration *prometheus.HistogramVec
}

// New registers the metrics with reg. Pass prometheus.DefaultRegisterer to
// expose them on the default /metrics handler, or a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		BeaconsReceived: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacons_received_total",
				Help: "Total number of beacons received, by outcome.",
			},
			[]string{"result"},
		),
		EventsStored: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "events_stored_total",
				Help: "Total number of metric rows stored.",
			},
			[]string{"kind"},
		),
		EventsDeduplicated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "events_deduplicated_total",
				Help: "Total number of incoming records skipped as duplicates.",
			},
			[]string{"kind"},
		),
		SitesCreated: f.NewCounter(
			prometheus.CounterOpts{
				Name: "sites_created_total",
				Help: "Total number of sites auto-created by ingestion.",
			},
		),
		ProbeRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "probe_runs_total",
				Help: "Total number of synthetic probe runs.",
			},
			[]string{"status"},
		),
		ProbeDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "probe_duration_seconds",
				Help:    "Duration of synthetic probe runs.",
				Buckets: []float64{1, 5, 10, 15, 30, 60, 120},
			},
			[]string{"domain"},
		),
	}
}

// NewNop returns metrics bound to a private registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
