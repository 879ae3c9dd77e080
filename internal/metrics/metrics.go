package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shortlink_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Redirects is labelled by result: "found", "not_found", "gone", "error".
	Redirects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_redirects_total",
			Help: "Total number of short code resolutions by result",
		},
		[]string{"result"},
	)

	// Allocations is labelled by outcome: "generated", "alias", "conflict", "exhausted", "error".
	Allocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_allocations_total",
			Help: "Total number of short code allocations by outcome",
		},
		[]string{"outcome"},
	)

	AllocationAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shortlink_allocation_attempts",
			Help:    "Number of generation attempts needed per allocated short code",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 13},
		},
	)

	// ClicksEnqueued is labelled by path: "stream", "buffer", "dropped".
	ClicksEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_clicks_enqueued_total",
			Help: "Total number of click events handed to the recorder by path",
		},
		[]string{"path"},
	)

	// ClicksPersisted is labelled by result: "stored", "duplicate", "orphaned", "error".
	ClicksPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_clicks_persisted_total",
			Help: "Total number of click events written by the recorder by result",
		},
		[]string{"result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shortlink_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)
