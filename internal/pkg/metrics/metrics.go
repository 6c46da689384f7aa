// Package metrics exposes the engine's Prometheus instruments.
package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rankrent_events_ingested_total",
		Help: "Tracking events accepted by the collector, by event type and outcome",
	}, []string{"event_type", "outcome"})

	EventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rankrent_events_rejected_total",
		Help: "Events skipped during session reconstruction, by reason",
	}, []string{"reason"})

	ConversionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rankrent_conversions_recorded_total",
		Help: "Conversions persisted, split by attribution mode (goal or fallback)",
	}, []string{"mode"})

	ProjectionCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rankrent_projection_cache_total",
		Help: "Session projection cache lookups by result",
	}, []string{"result"})

	AggregationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rankrent_aggregation_duration_seconds",
		Help:    "Wall time of engine operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

// Handler serves the default registry through fiber.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// ObserveRejections adds a reconstruction rejection tally.
func ObserveRejections(tally map[string]int) {
	for reason, n := range tally {
		EventsRejected.WithLabelValues(reason).Add(float64(n))
	}
}
