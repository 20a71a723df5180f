// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CardCacheLookups counts card profile reads by result (hit, miss, error).
	CardCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "friendcards_card_cache_lookups_total",
		Help: "Card profile cache lookups by result",
	}, []string{"result"})

	// CardRecomputeDuration tracks how long a card recomputation takes.
	CardRecomputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "friendcards_card_recompute_duration_seconds",
		Help:    "Card profile recomputation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	// CardInvalidationFailures counts swallowed cache invalidation errors.
	CardInvalidationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "friendcards_card_invalidation_failures_total",
		Help: "Card cache invalidations that failed and were skipped",
	})

	// RelationshipTransitions counts committed state machine transitions.
	RelationshipTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "friendcards_relationship_transitions_total",
		Help: "Relationship state machine transitions by kind",
	}, []string{"transition"})

	// RelationshipRejections counts operations refused by a state machine rule.
	RelationshipRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "friendcards_relationship_rejections_total",
		Help: "Relationship operations rejected by rule",
	}, []string{"operation", "reason"})

	// HTTPRequests counts served requests by method and status class (2xx, 4xx, ...).
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "friendcards_http_requests_total",
		Help: "HTTP requests by method and status class",
	}, []string{"method", "class"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "friendcards_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
