// Package metrics defines the Prometheus collectors shared by the cine-match
// binaries.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Polling
	PollAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_poll_attempts_total",
			Help: "Poll attempts against the preference API",
		},
		[]string{"result"}, // served, no_answers, no_recommendations, already_served, error
	)

	RecommendationsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_recommendations_served_total",
			Help: "Recommendation records posted back to the preference API",
		},
		[]string{"strategy"},
	)

	RankDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinematch_rank_duration_seconds",
			Help:    "Time spent ranking the catalog for one preference record",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// Outbound API
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_api_requests_total",
			Help: "Requests sent to the preference API",
		},
		[]string{"endpoint", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Preference server
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_http_requests_total",
			Help: "Requests handled by the preference server",
		},
		[]string{"route", "method", "status"},
	)

	KeywordExtractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_keyword_extractions_total",
			Help: "Keyword extractions by source",
		},
		[]string{"source"}, // llm, local
	)

	// Training
	TrainingEpochs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cinematch_training_epochs_total",
			Help: "Training epochs completed",
		},
	)
)

// ObserveRank records the duration of a ranking call started at start.
func ObserveRank(strategy string, start time.Time) {
	RankDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
