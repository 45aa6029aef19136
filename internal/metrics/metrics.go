package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Evaluation metrics
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geowarden_evaluations_total",
			Help: "Location claims evaluated, by outcome (clean, detected, error)",
		},
		[]string{"outcome"},
	)

	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geowarden_evaluation_duration_seconds",
			Help:    "Time spent evaluating a location claim including intelligence lookup",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	SuspicionScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geowarden_suspicion_score",
			Help:    "Distribution of clamped suspicion scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	DetectionFlags = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geowarden_detection_flags_total",
			Help: "Signals raised during evaluation, by flag",
		},
		[]string{"flag"},
	)

	// IP intelligence metrics
	IntelLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geowarden_intel_lookups_total",
			Help: "IP intelligence lookups, by source and result (hit, unknown, error)",
		},
		[]string{"source", "result"},
	)

	IntelCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geowarden_intel_cache_hits_total",
			Help: "IP intelligence cache hits, by tier (memory, database)",
		},
		[]string{"tier"},
	)

	IntelCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geowarden_intel_cache_misses_total",
			Help: "IP intelligence cache misses",
		},
	)

	VPNListEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geowarden_vpn_list_entries",
			Help: "Addresses and prefixes loaded from the VPN list file",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geowarden_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geowarden_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geowarden_circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker, by result (success, failure, rejected)",
		},
		[]string{"name", "result"},
	)

	// Moderation metrics
	ReviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geowarden_reviews_total",
			Help: "Moderator reviews, by action and result (applied, noop, invalid, conflict)",
		},
		[]string{"action", "result"},
	)

	ReviewRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geowarden_review_retries_total",
			Help: "Review transactions retried after a concurrent update",
		},
	)

	ThrottlesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geowarden_throttles_created_total",
			Help: "Throttles created, by severity",
		},
		[]string{"severity"},
	)

	ThrottlesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geowarden_throttles_removed_total",
			Help: "Throttles removed by moderators",
		},
	)

	// API metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geowarden_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
