package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP Metrics
var (
	// HTTPRequestsTotal tracks requests by route, method and status class
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	// HTTPRequestDuration tracks request latency in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// RateLimitedTotal tracks requests rejected by the per-IP limiter
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Total requests rejected by the rate limiter",
		},
	)
)

// Job Metrics
var (
	// JobsSubmittedTotal tracks accepted submissions
	JobsSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "generation_jobs_submitted_total",
			Help: "Total generation jobs accepted",
		},
	)

	// JobsFinishedTotal tracks finished jobs by terminal status
	JobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_jobs_finished_total",
			Help: "Total generation jobs finished by status",
		},
		[]string{"status"},
	)

	// JobTriggersTotal tracks trigger attempts by outcome (dispatched, debounced, dropped, claimed_elsewhere)
	JobTriggersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_job_triggers_total",
			Help: "Generation job trigger attempts by outcome",
		},
		[]string{"outcome"},
	)

	// JobProcessingDuration tracks the time from claim to terminal state
	JobProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "generation_job_processing_seconds",
			Help:    "Time from claim to terminal state in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		},
	)

	// InlineWorkersActive tracks in-process generation goroutines
	InlineWorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "generation_inline_workers_active",
			Help: "Generation runs currently executing in-process",
		},
	)

	// SweeperActionsTotal tracks sweeper interventions by action
	SweeperActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_sweeper_actions_total",
			Help: "Stale job interventions by action (redispatched, timed_out)",
		},
		[]string{"action"},
	)
)

// AI Provider Metrics
var (
	// AIRequestsTotal tracks model calls by outcome
	AIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total multimodal model calls by outcome",
		},
		[]string{"outcome"},
	)

	// AIRequestDuration tracks model call latency in seconds
	AIRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "Multimodal model call duration in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 40, 80, 120},
		},
	)

	// CircuitBreakerState tracks current breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Storage Metrics
var (
	// StorageOpsTotal tracks object store operations by backend, operation and status
	StorageOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Object storage operations by backend, operation and status",
		},
		[]string{"backend", "operation", "status"},
	)
)

// ObserveHTTP records one finished request. Status is reported by class ("2xx", "4xx").
func ObserveHTTP(route, method string, status int, d time.Duration) {
	class := strconv.Itoa(status/100) + "xx"
	HTTPRequestsTotal.WithLabelValues(route, method, class).Inc()
	HTTPRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}
