// Package observability exposes Prometheus metrics for orchestrator runs
// and a small HTTP server serving /metrics and health endpoints.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Run metrics
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentrix_runs_total",
			Help: "Total number of orchestrator runs",
		},
		[]string{"strategy", "status"},
	)

	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentrix_run_duration_seconds",
			Help:    "Run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// Worker metrics
	workerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentrix_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"role", "position"},
	)

	workerFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentrix_worker_failures_total",
			Help: "Total number of failed worker invocations",
		},
		[]string{"role", "position"},
	)

	// Fallback metrics
	fallbackAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentrix_fallback_attempts_total",
			Help: "Total number of fallback worker invocations",
		},
		[]string{"status"},
	)

	// System metrics
	activeWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentrix_active_workers",
			Help: "Number of workers currently executing",
		},
	)

	initOnce sync.Once
)

// InitMetrics registers the Prometheus metrics. Safe to call repeatedly.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			runsTotal,
			runDuration,
			workerDuration,
			workerFailuresTotal,
			fallbackAttemptsTotal,
			activeWorkers,
		)
	})
}

// MetricsHandler returns the HTTP handler for the /metrics endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordRun records one orchestrator run.
func RecordRun(strategy, status string, duration time.Duration) {
	runsTotal.WithLabelValues(strategy, status).Inc()
	runDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordWorker records one worker invocation.
func RecordWorker(role, position string, duration time.Duration, successful bool) {
	workerDuration.WithLabelValues(role, position).Observe(duration.Seconds())
	if !successful {
		workerFailuresTotal.WithLabelValues(role, position).Inc()
	}
}

// RecordFallbackAttempt records one fallback worker invocation.
func RecordFallbackAttempt(successful bool) {
	status := "success"
	if !successful {
		status = "failure"
	}
	fallbackAttemptsTotal.WithLabelValues(status).Inc()
}

// WorkerStarted and WorkerFinished track the in-flight worker gauge.
func WorkerStarted()  { activeWorkers.Inc() }
func WorkerFinished() { activeWorkers.Dec() }
