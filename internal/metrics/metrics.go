// Package metrics exposes Prometheus collectors for harvest runs.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	sourceTasksTotal           *prometheus.CounterVec
	candidatesTotal            *prometheus.CounterVec
	relevantEvents             prometheus.Gauge
	newEventsTotal             prometheus.Counter
	runDurationSeconds         prometheus.Histogram
	persistenceErrorsTotal     *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		sourceTasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventwatch_source_tasks_total",
				Help: "Source tasks finished, labeled by source and terminal state.",
			},
			[]string{"source", "state"},
		)

		candidatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventwatch_candidates_total",
				Help: "Candidates extracted, labeled by source.",
			},
			[]string{"source"},
		)

		relevantEvents = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "eventwatch_relevant_events",
				Help: "Relevant events found by the latest run.",
			},
		)

		newEventsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "eventwatch_new_events_total",
				Help: "Events notified for the first time.",
			},
		)

		runDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "eventwatch_run_duration_seconds",
				Help:    "Histogram of full run durations.",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
		)

		persistenceErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventwatch_persistence_errors_total",
				Help: "Failed loads and saves, labeled by store.",
			},
			[]string{"store"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "eventwatch_active_workers",
				Help: "Number of source tasks currently running.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSourceTask records a finished source task and its candidate count.
func ObserveSourceTask(source, state string, candidates int) {
	Init()
	sourceTasksTotal.WithLabelValues(source, state).Inc()
	if candidates > 0 {
		candidatesTotal.WithLabelValues(source).Add(float64(candidates))
	}
}

// ObserveRun records the outcome of a full run.
func ObserveRun(relevant, fresh int, duration time.Duration) {
	Init()
	relevantEvents.Set(float64(relevant))
	newEventsTotal.Add(float64(fresh))
	runDurationSeconds.Observe(duration.Seconds())
}

// ObservePersistenceError increments the error counter for store.
func ObservePersistenceError(store string) {
	Init()
	persistenceErrorsTotal.WithLabelValues(store).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
