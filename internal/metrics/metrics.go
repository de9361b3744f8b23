// Package metrics exposes Prometheus counters for availability and bookings.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	slotQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agendei",
			Name:      "slot_queries_total",
			Help:      "Count of availability computations by business kind.",
		},
		[]string{"kind"},
	)

	slotQueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "agendei",
			Name:      "slot_query_duration_seconds",
			Help:      "Latency of availability computations including the bookings lookup.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	bookingCommits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agendei",
			Name:      "booking_commits_total",
			Help:      "Count of booking writes by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agendei",
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	configReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agendei",
			Name:      "businesses_reloads_total",
			Help:      "Count of businesses.yaml reload attempts by outcome.",
		},
		[]string{"outcome"},
	)

	sessionFailovers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agendei",
			Name:      "session_store_fallback_total",
			Help:      "Count of session operations served by the fallback store.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(slotQueries, slotQueryDuration, bookingCommits, httpRequests, configReloads, sessionFailovers)
	})
}

func ObserveSlotQuery(kind string, took time.Duration) {
	slotQueries.WithLabelValues(kind).Inc()
	slotQueryDuration.Observe(took.Seconds())
}

// IncBookingCommit counts a create, reschedule or delete with its outcome
// ("ok", "conflict", "error").
func IncBookingCommit(operation, outcome string) {
	bookingCommits.WithLabelValues(operation, outcome).Inc()
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncSessionFallback() {
	sessionFailovers.Inc()
}

// IncConfigReload counts a businesses.yaml reload ("ok", "unchanged", "error").
func IncConfigReload(outcome string) {
	configReloads.WithLabelValues(outcome).Inc()
}
