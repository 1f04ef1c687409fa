// Package metrics exposes Prometheus instruments for the sync core.
//
// Usage:
//
//	metrics.RecordCycle("ok", time.Since(start))
//	metrics.RecordAction("add", "success")
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncCyclesTotal counts reconciliation cycles by outcome
	// (ok, skipped, ping_failed, fetch_failed, stale_server, stopped, error).
	SyncCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animesync_sync_cycles_total",
			Help: "Total number of reconciliation cycles by outcome",
		},
		[]string{"outcome"},
	)

	SyncCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "animesync_sync_cycle_duration_seconds",
			Help:    "Duration of reconciliation cycles in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// ActionsReplayedTotal counts outbox actions sent to the server by kind and result
	// (success, already_exists, rejected, transport_error).
	ActionsReplayedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animesync_actions_replayed_total",
			Help: "Total number of pending actions replayed against the server",
		},
		[]string{"kind", "result"},
	)

	OutboxPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "animesync_outbox_pending",
			Help: "Number of actions waiting in the outbox",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "animesync_cache_entries",
			Help: "Number of anime keys in the local cache",
		},
	)

	RemoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animesync_remote_requests_total",
			Help: "Total number of requests to the companion server by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "animesync_circuit_breaker_state",
			Help: "Circuit breaker state per server (0=closed, 1=half-open, 2=open)",
		},
		[]string{"server"},
	)

	EventsPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "animesync_events_published_total",
			Help: "Total number of cacheUpdated events published",
		},
	)

	// EventsDroppedTotal counts deliveries skipped because a subscriber was not keeping up.
	EventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "animesync_events_dropped_total",
			Help: "Total number of event deliveries dropped for slow subscribers",
		},
	)

	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "animesync_event_subscribers",
			Help: "Number of connected event subscribers",
		},
	)
)

func RecordCycle(outcome string, d time.Duration) {
	SyncCyclesTotal.WithLabelValues(outcome).Inc()
	SyncCycleDuration.Observe(d.Seconds())
}

func RecordAction(kind, result string) {
	ActionsReplayedTotal.WithLabelValues(kind, result).Inc()
}

func RecordRemoteRequest(endpoint, status string) {
	RemoteRequestsTotal.WithLabelValues(endpoint, status).Inc()
}
