// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

// Package metrics exposes Prometheus instrumentation for the store, the
// REST API, the presence relay, and the client pipeline's circuit breaker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Store metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	VersionConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "card_version_conflicts_total",
			Help: "Total number of card updates rejected for a stale version",
		},
	)

	SweeperOrphansRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweeper_orphans_removed_total",
			Help: "Total number of orphaned rows removed by the cleanup pass",
		},
		[]string{"table"},
	)

	SweeperRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweeper_runs_total",
			Help: "Total number of orphan cleanup passes",
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Relay metrics
	RelayConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	RelayGroups = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_board_groups",
			Help: "Current number of board groups with at least one member",
		},
	)

	RelayMessagesDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_delivered_total",
			Help: "Total number of messages fanned out to group members",
		},
		[]string{"type"},
	)

	RelayMessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_dropped_total",
			Help: "Total number of messages dropped (slow consumer or closed peer)",
		},
		[]string{"reason"},
	)

	RelayMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_received_total",
			Help: "Total number of messages received from clients",
		},
	)

	// Client pipeline metrics
	PipelineMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_mutations_total",
			Help: "Total number of client mutations by terminal state",
		},
		[]string{"state"}, // confirmed, conflict, fallback
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	LocalCacheWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "local_cache_writes_total",
			Help: "Total number of board snapshots written to the local cache",
		},
	)

	LocalCacheReplays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "local_cache_replays_total",
			Help: "Total number of cached mutations replayed after reconnect",
		},
		[]string{"result"}, // "success", "conflict", "failure"
	)
)

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordBreakerState maps a gobreaker state name onto the numeric gauge.
func RecordBreakerState(name, state string) {
	var v float64
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	CircuitBreakerState.WithLabelValues(name).Set(v)
}
