// Package metrics provides Prometheus metrics for cache statistics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cachestats"

var (
	// HTTPRequestsTotal counts total requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures request latency in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path"},
	)

	// StreamClients tracks connected statistics stream subscribers.
	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Current number of statistics stream subscribers.",
		},
	)

	// CacheEvents counts cache events as they are delivered.
	CacheEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_events_total",
			Help:      "Cache events delivered to listeners.",
		},
		[]string{"cache", "event"}, // event: hit, stale_hit, miss, added, removed, updated
	)

	// CacheFlushes counts flush notifications by kind.
	CacheFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_flushes_total",
			Help:      "Cache flush notifications.",
		},
		[]string{"cache", "kind", "origin"}, // origin: "primary" or "nested"
	)

	// SnapshotsSaved counts snapshot persistence attempts.
	SnapshotsSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_saved_total",
			Help:      "Statistics snapshots written to the store.",
		},
		[]string{"result"}, // "ok" or "error"
	)
)
