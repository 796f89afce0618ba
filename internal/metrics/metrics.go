// Package metrics exposes AlgoChat's Prometheus collectors: counters for
// send/refresh/scan/fetch operations and PSK replay rejections, plus an
// HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "algochat"

// Registry is the collector registry every metric in this package registers
// against. A dedicated registry (rather than prometheus.DefaultRegisterer)
// keeps AlgoChat's metrics free of the process collectors Go programs
// usually register by default.
var Registry = prometheus.NewRegistry()

var (
	// OperationsTotal counts Chat facade operations by kind and outcome.
	OperationsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "operations_total",
			Help:      "Total number of chat operations",
		},
		[]string{"operation", "status"}, // conversation/refresh/conversations/send/publish_key, ok/error
	)

	// OperationDuration tracks how long each Chat facade operation takes.
	OperationDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "operation_duration_seconds",
			Help:      "Chat operation duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"operation"},
	)

	// PSKReplaysRejected counts PSK ratchet counters rejected as a replay or
	// out-of-window by internal/pskstate.
	PSKReplaysRejected = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "psk",
			Name:      "replays_rejected_total",
			Help:      "Total number of PSK ratchet counters rejected as replayed or out of window",
		},
		[]string{"reason"}, // replay, out_of_range
	)

	// PendingQueueSize reports the current size of the outgoing send queue.
	PendingQueueSize = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "pending_size",
			Help:      "Number of messages currently queued for sending",
		},
	)

	// IndexerPagesFetched counts pagination pages consumed by MessageIndexer.
	IndexerPagesFetched = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "pages_fetched_total",
			Help:      "Total number of indexer search pages fetched",
		},
		[]string{"operation"}, // scan_messages, fetch_public_key, conversations
	)
)

// Handler returns the HTTP handler serving this package's registry in
// Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// StartServer runs a standalone metrics HTTP server until ctx-independent
// shutdown (caller-managed, fire-and-forget metrics-server pattern).
func StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}
