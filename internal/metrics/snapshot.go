package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/algochat/algochat/pkg/models"
)

// opAccumulator mirrors one operation's count/error/latency bookkeeping
// alongside the Prometheus series above, so a models.MetricsSnapshot can be
// read without scraping the Prometheus registry.
type opAccumulator struct {
	count      int
	errors     int
	totalNanos int64
	maxNanos   int64
	lastNanos  int64
}

type operationStats struct {
	mu   sync.Mutex
	byOp map[string]*opAccumulator
}

var ops = &operationStats{byOp: make(map[string]*opAccumulator)}

var pskReplaysRejectedTotal int64

// RecordOperation records one Chat facade operation's outcome and duration,
// feeding both the Prometheus series (OperationsTotal/OperationDuration) and
// the in-memory accumulator Snapshot reads from.
func RecordOperation(operation string, err error, dur time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	OperationDuration.WithLabelValues(operation).Observe(dur.Seconds())

	ops.mu.Lock()
	defer ops.mu.Unlock()
	acc, ok := ops.byOp[operation]
	if !ok {
		acc = &opAccumulator{}
		ops.byOp[operation] = acc
	}
	acc.count++
	if err != nil {
		acc.errors++
	}
	nanos := dur.Nanoseconds()
	acc.totalNanos += nanos
	acc.lastNanos = nanos
	if nanos > acc.maxNanos {
		acc.maxNanos = nanos
	}
}

// RecordPSKReplayRejected increments the PSK-replay-rejection counter
// alongside the PSKReplaysRejected Prometheus series, for Snapshot callers
// that don't scrape /metrics.
func RecordPSKReplayRejected(reason string) {
	PSKReplaysRejected.WithLabelValues(reason).Inc()
	atomic.AddInt64(&pskReplaysRejectedTotal, 1)
}

// Snapshot builds a point-in-time models.MetricsSnapshot from the in-memory
// accumulators. pendingQueueSize and conversationCount are supplied by the
// caller (Chat owns that state; this package only owns operation/replay
// counters).
func Snapshot(pendingQueueSize, conversationCount int) models.MetricsSnapshot {
	ops.mu.Lock()
	defer ops.mu.Unlock()

	stats := make(map[string]models.OperationMetric, len(ops.byOp))
	for name, acc := range ops.byOp {
		var avg int64
		if acc.count > 0 {
			avg = acc.totalNanos / int64(acc.count) / int64(time.Millisecond)
		}
		stats[name] = models.OperationMetric{
			Count:         acc.count,
			Errors:        acc.errors,
			AvgLatencyMs:  avg,
			MaxLatencyMs:  acc.maxNanos / int64(time.Millisecond),
			LastLatencyMs: acc.lastNanos / int64(time.Millisecond),
		}
	}

	return models.MetricsSnapshot{
		PendingQueueSize:   pendingQueueSize,
		ConversationCount:  conversationCount,
		PSKReplaysRejected: int(atomic.LoadInt64(&pskReplaysRejectedTotal)),
		OperationStats:     stats,
		LastUpdatedAt:      time.Now(),
	}
}
