package clients

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ajitpratap0/mcpbridge/pkg/metrics"
)

// HTTPMetrics tracks per-client request counts and latencies and mirrors
// every request into the process-wide Prometheus metrics.
type HTTPMetrics struct {
	totalRequests      int64
	successfulRequests int64
	failedRequests     int64
	connectionsReused  int64

	latency *metrics.LatencyTracker

	// Failure counts keyed by error category
	errorsByType map[string]int64
	mu           sync.RWMutex
}

// NewHTTPMetrics creates a tracker keeping the last 1000 latency samples
func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		latency:      metrics.NewLatencyTracker(1000),
		errorsByType: make(map[string]int64),
	}
}

// RecordRequest records one request. status is 0 when no response arrived;
// errKind names the failure category in that case.
func (hm *HTTPMetrics) RecordRequest(method, host string, status int, latency time.Duration, errKind string) {
	atomic.AddInt64(&hm.totalRequests, 1)
	if errKind != "" {
		atomic.AddInt64(&hm.failedRequests, 1)
		hm.mu.Lock()
		hm.errorsByType[errKind]++
		hm.mu.Unlock()
	} else {
		atomic.AddInt64(&hm.successfulRequests, 1)
	}

	hm.latency.Record(latency)
	metrics.ObserveHTTP(method, host, status, latency)
}

// RecordConnectionReuse tracks whether a connection was reused
func (hm *HTTPMetrics) RecordConnectionReuse(reused bool) {
	if reused {
		atomic.AddInt64(&hm.connectionsReused, 1)
	}
}

// ErrorsByType returns a copy of the failure counts
func (hm *HTTPMetrics) ErrorsByType() map[string]int64 {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	out := make(map[string]int64, len(hm.errorsByType))
	for k, v := range hm.errorsByType {
		out[k] = v
	}
	return out
}

// Snapshot returns the current statistics
func (hm *HTTPMetrics) Snapshot() HTTPStats {
	total := atomic.LoadInt64(&hm.totalRequests)
	failed := atomic.LoadInt64(&hm.failedRequests)

	stats := HTTPStats{
		TotalRequests:     total,
		FailedRequests:    failed,
		ConnectionsReused: atomic.LoadInt64(&hm.connectionsReused),
		AverageLatency:    hm.latency.Average(),
		P95Latency:        hm.latency.GetPercentile(95),
		P99Latency:        hm.latency.GetPercentile(99),
	}
	if total > 0 {
		stats.SuccessRate = float64(atomic.LoadInt64(&hm.successfulRequests)) / float64(total) * 100
	}
	return stats
}

// HTTPStats represents HTTP client statistics
type HTTPStats struct {
	TotalRequests     int64         `json:"total_requests"`
	FailedRequests    int64         `json:"failed_requests"`
	ConnectionsReused int64         `json:"connections_reused"`
	SuccessRate       float64       `json:"success_rate"`
	AverageLatency    time.Duration `json:"average_latency"`
	P95Latency        time.Duration `json:"p95_latency"`
	P99Latency        time.Duration `json:"p99_latency"`
}
