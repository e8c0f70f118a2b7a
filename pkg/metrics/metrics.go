// Package metrics exposes Prometheus metrics for mcpbridge.
//
// # Overview
//
// The package provides:
//   - Pre-defined metrics for connector calls, outbound HTTP and the Redis transport
//   - Timing and percentile helpers
//   - An HTTP handler serving the default registry
//
// # Basic Usage
//
//	timer := metrics.NewTimer("weather.query")
//	conn.ProcessRequest(ctx, req)
//	metrics.ObserveConnectorCall("weather", "rest", "query", metrics.OutcomeSuccess, timer.Stop())
//
// Metrics are registered with the default Prometheus registry on package
// initialization, so the package must only be imported once per binary.
package metrics

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels
const (
	OutcomeSuccess     = "success"
	OutcomeError       = "error"
	OutcomeConfigError = "config_error"
)

// UnregisteredIntent replaces the intent label of calls that failed with a
// configuration error, so callers cannot mint new series.
const UnregisteredIntent = "unregistered"

var (
	// ConnectorRequests counts processed request envelopes.
	// Labels: connector, api_type, intent, outcome (success/error/config_error)
	//
	// Example:
	//	metrics.ConnectorRequests.WithLabelValues("weather", "rest", "query", "success").Inc()
	ConnectorRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpbridge_connector_requests_total",
			Help: "Total number of request envelopes processed by connectors",
		},
		[]string{"connector", "api_type", "intent", "outcome"},
	)

	// ConnectorLatency tracks end-to-end ProcessRequest latency in seconds.
	ConnectorLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "mcpbridge_connector_latency_seconds",
			Help: "Connector request latency in seconds",
			Buckets: []float64{
				0.005, // 5ms - local backends
				0.025,
				0.1, // 100ms - typical public APIs
				0.25,
				0.5,
				1,
				2.5,
				5,
				10,
				30, // default connector timeout
			},
		},
		[]string{"connector", "api_type", "intent"},
	)

	// InFlightRequests tracks calls currently waiting on a backend
	InFlightRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mcpbridge_inflight_requests",
			Help: "Number of backend calls in flight",
		},
		[]string{"connector"},
	)

	// HTTPRequests counts outbound HTTP calls.
	// Labels: method, host, status (status class such as 2xx, or "error")
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpbridge_http_requests_total",
			Help: "Total number of outbound HTTP requests",
		},
		[]string{"method", "host", "status"},
	)

	// HTTPLatency tracks outbound HTTP latency in seconds
	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcpbridge_http_request_duration_seconds",
			Help:    "Outbound HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "host"},
	)

	// RoutedMessages counts envelopes delivered by the router.
	// Labels: destination, result
	RoutedMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpbridge_routed_messages_total",
			Help: "Total number of envelopes routed",
		},
		[]string{"destination", "result"},
	)

	// TransportMessages counts envelopes moved over the Redis transport.
	// Labels: queue, direction (received/replied/sent), status
	TransportMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpbridge_transport_messages_total",
			Help: "Total number of envelopes handled by the Redis transport",
		},
		[]string{"queue", "direction", "status"},
	)
)

// ObserveConnectorCall records one processed request.
func ObserveConnectorCall(connector, apiType, intent, outcome string, d time.Duration) {
	ConnectorRequests.WithLabelValues(connector, apiType, intent, outcome).Inc()
	ConnectorLatency.WithLabelValues(connector, apiType, intent).Observe(d.Seconds())
}

// ObserveHTTP records one outbound HTTP call. A status of 0 means the call
// failed before a response arrived.
func ObserveHTTP(method, host string, status int, d time.Duration) {
	HTTPRequests.WithLabelValues(method, host, StatusClass(status)).Inc()
	HTTPLatency.WithLabelValues(method, host).Observe(d.Seconds())
}

// StatusClass buckets an HTTP status code into 1xx..5xx, or "error" for 0.
func StatusClass(status int) string {
	switch {
	case status <= 0:
		return "error"
	case status < 200:
		return "1xx"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer name
func (t *Timer) Name() string { return t.name }

// Stop returns the elapsed duration since creation. It may be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// LatencyTracker keeps a sliding window of latencies for percentile queries.
// Safe for concurrent use.
type LatencyTracker struct {
	mu      sync.Mutex
	values  []time.Duration
	maxSize int
}

// NewLatencyTracker creates a tracker keeping at most maxSize samples
func NewLatencyTracker(maxSize int) *LatencyTracker {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &LatencyTracker{
		values:  make([]time.Duration, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record records a latency value
func (l *LatencyTracker) Record(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.values) >= l.maxSize {
		// drop oldest
		copy(l.values, l.values[1:])
		l.values = l.values[:len(l.values)-1]
	}
	l.values = append(l.values, d)
}

// Count returns the number of samples held
func (l *LatencyTracker) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.values)
}

// Average returns the mean of the held samples
func (l *LatencyTracker) Average() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.values) == 0 {
		return 0
	}
	var total time.Duration
	for _, v := range l.values {
		total += v
	}
	return total / time.Duration(len(l.values))
}

// GetPercentile returns the percentile value (0-100) of the held samples
func (l *LatencyTracker) GetPercentile(p float64) time.Duration {
	l.mu.Lock()
	sorted := make([]time.Duration, len(l.values))
	copy(sorted, l.values)
	l.mu.Unlock()

	if len(sorted) == 0 {
		return 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	index := int(float64(len(sorted)) * p / 100)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
