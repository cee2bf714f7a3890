package observability

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StateMetrics tracks the node's state-transition operations.
type StateMetrics struct {
	operations  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	journalHead prometheus.Gauge
}

// RPCMetrics tracks the JSON-RPC surface.
type RPCMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
	wsClients prometheus.Gauge
}

var (
	stateMetricsOnce sync.Once
	stateRegistry    *StateMetrics

	rpcMetricsOnce sync.Once
	rpcRegistry    *RPCMetrics
)

// State returns the lazily-initialised registry for state operations.
func State() *StateMetrics {
	stateMetricsOnce.Do(func() {
		stateRegistry = &StateMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "zenbeasts",
				Subsystem: "state",
				Name:      "operations_total",
				Help:      "Total state-transition operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "zenbeasts",
				Subsystem: "state",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for state-transition operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			journalHead: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "zenbeasts",
				Subsystem: "journal",
				Name:      "head_sequence",
				Help:      "Sequence number of the newest journal entry.",
			}),
		}
		prometheus.MustRegister(
			stateRegistry.operations,
			stateRegistry.latency,
			stateRegistry.journalHead,
		)
	})
	return stateRegistry
}

// Observe records one state operation's outcome and duration.
func (m *StateMetrics) Observe(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// SetJournalHead updates the journal head gauge after a successful append.
func (m *StateMetrics) SetJournalHead(sequence uint64) {
	if m == nil {
		return
	}
	m.journalHead.Set(float64(sequence))
}

// RPC returns the lazily-initialised registry for the JSON-RPC server.
func RPC() *RPCMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &RPCMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "zenbeasts",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "zenbeasts",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and error code.",
			}, []string{"method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "zenbeasts",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "zenbeasts",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by throttling policies.",
			}, []string{"reason"}),
			wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "zenbeasts",
				Subsystem: "rpc",
				Name:      "ws_clients",
				Help:      "Currently connected event-stream clients.",
			}),
		}
		prometheus.MustRegister(
			rpcRegistry.requests,
			rpcRegistry.errors,
			rpcRegistry.latency,
			rpcRegistry.throttles,
			rpcRegistry.wsClients,
		)
	})
	return rpcRegistry
}

// Observe records the outcome of one JSON-RPC call. A non-zero code is the
// HTTP status the client saw on failure.
func (m *RPCMetrics) Observe(method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if method = strings.TrimSpace(method); method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(method, strconv.Itoa(code)).Inc()
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit" so dashboards stay consistent.
func (m *RPCMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

// WSConnected and WSDisconnected move the connected-client gauge.
func (m *RPCMetrics) WSConnected() {
	if m == nil {
		return
	}
	m.wsClients.Inc()
}

func (m *RPCMetrics) WSDisconnected() {
	if m == nil {
		return
	}
	m.wsClients.Dec()
}
