// Package metrics provides Prometheus metrics for the skate game service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns the service's Prometheus collectors. A nil *Manager is a no-op.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	turns          *prometheus.CounterVec
	gamesCompleted *prometheus.CounterVec
	votes          *prometheus.CounterVec
	resolutions    *prometheus.CounterVec
	txRetries      *prometheus.CounterVec
	cooldownBlocks prometheus.Counter
	pendingQueue   prometheus.Gauge

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace sets the metric namespace.
func WithNamespace(namespace string) Option {
	return func(m *Manager) { m.namespace = namespace }
}

// WithRegistry registers collectors on the given registry instead of a fresh one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) { m.registry = registry }
}

// NewManager creates a manager on a dedicated registry, keeping default Go
// runtime metrics out of /metrics.
func NewManager(opts ...Option) *Manager {
	m := &Manager{namespace: "skate"}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.turns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "game",
		Name:      "turns_total",
		Help:      "Committed turn actions by kind",
	}, []string{"action"})

	m.gamesCompleted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "game",
		Name:      "completed_total",
		Help:      "Completed games by how they ended",
	}, []string{"reason"})

	m.votes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "judging",
		Name:      "votes_total",
		Help:      "Accepted judge votes by verdict",
	}, []string{"vote"})

	m.resolutions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "judging",
		Name:      "resolutions_total",
		Help:      "Resolved submissions by outcome",
	}, []string{"outcome"})

	m.txRetries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "tx_retries_total",
		Help:      "Optimistic transaction retries by operation",
	}, []string{"op"})

	m.cooldownBlocks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "judging",
		Name:      "cooldown_rejections_total",
		Help:      "Submissions rejected because the user was on cooldown",
	})

	m.pendingQueue = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "judging",
		Name:      "pending_queue_size",
		Help:      "Submissions waiting for judges at the last queue read",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Manager) RecordTurn(action string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(action).Inc()
}

func (m *Manager) RecordGameCompleted(reason string) {
	if m == nil {
		return
	}
	m.gamesCompleted.WithLabelValues(reason).Inc()
}

func (m *Manager) RecordVote(vote string) {
	if m == nil {
		return
	}
	m.votes.WithLabelValues(vote).Inc()
}

func (m *Manager) RecordResolution(outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
}

func (m *Manager) RecordTxRetry(op string) {
	if m == nil {
		return
	}
	m.txRetries.WithLabelValues(op).Inc()
}

func (m *Manager) RecordCooldownRejection() {
	if m == nil {
		return
	}
	m.cooldownBlocks.Inc()
}

func (m *Manager) SetPendingQueueSize(n int64) {
	if m == nil {
		return
	}
	m.pendingQueue.Set(float64(n))
}

// RecordHTTPRequest records one served request.
func (m *Manager) RecordHTTPRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
