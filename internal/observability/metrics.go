package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics groups the prometheus collectors used by the helpdesk. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	gatewayOps      *prometheus.CounterVec
	sideEffectFails *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	changeSignals   *prometheus.CounterVec
	outboxDrained   *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpErrors      *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		gatewayOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_gateway_operations_total",
			Help: "Persistence gateway operations by outcome",
		}, []string{"op", "outcome"}),
		sideEffectFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_side_effect_failures_total",
			Help: "Audit log and notification writes that failed",
		}, []string{"kind"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_refresh_total",
			Help: "Repository refreshes by outcome",
		}, []string{"repository", "outcome"}),
		changeSignals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_change_signals_total",
			Help: "Change feed signals received",
		}, []string{"table"}),
		outboxDrained: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_outbox_drained_total",
			Help: "Outbox entries processed by outcome",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_http_requests_total",
			Help: "HTTP requests by method and status",
		}, []string{"method", "status"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_http_errors_total",
			Help: "HTTP error responses by method and error code",
		}, []string{"method", "code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "helpdesk_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.gatewayOps,
			m.sideEffectFails,
			m.refreshes,
			m.changeSignals,
			m.outboxDrained,
			m.httpRequests,
			m.httpErrors,
			m.httpLatency,
		)
	}
	return m
}

// RecordGatewayOp counts a gateway call.
func (m *Metrics) RecordGatewayOp(op string, err error) {
	if m == nil {
		return
	}
	m.gatewayOps.WithLabelValues(op, outcome(err)).Inc()
}

// RecordSideEffectFailure counts a swallowed audit or notification failure.
func (m *Metrics) RecordSideEffectFailure(kind string) {
	if m == nil {
		return
	}
	m.sideEffectFails.WithLabelValues(kind).Inc()
}

// RecordRefresh counts a repository refresh.
func (m *Metrics) RecordRefresh(repository string, err error) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(repository, outcome(err)).Inc()
}

// RecordChangeSignal counts a received change signal.
func (m *Metrics) RecordChangeSignal(table string) {
	if m == nil {
		return
	}
	m.changeSignals.WithLabelValues(table).Inc()
}

// RecordOutboxDrained counts a processed outbox entry.
func (m *Metrics) RecordOutboxDrained(err error) {
	if m == nil {
		return
	}
	m.outboxDrained.WithLabelValues(outcome(err)).Inc()
}

// RecordRequest records an HTTP request.
func (m *Metrics) RecordRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordError counts an error response by its error code.
func (m *Metrics) RecordError(method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(method, code).Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}
