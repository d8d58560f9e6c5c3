package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordGatewayOp("tickets.select", nil)
	m.RecordGatewayOp("tickets.select", errors.New("boom"))
	m.RecordGatewayOp("tickets.select", errors.New("boom"))
	m.RecordSideEffectFailure("notification")
	m.RecordRefresh("tickets", nil)
	m.RecordChangeSignal("tickets")
	m.RecordOutboxDrained(nil)
	m.RecordRequest("GET", 200, 15*time.Millisecond)
	m.RecordError("POST", "VALIDATION_FAILED")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.gatewayOps.WithLabelValues("tickets.select", OutcomeOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.gatewayOps.WithLabelValues("tickets.select", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sideEffectFails.WithLabelValues("notification")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("tickets", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.changeSignals.WithLabelValues("tickets")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboxDrained.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpErrors.WithLabelValues("POST", "VALIDATION_FAILED")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordGatewayOp("x", nil)
		m.RecordSideEffectFailure("audit_log")
		m.RecordRefresh("tickets", errors.New("x"))
		m.RecordChangeSignal("tickets")
		m.RecordOutboxDrained(nil)
		m.RecordRequest("GET", 500, time.Second)
		m.RecordError("GET", "INTERNAL_ERROR")
	})
}
