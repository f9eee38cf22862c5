package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetrics(reg, "test")

	m.Transition("CONFIRMED")
	m.Transition("CONFIRMED")
	m.Reconciled("applied")
	m.OrderCreated()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("CONFIRMED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconciliations.WithLabelValues("applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersCreated))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestOrderMetrics_NilIsNoop(t *testing.T) {
	var m *OrderMetrics

	assert.NotPanics(t, func() {
		m.Transition("READY")
		m.Reconciled("applied")
		m.OrderCreated()
		m.OrderRejected("insufficient_stock")
		m.ObserveHTTP("GET", "/health", "200", 0.01)
	})
}
