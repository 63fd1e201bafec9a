package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecorder_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.Empty(t, mfs, "no samples recorded yet")

	r.OrdersRouted.WithLabelValues("saxoeu", "success").Inc()
	r.OrderLatency.WithLabelValues("saxoeu").Observe(0.25)
	r.RateLimitRejected.WithLabelValues("saxoeu", "orders").Inc()
	r.ActiveSubscriptions.WithLabelValues("saxoeu").Set(3)

	mfs, err = reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["gateway_orders_routed_total"])
	assert.True(t, names["gateway_order_latency_seconds"])
	assert.True(t, names["gateway_rate_limit_rejected_total"])
	assert.True(t, names["gateway_active_subscriptions"])
}

func TestRecorder_OrdersRouted_CountsByBrokerAndStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.OrdersRouted.WithLabelValues("saxoeu", "success").Inc()
	r.OrdersRouted.WithLabelValues("saxoeu", "success").Inc()
	r.OrdersRouted.WithLabelValues("saxoeu", "failed").Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(r.OrdersRouted.WithLabelValues("saxoeu", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.OrdersRouted.WithLabelValues("saxoeu", "failed")))
}
