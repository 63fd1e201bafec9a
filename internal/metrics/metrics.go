// Package metrics exposes Prometheus instrumentation for the gateway,
// grounded on the CounterVec/Gauge/GaugeVec usage in the coinbase bot's
// metrics.go.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder groups the gateway's Prometheus collectors.
type Recorder struct {
	OrdersRouted       *prometheus.CounterVec
	OrderLatency       *prometheus.HistogramVec
	FanOutLatency      *prometheus.HistogramVec
	RateLimitWaitTime  *prometheus.HistogramVec
	RateLimitRejected  *prometheus.CounterVec
	ActiveSubscriptions *prometheus.GaugeVec
}

// NewRecorder registers the gateway's collectors against reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		OrdersRouted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "orders_routed_total",
			Help:      "Orders routed, by broker and outcome.",
		}, []string{"broker_id", "status"}),
		OrderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gateway",
			Name:      "order_latency_seconds",
			Help:      "Latency of PlaceOrder calls, by broker.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"broker_id"}),
		FanOutLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gateway",
			Name:      "fan_out_latency_seconds",
			Help:      "Latency of orchestrator fan-out calls, by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		RateLimitWaitTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gateway",
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent waiting on a rate-limit bucket, by broker and category.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"broker_id", "category"}),
		RateLimitRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "rate_limit_rejected_total",
			Help:      "Calls that failed with RateLimited, by broker and category.",
		}, []string{"broker_id", "category"}),
		ActiveSubscriptions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gateway",
			Name:      "active_subscriptions",
			Help:      "Currently ref-counted streaming subscriptions, by broker.",
		}, []string{"broker_id"}),
	}
}

// Every observer method below nil-checks its receiver so callers can hold
// a *Recorder that is nil when metrics are disabled (cfg.Metrics.Enabled
// == false) and record unconditionally rather than branching at every
// call site.

// ObserveOrderRouted counts one routed order outcome for a broker.
func (r *Recorder) ObserveOrderRouted(brokerID, status string) {
	if r == nil {
		return
	}
	r.OrdersRouted.WithLabelValues(brokerID, status).Inc()
}

// ObserveOrderLatency records the wall-clock time a PlaceOrder call took.
func (r *Recorder) ObserveOrderLatency(brokerID string, d time.Duration) {
	if r == nil {
		return
	}
	r.OrderLatency.WithLabelValues(brokerID).Observe(d.Seconds())
}

// ObserveFanOutLatency records the wall-clock time one orchestrator
// fan-out call took, by operation (e.g. "place_multi_broker_order",
// "compare_quotes").
func (r *Recorder) ObserveFanOutLatency(operation string, d time.Duration) {
	if r == nil {
		return
	}
	r.FanOutLatency.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveRateLimitWait records the time a call spent blocked in
// ratelimit.Bucket.Wait, by broker and bucket category.
func (r *Recorder) ObserveRateLimitWait(brokerID, category string, d time.Duration) {
	if r == nil {
		return
	}
	r.RateLimitWaitTime.WithLabelValues(brokerID, category).Observe(d.Seconds())
}

// IncRateLimitRejected counts a call that failed with KindRateLimited, by
// broker and bucket category.
func (r *Recorder) IncRateLimitRejected(brokerID, category string) {
	if r == nil {
		return
	}
	r.RateLimitRejected.WithLabelValues(brokerID, category).Inc()
}

// SetActiveSubscriptions reports the current ref-counted subscription
// count for a broker.
func (r *Recorder) SetActiveSubscriptions(brokerID string, n int) {
	if r == nil {
		return
	}
	r.ActiveSubscriptions.WithLabelValues(brokerID).Set(float64(n))
}
