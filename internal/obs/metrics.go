package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the bridge's operational counters in Prometheus text
// exposition format. All methods are nil-safe so instrumentation can be
// disabled by passing a nil Metrics.
type Metrics struct {
	registry *prometheus.Registry

	barsEmitted  *prometheus.CounterVec
	reconnects   *prometheus.CounterVec
	ordersTotal  *prometheus.CounterVec
	orderEvents  *prometheus.CounterVec
	pendingTrans prometheus.Gauge
	accountCash  prometheus.Gauge
	accountValue prometheus.Gauge
}

// NewMetrics builds and registers the metric set on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		barsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_bars_emitted_total",
				Help: "Bars emitted to the consumer per symbol",
			},
			[]string{"symbol"},
		),
		reconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_feed_reconnects_total",
				Help: "Live stream reconnection attempts per symbol",
			},
			[]string{"symbol"},
		),
		ordersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_orders_total",
				Help: "Orders submitted to the broker",
			},
			[]string{"side"},
		),
		orderEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_order_events_total",
				Help: "Order state callbacks delivered to the consumer",
			},
			[]string{"event"},
		),
		pendingTrans: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_pending_transactions",
				Help: "Trade events buffered for not-yet-bound order ids",
			},
		),
		accountCash: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_account_cash",
				Help: "Last known account cash",
			},
		),
		accountValue: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_account_value",
				Help: "Last known account portfolio value",
			},
		),
	}
	m.registry.MustRegister(
		m.barsEmitted, m.reconnects, m.ordersTotal, m.orderEvents,
		m.pendingTrans, m.accountCash, m.accountValue,
	)
	return m
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) BarEmitted(symbol string) {
	if m == nil {
		return
	}
	m.barsEmitted.WithLabelValues(symbol).Inc()
}

func (m *Metrics) Reconnect(symbol string) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(symbol).Inc()
}

func (m *Metrics) OrderSubmitted(side string) {
	if m == nil {
		return
	}
	m.ordersTotal.WithLabelValues(side).Inc()
}

func (m *Metrics) OrderEvent(event string) {
	if m == nil {
		return
	}
	m.orderEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) SetPendingTransactions(n int) {
	if m == nil {
		return
	}
	m.pendingTrans.Set(float64(n))
}

func (m *Metrics) SetAccount(cash, value float64) {
	if m == nil {
		return
	}
	m.accountCash.Set(cash)
	m.accountValue.Set(value)
}
