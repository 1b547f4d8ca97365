package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all linepulse collectors on a dedicated registry, so the
// exposed page carries exactly what we register plus the standard Go and
// process collectors.
type Metrics struct {
	reg *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	alertsFired   *prometheus.CounterVec
	wsClients     prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linepulse_http_requests_total",
			Help: "HTTP requests served, by route and status code.",
		}, []string{"route", "code"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linepulse_store_query_seconds",
			Help:    "Event store query latency.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"query"}),
		alertsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linepulse_alerts_fired_total",
			Help: "Alerts emitted by the rule engine, by alert type.",
		}, []string{"type"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "linepulse_ws_clients",
			Help: "Currently connected WebSocket stream clients.",
		}),
	}

	m.reg.MustRegister(
		m.httpRequests,
		m.queryDuration,
		m.alertsFired,
		m.wsClients,
	)
	return m
}

// Handler returns the promhttp handler for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveRequest counts one served HTTP request.
func (m *Metrics) ObserveRequest(route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// ObserveQuery records one event store query duration.
func (m *Metrics) ObserveQuery(query string, d time.Duration) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(query).Observe(d.Seconds())
}

// AlertFired counts one emitted alert.
func (m *Metrics) AlertFired(alertType string) {
	if m == nil {
		return
	}
	m.alertsFired.WithLabelValues(alertType).Inc()
}

// ClientConnected tracks a new WebSocket client.
func (m *Metrics) ClientConnected() {
	if m == nil {
		return
	}
	m.wsClients.Inc()
}

// ClientDisconnected tracks a departed WebSocket client.
func (m *Metrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.wsClients.Dec()
}
