package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector holds all Prometheus metrics for hundreds.
// Uses a custom registry, never the global one.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// Turn metrics.
	TurnsTotal       *prometheus.CounterVec
	TurnDuration     *prometheus.HistogramVec
	ResolverMatches  *prometheus.CounterVec
	FormatsRequested *prometheus.CounterVec

	// Dataset metrics.
	DatasetPlayers prometheus.Gauge

	// HTTP gateway metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// WebSocket gateway metrics.
	WSConnections prometheus.Gauge

	// System metrics.
	ActiveRequests prometheus.Gauge
}

// NewMetricsCollector creates a MetricsCollector with all metrics registered
// on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		TurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hundreds",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total user turns handled, by reply kind.",
		}, []string{"gateway", "kind"}),

		TurnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hundreds",
			Subsystem: "chat",
			Name:      "turn_duration_seconds",
			Help:      "Time to produce a reply.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"gateway"}),

		ResolverMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hundreds",
			Subsystem: "resolver",
			Name:      "matches_total",
			Help:      "Players resolved, by resolution phase.",
		}, []string{"phase"}),

		FormatsRequested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hundreds",
			Subsystem: "chat",
			Name:      "formats_requested_total",
			Help:      "Answered stat questions, by format.",
		}, []string{"format"}),

		DatasetPlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hundreds",
			Subsystem: "dataset",
			Name:      "players",
			Help:      "Number of players in the loaded dataset.",
		}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hundreds",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hundreds",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hundreds",
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Open WebSocket chat connections.",
		}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hundreds",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),
	}

	reg.MustRegister(
		m.TurnsTotal,
		m.TurnDuration,
		m.ResolverMatches,
		m.FormatsRequested,
		m.DatasetPlayers,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.WSConnections,
		m.ActiveRequests,
	)

	return m
}

// ObserveSessions exposes the live session count, read from count at
// scrape time. Call at most once per collector.
func (m *MetricsCollector) ObserveSessions(count func() int) {
	m.Registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "hundreds",
		Subsystem: "sessions",
		Name:      "active",
		Help:      "Number of in-memory chat sessions.",
	}, func() float64 { return float64(count()) }))
}
