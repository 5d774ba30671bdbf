package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the sweeper.
type Metrics struct {
	Evicted       *prometheus.CounterVec
	SweepDuration prometheus.Histogram
}

// NewMetrics creates and registers sweeper metrics.
// Returns nil if reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		Evicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hundreds",
			Subsystem: "sweeper",
			Name:      "evicted_total",
			Help:      "Total idle entries evicted, by target.",
		}, []string{"target"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hundreds",
			Subsystem: "sweeper",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of one eviction pass.",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1},
		}),
	}

	reg.MustRegister(m.Evicted, m.SweepDuration)
	return m
}
