// Package observability instruments the chatbot: Prometheus counters for
// turns and resolver matches, OpenTelemetry spans, liveness and readiness
// checks, and the unresolved-question detector. Every component is optional
// and nil-safe, so disabled features cost a single nil check per turn.
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jkaninda/hundreds/internal/config"
)

// Observability groups the components. Any field may be nil when disabled,
// except Health which always exists so /healthz can answer.
type Observability struct {
	Metrics *MetricsCollector
	Tracer  *TracerSetup
	Anomaly *AnomalyDetector
	Health  *HealthChecker
}

// New builds the enabled components. version is reported as the traced
// service version. Returns nil when cfg is nil.
func New(cfg *config.ObservabilityConfig, version string, logger *slog.Logger) (*Observability, error) {
	if cfg == nil {
		return nil, nil
	}

	obs := &Observability{}

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		obs.Metrics = NewMetricsCollector()
	}

	if cfg.Tracing != nil && cfg.Tracing.Enabled {
		ts, err := NewTracerSetup(cfg.Tracing, version)
		if err != nil {
			return nil, fmt.Errorf("initializing tracing: %w", err)
		}
		obs.Tracer = ts
	}

	if cfg.Anomaly != nil && cfg.Anomaly.Enabled {
		obs.Anomaly = NewAnomalyDetector(cfg.Anomaly, logger)
	}

	// Dataset and database checks are registered once the dataset is loaded.
	obs.Health = NewHealthChecker(logger)

	return obs, nil
}

// Shutdown flushes buffered spans.
func (o *Observability) Shutdown(ctx context.Context) {
	if o == nil {
		return
	}
	if o.Tracer != nil {
		_ = o.Tracer.Shutdown(ctx)
	}
}

// TracerOrNil returns the tracer setup, nil when tracing is disabled.
func (o *Observability) TracerOrNil() *TracerSetup {
	if o == nil {
		return nil
	}
	return o.Tracer
}

// MetricsOrNil returns the metrics collector or nil if metrics are disabled.
func (o *Observability) MetricsOrNil() *MetricsCollector {
	if o == nil {
		return nil
	}
	return o.Metrics
}

// AnomalyOrNil returns the anomaly detector or nil if it is disabled.
func (o *Observability) AnomalyOrNil() *AnomalyDetector {
	if o == nil {
		return nil
	}
	return o.Anomaly
}
