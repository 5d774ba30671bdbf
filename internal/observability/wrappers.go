package observability

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/hundreds/internal/chat"
)

// InstrumentedBot wraps a chat.TurnHandler with metrics, a span per turn and
// unresolved-rate tracking. Every field besides the inner handler may be nil.
type InstrumentedBot struct {
	inner   chat.TurnHandler
	gateway string
	metrics *MetricsCollector
	tracer  trace.Tracer
	anomaly *AnomalyDetector
}

// NewInstrumentedBot labels every turn with the gateway that served it.
func NewInstrumentedBot(inner chat.TurnHandler, gateway string, metrics *MetricsCollector, tracer trace.Tracer, anomaly *AnomalyDetector) *InstrumentedBot {
	return &InstrumentedBot{
		inner:   inner,
		gateway: gateway,
		metrics: metrics,
		tracer:  tracer,
		anomaly: anomaly,
	}
}

// HandleTurn implements chat.TurnHandler.
func (b *InstrumentedBot) HandleTurn(ctx context.Context, tr *chat.Transcript, text string) (chat.Reply, bool) {
	var span trace.Span
	if b.tracer != nil {
		ctx, span = b.tracer.Start(ctx, "chat.turn",
			trace.WithAttributes(attribute.String("chat.gateway", b.gateway)))
		defer span.End()
	}

	start := time.Now()
	reply, ok := b.inner.HandleTurn(ctx, tr, text)
	if !ok {
		return reply, false
	}
	elapsed := time.Since(start)

	if span != nil {
		span.SetAttributes(
			attribute.String("chat.kind", string(reply.Kind)),
			attribute.String("chat.player", reply.Player),
			attribute.String("chat.format", string(reply.Format)),
		)
		if reply.Kind == chat.KindUnresolved {
			span.AddEvent("player not resolved")
		}
	}

	if b.metrics != nil {
		b.metrics.TurnsTotal.WithLabelValues(b.gateway, string(reply.Kind)).Inc()
		b.metrics.TurnDuration.WithLabelValues(b.gateway).Observe(elapsed.Seconds())
		if reply.Phase != "" {
			b.metrics.ResolverMatches.WithLabelValues(string(reply.Phase)).Inc()
		}
		if reply.Format != "" && reply.Kind == chat.KindStat {
			b.metrics.FormatsRequested.WithLabelValues(string(reply.Format)).Inc()
		}
	}

	switch reply.Kind {
	case chat.KindUnresolved:
		b.anomaly.RecordUnresolved(b.gateway)
	case chat.KindStat, chat.KindCard:
		b.anomaly.RecordAnswered(b.gateway)
	}

	return reply, true
}

// statusCode converts an HTTP status code to a string label.
func statusCode(code int) string {
	return strconv.Itoa(code)
}
