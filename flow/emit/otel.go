package emit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter implements Emitter by creating OpenTelemetry spans.
//
// Each event becomes a span with:
//   - Span name: event.Kind (e.g., "tool_called", "handoff")
//   - Attributes: runID, turn, agent, and all event.Meta fields
//   - Status: set to error if event.Meta["error"] exists
//
// Usage:
//
//	tracer := otel.Tracer("agentflow")
//	emitter := emit.NewOTelEmitter(tracer)
//	eng, _ := flow.New(registry, agents, flow.WithEmitter(emitter))
//
// Setting up the provider is application code:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates a new OTelEmitter.
//
// Parameters:
//   - tracer: OpenTelemetry tracer from otel.Tracer("service-name")
//
// Returns an OTelEmitter that creates one span per event.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit creates an OpenTelemetry span for the event.
//
// The span is ended immediately; events represent points in time rather
// than durations. Tool call durations are carried in the "duration_ms"
// metadata attribute instead.
func (o *OTelEmitter) Emit(event Event) {
	ctx := context.Background()
	_, span := o.tracer.Start(ctx, event.Kind)
	defer span.End()

	o.addStandardAttributes(span, event)
	o.addMetadataAttributes(span, event.Meta)

	if errMsg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}

// Flush forces export of all pending spans.
//
// OpenTelemetry typically buffers spans in a batch span processor.
// Flush ensures buffered spans reach the backend before shutdown.
// Call this before the application exits:
//
//	defer func() {
//	    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	    defer cancel()
//	    _ = emitter.Flush(ctx)
//	}()
func (o *OTelEmitter) Flush(ctx context.Context) error {
	tp := otel.GetTracerProvider()

	type flusher interface {
		ForceFlush(context.Context) error
	}

	if f, ok := tp.(flusher); ok {
		return f.ForceFlush(ctx)
	}

	// Provider doesn't support flushing (e.g., noop provider).
	return nil
}

func (o *OTelEmitter) addStandardAttributes(span trace.Span, event Event) {
	span.SetAttributes(
		attribute.String("agentflow.run_id", event.RunID),
		attribute.Int("agentflow.turn", event.Turn),
		attribute.String("agentflow.agent", event.Agent),
	)
	if event.Msg != "" {
		span.SetAttributes(attribute.String("agentflow.msg", event.Msg))
	}
}

// addMetadataAttributes converts event metadata to span attributes.
//
// Handles common types:
//   - string, int, int64, float64, bool: direct conversion
//   - time.Duration: converted to milliseconds
//   - other types: string representation
func (o *OTelEmitter) addMetadataAttributes(span trace.Span, meta map[string]any) {
	for key, value := range meta {
		attrKey := "agentflow." + key
		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(attrKey, v))
		case int:
			span.SetAttributes(attribute.Int(attrKey, v))
		case int64:
			span.SetAttributes(attribute.Int64(attrKey, v))
		case float64:
			span.SetAttributes(attribute.Float64(attrKey, v))
		case bool:
			span.SetAttributes(attribute.Bool(attrKey, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64(attrKey, int64(v/time.Millisecond)))
		default:
			span.SetAttributes(attribute.String(attrKey, fmt.Sprintf("%v", v)))
		}
	}
}
