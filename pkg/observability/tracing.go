package observability

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ajitpratap0/mcpbridge"

// Tracer returns the mcpbridge tracer from the global provider. It is looked
// up on every call so providers installed after startup take effect.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Span wraps a trace span and batches attributes until End.
type Span struct {
	span       trace.Span
	attributes []attribute.KeyValue
}

// NewSpan starts a span named operationName.
func NewSpan(ctx context.Context, operationName string) (context.Context, *Span) {
	ctx, span := Tracer().Start(ctx, operationName, trace.WithSpanKind(trace.SpanKindClient))
	return ctx, &Span{span: span}
}

// SetAttribute adds an attribute to the span
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// Fail marks the span as failed with the given error code and message
func (s *Span) Fail(code, message string) {
	s.SetAttribute("mcp.error_code", code)
	s.span.SetStatus(codes.Error, message)
}

// Succeed marks the span as successful
func (s *Span) Succeed() {
	s.span.SetStatus(codes.Ok, "")
}

// SpanContext returns the underlying span context
func (s *Span) SpanContext() trace.SpanContext {
	return s.span.SpanContext()
}

// End flushes the batched attributes and ends the span
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.span.End()
}

// ConnectorTracer starts spans for one connector
type ConnectorTracer struct {
	apiType       string
	connectorName string
}

// NewConnectorTracer creates a new connector tracer
func NewConnectorTracer(apiType, connectorName string) *ConnectorTracer {
	return &ConnectorTracer{
		apiType:       apiType,
		connectorName: connectorName,
	}
}

// StartSpan starts a span for processing intent. The span is named
// "<api_type>.<connector>.<intent>".
func (ct *ConnectorTracer) StartSpan(ctx context.Context, intent, correlationID string) (context.Context, *Span) {
	ctx, span := NewSpan(ctx, fmt.Sprintf("%s.%s.%s", ct.apiType, ct.connectorName, intent))

	span.SetAttribute("connector.type", ct.apiType)
	span.SetAttribute("connector.name", ct.connectorName)
	span.SetAttribute("mcp.intent", intent)
	span.SetAttribute("mcp.correlation_id", correlationID)

	return ctx, span
}

// InjectHeaders writes the trace context of ctx into h.
func InjectHeaders(ctx context.Context, h http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
}

// InjectMap writes the trace context of ctx into a string map, for carriers
// other than HTTP.
func InjectMap(ctx context.Context, m map[string]string) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(m))
}

// ExtractMap restores a trace context written by InjectMap.
func ExtractMap(ctx context.Context, m map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(m))
}
