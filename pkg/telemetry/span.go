package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/heapql"

// Attribute keys shared by heapql spans.
const (
	AttrSnapshot  = attribute.Key("heapql.snapshot")
	AttrQuery     = attribute.Key("heapql.query")
	AttrRows      = attribute.Key("heapql.rows")
	AttrTruncated = attribute.Key("heapql.truncated")
	AttrErrorCode = attribute.Key("heapql.error_code")
)

// Tracer returns the heapql tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartSpan starts a span named name with the given attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
