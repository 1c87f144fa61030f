// Package tracing wraps the OpenTelemetry API for operation spans. Without a
// configured SDK provider the global no-op tracer is used.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "dividend"

func Tracer() trace.Tracer {
	return otel.Tracer(instrumentation)
}

// Track starts a span and returns a finisher that records err and ends it.
//
//	ctx, end := tracing.Track(ctx, "epoch.pool", attribute.Int64("epoch", n))
//	defer func() { end(err) }()
func Track(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := Tracer().Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
