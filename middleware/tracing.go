package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for provepool tracing.
const tracerName = "github.com/xraph/provepool"

// Tracing returns middleware that wraps the computation in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop tracer
// is used and this middleware becomes a pass-through with zero overhead.
//
// Span attributes include: provepool.job.id and provepool.payload_bytes.
// On error, the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, req *Request, next Handler) ([]byte, error) {
		ctx, span := tracer.Start(ctx, "provepool.compute",
			trace.WithAttributes(
				attribute.String("provepool.job.id", req.JobID.String()),
				attribute.Int("provepool.payload_bytes", len(req.Payload)),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		value, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return value, err
	}
}
