package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "ruidmap"

// StartQuerySpan starts a span for a filtered task or project query.
func StartQuerySpan(ctx context.Context, kind, projectID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "query",
		trace.WithAttributes(
			attribute.String("query.kind", kind),
			attribute.String("project.id", projectID),
		),
	)
}

// StartTransferSpan starts a span for an export or import operation.
func StartTransferSpan(ctx context.Context, op, mode string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "transfer."+op,
		trace.WithAttributes(
			attribute.String("transfer.mode", mode),
		),
	)
}

// StartArchiveSpan starts a span for an auto-archive sweep.
func StartArchiveSpan(ctx context.Context) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "archive.sweep")
}
