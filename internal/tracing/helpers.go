package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "listrank"

// StorageOperation names what a storage span does to the bundle store.
type StorageOperation string

const (
	StorageOperationList   StorageOperation = "list"
	StorageOperationRead   StorageOperation = "read"
	StorageOperationWrite  StorageOperation = "write"
	StorageOperationDelete StorageOperation = "delete"
)

// StartStorageSpan opens a client span named "storage.<operation>" tagged
// with the backend and, when non-empty, the object key. The returned func
// ends the span and marks it failed if given a non-nil error:
//
//	ctx, endSpan := tracing.StartStorageSpan(ctx, "fs", tracing.StorageOperationRead, "baseline/model.json")
//	defer func() { endSpan(err) }()
func StartStorageSpan(ctx context.Context, backend string, op StorageOperation, object string) (context.Context, func(error)) {
	attrs := []attribute.KeyValue{
		attribute.String("storage.backend", backend),
		attribute.String("storage.operation", string(op)),
	}
	if object != "" {
		attrs = append(attrs, attribute.String("storage.object", object))
	}
	ctx, span := otel.Tracer(instrumentationName+"/storage").Start(ctx, "storage."+string(op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return ctx, finisher(span)
}

// StartSpan opens an internal span; see StartStorageSpan for the end func.
func StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, name)
	return ctx, finisher(span)
}

func finisher(span trace.Span) func(error) {
	return func(err error) {
		defer span.End()
		if err == nil {
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent records an event on the span carried by ctx, if any.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes tags the span carried by ctx, if any.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
