package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// Tracing wraps next in an otelhttp server span and continues any W3C
// traceparent sent by the caller.
//
// Spans are named "<METHOD> <route>" using the same normalized routes as the
// HTTP metrics, so bundle names do not explode span cardinality. Probe
// endpoints are not traced.
//
// Place it outermost so request logging can attach the trace ID.
func Tracing(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + normalizePath(r.URL.Path)
			}),
			otelhttp.WithFilter(traced),
		)
	}
}

func traced(r *http.Request) bool {
	switch r.URL.Path {
	case "/health", "/ready":
		return false
	}
	return true
}

// GetTraceID returns the hex trace ID of the request's active span, or "".
func GetTraceID(r *http.Request) string {
	if sc := spanContext(r); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// GetSpanID returns the hex ID of the request's active span, or "".
func GetSpanID(r *http.Request) string {
	if sc := spanContext(r); sc.IsValid() {
		return sc.SpanID().String()
	}
	return ""
}

func spanContext(r *http.Request) trace.SpanContext {
	return trace.SpanContextFromContext(r.Context())
}
