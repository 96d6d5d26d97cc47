package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	return recorder
}

func TestTracing_SpanNames(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodPost, "/api/v1/rank-listings", "POST /api/v1/rank-listings"},
		{http.MethodDelete, "/api/v1/admin/models/baseline", "DELETE /api/v1/admin/models/{name}"},
		{http.MethodGet, "/nope", "GET unmatched"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			recorder := newSpanRecorder(t)
			handler := Tracing("listrank")(okHandler())

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))

			spans := recorder.Ended()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			if spans[0].Name() != tt.want {
				t.Errorf("span name = %q, want %q", spans[0].Name(), tt.want)
			}
			if rr.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", rr.Code)
			}
		})
	}
}

func TestTracing_SkipsProbes(t *testing.T) {
	recorder := newSpanRecorder(t)
	handler := Tracing("listrank")(okHandler())

	for _, path := range []string{"/health", "/ready"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	if n := len(recorder.Ended()); n != 0 {
		t.Errorf("expected probes to be untraced, got %d spans", n)
	}
}

func TestTracing_PropagatesContext(t *testing.T) {
	recorder := newSpanRecorder(t)

	var traceID, spanID string
	handler := Tracing("listrank")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = GetTraceID(r)
		spanID = GetSpanID(r)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rank-listings", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if traceID != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("trace ID = %q, want the incoming trace", traceID)
	}
	if spanID == "" || spanID == "00f067aa0ba902b7" {
		t.Errorf("expected a new server span ID, got %q", spanID)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if got := spans[0].Parent().SpanID().String(); got != "00f067aa0ba902b7" {
		t.Errorf("parent span = %q, want 00f067aa0ba902b7", got)
	}
}

func TestGetTraceID_NoSpan(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if GetTraceID(req) != "" || GetSpanID(req) != "" {
		t.Error("expected empty IDs without an active span")
	}
}
