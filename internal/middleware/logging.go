// Package middleware provides HTTP middleware components for the ranking server.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// subjectKey is the context key for the authenticated admin subject.
type subjectKey struct{}

// errorCodeKey is the context key for error code.
type errorCodeKey struct{}

// SetSubject stores the authenticated admin subject in the context.
// AdminAuth calls this after validating the bearer token.
func SetSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// GetSubject retrieves the admin subject from context. Returns empty string if not present.
func GetSubject(ctx context.Context) string {
	if s, ok := ctx.Value(subjectKey{}).(string); ok {
		return s
	}
	return ""
}

// SetErrorCode stores an error code in the context.
// This should be called by handlers when returning error responses.
func SetErrorCode(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, errorCodeKey{}, code)
}

// GetErrorCode retrieves the error code from context. Returns empty string if not present.
func GetErrorCode(ctx context.Context) string {
	if code, ok := ctx.Value(errorCodeKey{}).(string); ok {
		return code
	}
	return ""
}

// UpdateResponseContext hands the error code and subject of a derived
// context to the logging middleware wrapping w. Handlers derive contexts the
// middleware never sees, so these values travel on the response writer.
// It is a no-op when w is not wrapped by Logging.
func UpdateResponseContext(w http.ResponseWriter, ctx context.Context) {
	code, subject := GetErrorCode(ctx), GetSubject(ctx)
	if code == "" && subject == "" {
		return
	}
	for {
		switch rw := w.(type) {
		case *responseWriter:
			if code != "" {
				rw.errorCode = code
			}
			if subject != "" {
				rw.subject = subject
			}
			return
		case interface{ Unwrap() http.ResponseWriter }:
			w = rw.Unwrap()
		default:
			return
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code, response size
// and the values reported through UpdateResponseContext.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int
	wroteHeader bool
	errorCode   string
	subject     string
}

// WriteHeader captures the status code before writing it.
// Only the first call sets the status code; subsequent calls are ignored
// to match http.ResponseWriter behavior where only the first status is sent.
func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// newResponseWriter creates a new responseWriter with default 200 status.
func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// NewLogger creates an slog.Logger based on the environment.
// In production (env == "production"), it returns a JSON handler.
// Otherwise, it returns a text handler for development.
func NewLogger(env string) *slog.Logger {
	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}
	return slog.New(handler)
}

// Logging is a middleware that logs HTTP requests with structured fields:
// method, path, status, latency (ms), response size, request ID, trace ID,
// admin subject (if authenticated) and error_code (for error responses).
//
// Note: If a handler panics, the log entry will not be written. To ensure logging
// even on panics, place a recovery middleware outside of the logging middleware.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.statusCode),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
				slog.Int("size", rw.size),
			}

			if requestID := GetRequestID(r.Context()); requestID != "" {
				attrs = append(attrs, slog.String("request_id", requestID))
			}
			if traceID := GetTraceID(r); traceID != "" {
				attrs = append(attrs, slog.String("trace_id", traceID))
			}
			subject := rw.subject
			if subject == "" {
				subject = GetSubject(r.Context())
			}
			if subject != "" {
				attrs = append(attrs, slog.String("subject", subject))
			}

			if rw.statusCode >= 400 {
				errorCode := rw.errorCode
				if errorCode == "" {
					errorCode = GetErrorCode(r.Context())
				}
				if errorCode != "" {
					attrs = append(attrs, slog.String("error_code", errorCode))
				}
			}

			level := slog.LevelInfo
			switch {
			case rw.statusCode >= 500:
				level = slog.LevelError
			case rw.statusCode >= 400:
				level = slog.LevelWarn
			}
			logger.LogAttrs(r.Context(), level, "request completed", attrs...)
		})
	}
}
