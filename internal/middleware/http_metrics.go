package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Route patterns used as the path label.
const (
	routeRank        = "/api/v1/rank-listings"
	routeSort        = "/api/v1/sort-listings"
	routeModels      = "/api/v1/admin/models"
	routeModel       = "/api/v1/admin/models/{name}"
	routeUnmatched   = "unmatched"
	modelsPathPrefix = routeModels + "/"
)

// staticRoutes are served verbatim as metric labels.
var staticRoutes = map[string]bool{
	"/":         true,
	routeRank:   true,
	routeSort:   true,
	routeModels: true,
	"/health":   true,
	"/ready":    true,
	"/metrics":  true,
}

// normalizePath converts a request path to its route pattern to prevent
// cardinality explosion in metrics: bundle names collapse to {name} and
// paths outside the API collapse to "unmatched".
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}
	if strings.HasPrefix(path, "/debug/pprof") {
		return "/debug/pprof"
	}
	if name, ok := strings.CutPrefix(path, modelsPathPrefix); ok && name != "" && !strings.Contains(name, "/") {
		return routeModel
	}
	return routeUnmatched
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	if !mrw.wroteHeader {
		mrw.WriteHeader(http.StatusOK)
	}
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// Unwrap exposes the wrapped writer.
func (mrw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return mrw.ResponseWriter
}

// newMetricsResponseWriter creates a new metricsResponseWriter with default 200 status.
func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics is a middleware that records HTTP request metrics.
// It captures duration, request/response sizes, and request counts.
// Probe endpoints (/health, /ready) are excluded to keep scrapes free of
// kubelet noise.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := newMetricsResponseWriter(w)

			requestSize := r.ContentLength
			if requestSize < 0 {
				requestSize = 0
			}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				mrw.size,
			)
		})
	}
}
