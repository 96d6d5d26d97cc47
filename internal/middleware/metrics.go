package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricRateLimitRequests     = "rate_limit_requests_total"
	MetricRateLimitBlocked      = "rate_limit_blocked_total"
	MetricRateLimitRedisErrors  = "rate_limit_redis_errors_total"
	MetricAuthFailures          = "admin_auth_failures_total"
	MetricHTTPRequestDuration   = "http_request_duration_seconds"
	MetricHTTPRequestsTotal     = "http_requests_total"
	MetricHTTPRequestSizeBytes  = "http_request_size_bytes"
	MetricHTTPResponseSizeBytes = "http_response_size_bytes"
)

var (
	httpLabels      = []string{"method", "path", "status"}
	rateLimitLabels = []string{"endpoint", "key_type"}

	// 100 B up to 100 MB; bundle uploads sit at the top end.
	sizeBuckets = prometheus.ExponentialBuckets(100, 10, 7)
)

// Metrics holds the collectors shared by the middleware in this package.
// Every method is a no-op on a nil receiver, so middleware built without
// metrics needs no special casing.
type Metrics struct {
	rateLimitRequests    *prometheus.CounterVec
	rateLimitBlocked     *prometheus.CounterVec
	rateLimitRedisErrors prometheus.Counter
	authFailures         *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestSize      *prometheus.HistogramVec
	httpResponseSize     *prometheus.HistogramVec
}

func counterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
}

func histogramVec(name, help string, buckets []float64) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, httpLabels)
}

// NewMetrics builds unregistered collectors; see Register.
func NewMetrics() *Metrics {
	return &Metrics{
		rateLimitRequests: counterVec(MetricRateLimitRequests,
			"Rate limit checks by endpoint", rateLimitLabels),
		rateLimitBlocked: counterVec(MetricRateLimitBlocked,
			"Requests rejected with 429 by endpoint", rateLimitLabels),
		rateLimitRedisErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRateLimitRedisErrors,
			Help: "Redis failures during rate limiting; the request was let through",
		}),
		authFailures: counterVec(MetricAuthFailures,
			"Rejected admin API requests by reason", []string{"reason"}),
		httpRequestDuration: histogramVec(MetricHTTPRequestDuration,
			"HTTP request duration in seconds", []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0}),
		httpRequestsTotal: counterVec(MetricHTTPRequestsTotal,
			"HTTP requests served", httpLabels),
		httpRequestSize: histogramVec(MetricHTTPRequestSizeBytes,
			"HTTP request body size in bytes", sizeBuckets),
		httpResponseSize: histogramVec(MetricHTTPResponseSizeBytes,
			"HTTP response body size in bytes", sizeBuckets),
	}
}

// Register adds every collector to reg, stopping at the first failure.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncRateLimitRequests counts one limiter check. keyType names what the key
// was derived from, e.g. "ip".
func (m *Metrics) IncRateLimitRequests(endpoint, keyType string) {
	if m == nil {
		return
	}
	m.rateLimitRequests.WithLabelValues(endpoint, keyType).Inc()
}

func (m *Metrics) IncRateLimitBlocked(endpoint, keyType string) {
	if m == nil {
		return
	}
	m.rateLimitBlocked.WithLabelValues(endpoint, keyType).Inc()
}

// IncRateLimitRedisErrors counts a fail-open limiter decision.
func (m *Metrics) IncRateLimitRedisErrors() {
	if m == nil {
		return
	}
	m.rateLimitRedisErrors.Inc()
}

// IncAuthFailures counts a rejected admin request.
func (m *Metrics) IncAuthFailures(reason string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(reason).Inc()
}

// ObserveHTTPRequest records HTTP request metrics.
// path must already be normalized; duration is in seconds.
func (m *Metrics) ObserveHTTPRequest(method, path, status string, duration float64, requestSize, responseSize int64) {
	if m == nil {
		return
	}
	m.httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestSize.WithLabelValues(method, path, status).Observe(float64(requestSize))
	m.httpResponseSize.WithLabelValues(method, path, status).Observe(float64(responseSize))
}

// Collectors lists the collectors in registration order.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.rateLimitRequests,
		m.rateLimitBlocked,
		m.rateLimitRedisErrors,
		m.authFailures,
		m.httpRequestDuration,
		m.httpRequestsTotal,
		m.httpRequestSize,
		m.httpResponseSize,
	}
}
