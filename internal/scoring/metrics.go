package scoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricRequests        = "ranking_requests_total"
	MetricRequestDuration = "ranking_request_duration_seconds"
	MetricPredictions     = "ranking_predictions_total"
	MetricListings        = "ranking_listings_total"
)

// Request status labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// unroutedModel labels requests that failed before a bundle was selected.
const unroutedModel = "none"

// Metrics contains Prometheus metrics for ranking requests.
// All operations are thread-safe.
type Metrics struct {
	requests    *prometheus.CounterVec
	duration    prometheus.Histogram
	predictions *prometheus.CounterVec
	listings    *prometheus.CounterVec
}

// NewMetrics creates unregistered ranking metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRequests,
				Help: "Total number of ranking requests by serving model and status",
			},
			[]string{"model", "status"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRequestDuration,
			Help:    "Histogram of ranking request duration in seconds, excluding HTTP handling",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
		predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPredictions,
				Help: "Total number of model predictions made while ranking",
			},
			[]string{"model"},
		),
		listings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricListings,
				Help: "Total number of listings ranked",
			},
			[]string{"model"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.requests, m.duration, m.predictions, m.listings}
}

func (m *Metrics) observe(model string, seconds float64, predictions, listings int, err error) {
	if m == nil {
		return
	}
	if model == "" {
		model = unroutedModel
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.requests.WithLabelValues(model, status).Inc()
	m.duration.Observe(seconds)
	if err == nil {
		m.predictions.WithLabelValues(model).Add(float64(predictions))
		m.listings.WithLabelValues(model).Add(float64(listings))
	}
}
