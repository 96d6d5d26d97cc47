package bundle

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricBundleOperations = "bundle_operations_total"
	MetricBundleAvailable  = "bundle_available"
	MetricBundleLoad       = "bundle_load_duration_seconds"
)

// Operation labels.
const (
	OpDiscover   = "discover"
	OpRegister   = "register"
	OpDeregister = "deregister"
	OpLoad       = "load"
)

// Metrics contains Prometheus metrics for bundle storage and routing.
// All operations are thread-safe.
type Metrics struct {
	operations   *prometheus.CounterVec
	available    prometheus.Gauge
	loadDuration prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricBundleOperations,
				Help: "Total number of model bundle operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		available: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricBundleAvailable,
			Help: "Number of complete model bundles seen by the last discovery",
		}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricBundleLoad,
			Help:    "Histogram of model bundle load duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
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
	return []prometheus.Collector{m.operations, m.available, m.loadDuration}
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(op, status).Inc()
}

func (m *Metrics) setAvailable(n int) {
	if m == nil {
		return
	}
	m.available.Set(float64(n))
}

func (m *Metrics) observeLoad(seconds float64) {
	if m == nil {
		return
	}
	m.loadDuration.Observe(seconds)
}
