package predlog

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricLogFailures = "prediction_log_failures_total"
	MetricLogEntries  = "prediction_log_entries_total"
)

// Metrics counts prediction log writes.
type Metrics struct {
	failures prometheus.Counter
	entries  prometheus.Counter
}

// NewMetrics creates unregistered prediction log metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricLogFailures,
			Help: "Total number of prediction log batches that failed to write",
		}),
		entries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricLogEntries,
			Help: "Total number of prediction log entries written",
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
	return []prometheus.Collector{m.failures, m.entries}
}

// IncFailures increments the failed batch counter.
func (m *Metrics) IncFailures() {
	if m != nil {
		m.failures.Inc()
	}
}

// AddEntries adds n to the written entries counter.
func (m *Metrics) AddEntries(n int) {
	if m != nil {
		m.entries.Add(float64(n))
	}
}
