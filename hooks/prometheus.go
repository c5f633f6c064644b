package hooks

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Skryldev/imageprep/core"
)

// PrometheusMetrics exports pipeline and batch metrics on its own registry.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	stepDuration *prometheus.HistogramVec
	stepErrors   *prometheus.CounterVec
	bytesOut     prometheus.Counter
	batchItems   *prometheus.CounterVec
}

// NewPrometheusMetrics registers the imageprep collectors plus the Go and
// process collectors on a fresh registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		registry: reg,
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "imageprep_step_duration_seconds",
				Help:    "Pipeline step duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"step"},
		),
		stepErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imageprep_step_errors_total",
				Help: "Total number of failed pipeline steps",
			},
			[]string{"step", "category"},
		),
		bytesOut: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "imageprep_step_output_bytes_total",
				Help: "Bytes produced by pipeline steps",
			},
		),
		batchItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imageprep_batch_items_total",
				Help: "Batch item outcomes",
			},
			[]string{"outcome"},
		),
	}
}

func (m *PrometheusMetrics) RecordProcessingTime(stepName string, d interface{ Seconds() float64 }) {
	m.stepDuration.WithLabelValues(stepName).Observe(d.Seconds())
}

func (m *PrometheusMetrics) RecordThroughput(bytes int64) {
	if bytes > 0 {
		m.bytesOut.Add(float64(bytes))
	}
}

func (m *PrometheusMetrics) RecordError(stepName string, category string) {
	m.stepErrors.WithLabelValues(stepName, category).Inc()
}

func (m *PrometheusMetrics) RecordBatchItem(outcome string) {
	m.batchItems.WithLabelValues(outcome).Inc()
}

// Registry returns the underlying registry.
func (m *PrometheusMetrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

var (
	_ core.MetricsCollector = (*PrometheusMetrics)(nil)
	_ core.MetricsCollector = (*InMemoryMetrics)(nil)
)
