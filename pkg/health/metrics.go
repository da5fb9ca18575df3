package health

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "duskd"

// Metrics holds the daemon's Prometheus collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	temperature  prometheus.Gauge
	gamma        prometheus.Gauge
	period       *prometheus.GaugeVec
	applyLatency prometheus.Histogram
	failures     *prometheus.CounterVec
	pacing       prometheus.Gauge
	anomalies    *prometheus.CounterVec
}

// NewMetrics creates and registers the daemon collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_kelvin",
			Help:      "Color temperature last applied to the display.",
		}),
		gamma: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gamma_percent",
			Help:      "Gamma last applied to the display.",
		}),
		period: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "period",
			Help:      "Active period kind. Stable kinds report 1, transitions report progress.",
		}, []string{"kind"}),
		applyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "apply_duration_seconds",
			Help:      "Time spent in one backend apply.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "apply_failures_total",
			Help:      "Failed backend applies.",
		}, []string{"backend"}),
		pacing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "animation_interval_seconds",
			Help:      "Adaptive tick interval of the running animation.",
		}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "time_anomalies_total",
			Help:      "Detected clock jumps, gaps and resumes.",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.temperature, m.gamma, m.period, m.applyLatency, m.failures, m.pacing, m.anomalies,
	)
	return m
}

// Applied records values that reached the display
func (m *Metrics) Applied(temperature int, gamma float64) {
	m.temperature.Set(float64(temperature))
	m.gamma.Set(gamma)
}

// Period records the active period kind. value is 1 for stable kinds, progress for transitions.
func (m *Metrics) Period(kind string, value float64) {
	m.period.Reset()
	m.period.WithLabelValues(kind).Set(value)
}

// ApplyLatency observes one apply duration
func (m *Metrics) ApplyLatency(d time.Duration) {
	m.applyLatency.Observe(d.Seconds())
}

// ApplyFailed counts n failed applies for backend
func (m *Metrics) ApplyFailed(backend string, n int) {
	m.failures.WithLabelValues(backend).Add(float64(n))
}

// Pacing records the current animation tick interval
func (m *Metrics) Pacing(interval time.Duration) {
	m.pacing.Set(interval.Seconds())
}

// Anomaly counts a detected time anomaly
func (m *Metrics) Anomaly(kind string) {
	m.anomalies.WithLabelValues(kind).Inc()
}

// Registry exposes the underlying registry. Intended for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
