// Package metrics provides Prometheus metrics for rating estimation runs.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run status label values.
const (
	StatusConverged    = "converged"
	StatusNotConverged = "not_converged"
	StatusFailed       = "failed"
)

// Manager manages all Prometheus metrics for the estimator.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Estimation progress
	iterations     prometheus.Counter
	runs           *prometheus.CounterVec
	passDuration   *prometheus.HistogramVec
	maxRatingDelta prometheus.Gauge
	logPosterior   prometheus.Gauge

	// Problem size
	subjects *prometheus.GaugeVec

	// Failures
	numericalFailures *prometheus.CounterVec

	// Pipeline stages (load, estimate, write)
	stageDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Init replaces the global manager with one built from opts on a fresh
// registry. Call it before an estimation starts; metrics recorded earlier are
// dropped.
func Init(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(customRegistry)}, opts...)...)
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "climbratings",
		subsystem:        "whr",
		histogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		enabled:          true,
		constLabels:      make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.constLabels)

	m.iterations = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "iterations_total",
		Help:        "Total number of alternating page/route update iterations",
		ConstLabels: labels,
	})

	m.runs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "runs_total",
		Help:        "Estimation runs by final status",
		ConstLabels: labels,
	}, []string{"status"})

	m.passDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "pass_duration_milliseconds",
		Help:        "Duration of one Newton-Raphson pass in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"pass"})

	m.maxRatingDelta = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "max_rating_delta",
		Help:        "Largest absolute rating change in the most recent iteration",
		ConstLabels: labels,
	})

	m.logPosterior = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "log_posterior",
		Help:        "Log-posterior of the most recent estimate (up to a constant)",
		ConstLabels: labels,
	})

	m.subjects = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "subjects",
		Help:        "Number of subjects in the estimation problem by kind",
		ConstLabels: labels,
	}, []string{"kind"})

	m.numericalFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "numerical_failures_total",
		Help:        "Passes aborted because a rating or derivative became non-finite",
		ConstLabels: labels,
	}, []string{"pass"})

	m.stageDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "stage_duration_milliseconds",
		Help:        "Duration of pipeline stages in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"stage"})
}

// RecordIteration increments the iteration counter.
func RecordIteration() {
	if !globalManager.enabled {
		return
	}
	globalManager.iterations.Inc()
}

// RecordRun counts a finished run with the given status.
func RecordRun(status string) {
	if !globalManager.enabled {
		return
	}
	globalManager.runs.WithLabelValues(status).Inc()
}

// RecordPassDuration records how long a route or page pass took.
func RecordPassDuration(pass string, durationMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.passDuration.WithLabelValues(pass).Observe(durationMs)
}

// UpdateMaxRatingDelta sets the latest iteration's largest rating change.
func UpdateMaxRatingDelta(delta float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.maxRatingDelta.Set(delta)
}

// UpdateLogPosterior sets the latest log-posterior.
func UpdateLogPosterior(v float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.logPosterior.Set(v)
}

// UpdateSubjects sets the number of subjects of a kind (routes, pages, climbers, ascents).
func UpdateSubjects(kind string, count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.subjects.WithLabelValues(kind).Set(float64(count))
}

// RecordNumericalFailure counts a pass that failed on a non-finite value.
func RecordNumericalFailure(pass string) {
	if !globalManager.enabled {
		return
	}
	globalManager.numericalFailures.WithLabelValues(pass).Inc()
}

// RecordStageDuration records a pipeline stage duration.
func RecordStageDuration(stage string, durationMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.stageDuration.WithLabelValues(stage).Observe(durationMs)
}

// SetEnabled toggles recording on the global manager.
func SetEnabled(enabled bool) {
	globalManager.enabled = enabled
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile writes the current metrics in the Prometheus text format, for
// batch runs scraped through a node exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}
