// Package metrics exposes Prometheus collectors for loads and their tasks.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stacgrid"

// Task outcomes used as the status label.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Metrics holds the collectors of one process.
type Metrics struct {
	tasks         *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	skippedAssets prometheus.Counter
	loads         *prometheus.CounterVec
	opened        prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "total",
			Help:      "Load graph tasks by kind and outcome.",
		}, []string{"kind", "status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "duration_seconds",
			Help:      "Task execution time.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"kind"}),
		skippedAssets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reader",
			Name:      "skipped_assets_total",
			Help:      "Assets skipped after a read failure with fail_on_error disabled.",
		}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Loads by executor and outcome.",
		}, []string{"executor", "status"}),
		opened: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reader",
			Name:      "open_resources",
			Help:      "Raster resources currently held open.",
		}),
	}
	for _, c := range []prometheus.Collector{m.tasks, m.taskDuration, m.skippedAssets, m.loads, m.opened} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveTask records one finished task.
func (m *Metrics) ObserveTask(kind, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(kind, status).Inc()
	if status != StatusSkipped {
		m.taskDuration.WithLabelValues(kind).Observe(d.Seconds())
	}
}

// SkippedAsset counts one asset dropped from the output.
func (m *Metrics) SkippedAsset() {
	if m == nil {
		return
	}
	m.skippedAssets.Inc()
}

// Load records one finished load.
func (m *Metrics) Load(executor string, err error) {
	if m == nil {
		return
	}
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
	}
	m.loads.WithLabelValues(executor, status).Inc()
}

// ResourceOpened and ResourceReleased track open readers.
func (m *Metrics) ResourceOpened() {
	if m == nil {
		return
	}
	m.opened.Inc()
}

func (m *Metrics) ResourceReleased() {
	if m == nil {
		return
	}
	m.opened.Dec()
}
