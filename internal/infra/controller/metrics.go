package controller

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics records controller runs as refundly_job_* series, labelled by job name.
type PrometheusMetrics struct {
	runs       *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	items      *prometheus.CounterVec
	scheduled  *prometheus.GaugeVec
	lastRunSec *prometheus.GaugeVec
}

var _ Metrics = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics registers the controller collectors on reg.
// A nil reg uses the default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: "refundly", Subsystem: "job", Name: name, Help: help}
	}

	return &PrometheusMetrics{
		runs: f.NewCounterVec(
			prometheus.CounterOpts(opts("runs_total", "Maintenance job runs by result")),
			[]string{"job", "result"},
		),
		failures: f.NewCounterVec(
			prometheus.CounterOpts(opts("failures_total", "Maintenance job runs that returned an error")),
			[]string{"job"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "refundly",
				Subsystem: "job",
				Name:      "run_duration_seconds",
				Help:      "Maintenance job run duration in seconds",
				// Sweeps publish in milliseconds; retention deletes can take minutes.
				Buckets: []float64{0.01, 0.05, 0.25, 1, 5, 15, 60, 300},
			},
			[]string{"job"},
		),
		items: f.NewCounterVec(
			prometheus.CounterOpts(opts("items_total", "Events republished or deleted by maintenance jobs")),
			[]string{"job"},
		),
		scheduled: f.NewGaugeVec(
			prometheus.GaugeOpts(opts("scheduled", "1 while the job is scheduled")),
			[]string{"job"},
		),
		lastRunSec: f.NewGaugeVec(
			prometheus.GaugeOpts(opts("last_run_timestamp_seconds", "Unix time of the last completed run")),
			[]string{"job"},
		),
	}
}

func (m *PrometheusMetrics) RecordReconcile(controller string, itemsProcessed int, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.runs.WithLabelValues(controller, result).Inc()
	m.duration.WithLabelValues(controller).Observe(duration.Seconds())
	if itemsProcessed > 0 {
		m.items.WithLabelValues(controller).Add(float64(itemsProcessed))
	}
}

func (m *PrometheusMetrics) SetControllerRunning(controller string, running bool) {
	v := 0.0
	if running {
		v = 1
	}
	m.scheduled.WithLabelValues(controller).Set(v)
}

func (m *PrometheusMetrics) IncrementReconcileErrors(controller string) {
	m.failures.WithLabelValues(controller).Inc()
}

func (m *PrometheusMetrics) SetLastReconcileTime(controller string, t time.Time) {
	m.lastRunSec.WithLabelValues(controller).Set(float64(t.Unix()))
}
