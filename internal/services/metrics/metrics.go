package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cutwatch-worker-go/internal/models"
)

// Metrics holds all worker metrics
type Metrics struct {
	// Run counters
	RunsStarted   atomic.Uint64
	RunsCompleted atomic.Uint64
	RunsFailed    atomic.Uint64
	RunsActive    atomic.Int64

	// Scan counters
	FramesScanned atomic.Uint64
	Detections    atomic.Uint64

	notifications *prometheus.CounterVec
	runDuration   prometheus.Histogram

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cutwatch_notifications_total",
			Help: "Notifications attempted, by channel, kind and result",
		}, []string{"channel", "kind", "result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cutwatch_run_duration_seconds",
			Help:    "Wall time of analysis runs",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}

	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	gauges := []struct {
		name, help string
		value      func() float64
	}{
		{"cutwatch_runs_started_total", "Total analysis runs started", func() float64 { return float64(m.RunsStarted.Load()) }},
		{"cutwatch_runs_completed_total", "Total analysis runs completed", func() float64 { return float64(m.RunsCompleted.Load()) }},
		{"cutwatch_runs_failed_total", "Total analysis runs failed", func() float64 { return float64(m.RunsFailed.Load()) }},
		{"cutwatch_runs_active", "Analysis runs in progress", func() float64 { return float64(m.RunsActive.Load()) }},
		{"cutwatch_frames_scanned_total", "Total frames passed through the detector", func() float64 { return float64(m.FramesScanned.Load()) }},
		{"cutwatch_detections_total", "Total detections recorded", func() float64 { return float64(m.Detections.Load()) }},
	}
	for _, g := range gauges {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: g.name, Help: g.help}, g.value))
	}

	m.registry.MustRegister(m.notifications, m.runDuration)
}

// RunStarted marks a run as in progress
func (m *Metrics) RunStarted() {
	m.RunsStarted.Add(1)
	m.RunsActive.Add(1)
}

// RunFinished records a run's result and scan totals
func (m *Metrics) RunFinished(run *models.VideoRun, err error) {
	m.RunsActive.Add(-1)
	if err != nil {
		m.RunsFailed.Add(1)
	} else {
		m.RunsCompleted.Add(1)
	}
	if run == nil {
		return
	}

	m.FramesScanned.Add(uint64(run.Ledger.FramesScanned))
	m.Detections.Add(uint64(run.Ledger.Len()))
	for _, o := range run.Outcomes {
		result := "sent"
		if !o.Succeeded {
			result = "failed"
		}
		m.notifications.WithLabelValues(o.Channel.String(), string(o.Kind), result).Inc()
	}
	if !run.StartedAt.IsZero() {
		finished := run.FinishedAt
		if finished.IsZero() {
			finished = time.Now()
		}
		m.runDuration.Observe(finished.Sub(run.StartedAt).Seconds())
	}
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
