package listener

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsListener is a StatusListener that exports build progress as
// Prometheus metrics. It is subscribed alongside any other listener (the
// CLI's table renderer, for instance) and never interacts with it — both
// observe the same event stream independently, demonstrating the "thin
// observer interface" contract.
type MetricsListener struct {
	jobsTotal  *prometheus.CounterVec
	activeJobs prometheus.Gauge
	duration   prometheus.Histogram

	start time.Time
}

// NewMetricsListener registers its metrics on reg and returns a ready
// MetricsListener. Call ObserveBuildStart/ObserveBuildDone around a build to
// populate bygg_build_duration_seconds.
func NewMetricsListener(reg *prometheus.Registry) *MetricsListener {
	m := &MetricsListener{
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bygg_jobs_total",
			Help: "Count of jobs reaching each terminal or running status.",
		}, []string{"status"}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bygg_active_jobs",
			Help: "Number of jobs currently running.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bygg_build_duration_seconds",
			Help:    "Wall-clock duration of a build, observed at shutdown.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.jobsTotal, m.activeJobs, m.duration)
	return m
}

// ObserveBuildStart marks the beginning of a build for duration tracking.
func (m *MetricsListener) ObserveBuildStart() {
	m.start = time.Now()
}

// ObserveBuildDone records the elapsed time since ObserveBuildStart.
func (m *MetricsListener) ObserveBuildDone() {
	if m.start.IsZero() {
		return
	}
	m.duration.Observe(time.Since(m.start).Seconds())
}

func (m *MetricsListener) OnJobStatus(event JobEvent) {
	m.jobsTotal.WithLabelValues(string(event.Status)).Inc()
	switch event.Status {
	case StatusRunning:
		m.activeJobs.Inc()
	case StatusFinished, StatusFailed:
		m.activeJobs.Dec()
	}
	// StatusSkipped (command-less jobs) and StatusStopped (backlog jobs) are
	// reported without a preceding StatusRunning, so they must not decrement
	// activeJobs.
}

func (m *MetricsListener) OnRunnerStatus(string) {}

var _ StatusListener = (*MetricsListener)(nil)
