// Package jobmetrics exposes Prometheus collectors for background jobs.
package jobmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// Metrics records background job runs and the residue found by the orphan scan.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	orphans     *prometheus.GaugeVec
}

// NewMetrics registers the job collectors on registerer, or on the default
// registerer when it is nil. Register once per registry.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scholaris_jobs_total",
			Help: "Job executions by task type and status.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scholaris_jobs_failures_total",
			Help: "Failed job executions by task type.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scholaris_job_duration_seconds",
			Help:    "Job execution time by task type.",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scholaris_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run by task type.",
		}, []string{"job"}),
		orphans: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scholaris_orphaned_records",
			Help: "Records left unlinked by partially failed writes, from the last orphan scan.",
		}, []string{"kind"}),
	}
	registerer.MustRegister(m.runs, m.failures, m.duration, m.lastSuccess, m.orphans)
	return m
}

// Tracker times a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	started time.Time
}

// Track starts timing a run of job.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, started: time.Now()}
}

// End records the run outcome and hands err back unchanged, so it can sit in a
// deferred assignment to a named result.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	m := t.metrics
	m.duration.WithLabelValues(t.job).Observe(time.Since(t.started).Seconds())
	if err != nil {
		m.runs.WithLabelValues(t.job, statusFailure).Inc()
		m.failures.WithLabelValues(t.job).Inc()
		return err
	}
	m.runs.WithLabelValues(t.job, statusSuccess).Inc()
	m.lastSuccess.WithLabelValues(t.job).SetToCurrentTime()
	return nil
}

// SetOrphans records the latest orphan count for kind ("profile" or "identity").
func (m *Metrics) SetOrphans(kind string, count int) {
	if m == nil {
		return
	}
	m.orphans.WithLabelValues(kind).Set(float64(count))
}
