// Package jobs provides metrics for background job operations.
package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric family names carry the service prefix so dashboards can tell these
// apart from other services' job metrics on a shared Prometheus.
const (
	MetricJobRunsTotal       = "listrank_job_runs_total"
	MetricJobDurationSeconds = "listrank_job_duration_seconds"
	MetricJobErrorsTotal     = "listrank_job_errors_total"
)

// Job type label values for the background jobs this service runs.
const (
	JobTypeTrustReconcile  = "trust_reconcile"
	JobTypeScoreBackfill   = "score_backfill"
	JobTypeScoreCorrection = "score_correction"
	JobTypeIPAnonymization = "ip_anonymization"
)

// Completion status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics holds the Prometheus collectors for background job runs. Safe
// for concurrent use. It satisfies both trust.JobMetrics and
// audit.JobMetrics.
type Metrics struct {
	jobsTotal    *prometheus.CounterVec
	jobsDuration *prometheus.HistogramVec
	jobErrors    *prometheus.CounterVec
}

// NewMetrics builds the collectors without registering them; call Register
// with the server's registry.
func NewMetrics() *Metrics {
	return &Metrics{
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricJobRunsTotal,
				Help: "Completed background job runs by type and status",
			},
			[]string{"job_type", "status"},
		),
		jobsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: MetricJobDurationSeconds,
				Help: "Background job run duration in seconds by job type",
				// Reconcile sweeps finish in well under a second in-memory
				// but a full backfill against Postgres can run for minutes.
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 120.0},
			},
			[]string{"job_type"},
		),
		jobErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricJobErrorsTotal,
				Help: "Background job errors by job type and error type",
			},
			[]string{"job_type", "error_type"},
		),
	}
}

// Collectors returns every collector this Metrics instance owns.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.jobsTotal,
		m.jobsDuration,
		m.jobErrors,
	}
}

// Register registers all collectors with reg, stopping at the first failure.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncJobsTotal counts one completed run of jobType with the given status
// (StatusSuccess or StatusFailure).
func (m *Metrics) IncJobsTotal(jobType, status string) {
	m.jobsTotal.WithLabelValues(jobType, status).Inc()
}

// ObserveJobDuration records how long one run of jobType took.
func (m *Metrics) ObserveJobDuration(jobType string, seconds float64) {
	m.jobsDuration.WithLabelValues(jobType).Observe(seconds)
}

// IncJobErrors counts an error during a run, broken down by error type
// ("timeout", "recompute_error").
func (m *Metrics) IncJobErrors(jobType, errorType string) {
	m.jobErrors.WithLabelValues(jobType, errorType).Inc()
}
