package trust

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricTrustRecomputeTotal         = "trust_recompute_total"
	MetricTrustRecomputeErrors        = "trust_recompute_errors_total"
	MetricTrustRecomputeDuration      = "trust_recompute_duration_seconds"
	MetricTrustSnapshotWriteErrors    = "trust_snapshot_write_errors_total"
	MetricTrustLastReconcileTimestamp = "trust_last_reconcile_timestamp"
	MetricTrustLastReconcileCount     = "trust_last_reconcile_subject_count"
	MetricTrustCorrectionRecords      = "trust_correction_records_updated"
)

// Metrics contains Prometheus metrics for trust score computation.
// All operations are thread-safe.
type Metrics struct {
	recomputeTotal         prometheus.Counter
	recomputeErrors        prometheus.Counter
	recomputeDuration      prometheus.Histogram
	snapshotWriteErrors    prometheus.Counter
	lastReconcileTimestamp prometheus.Gauge
	lastReconcileCount     prometheus.Gauge
	correctionRecords      prometheus.Gauge
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		recomputeTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricTrustRecomputeTotal,
			Help: "Total number of trust score recomputation operations",
		}),
		recomputeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricTrustRecomputeErrors,
			Help: "Total number of trust score recomputation errors",
		}),
		recomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricTrustRecomputeDuration,
			Help:    "Histogram of trust score recomputation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}),
		snapshotWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricTrustSnapshotWriteErrors,
			Help: "Total number of best-effort score snapshot write failures",
		}),
		lastReconcileTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricTrustLastReconcileTimestamp,
			Help: "Unix timestamp of the last trust reconcile cycle",
		}),
		lastReconcileCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricTrustLastReconcileCount,
			Help: "Number of subjects processed in the last trust reconcile cycle",
		}),
		correctionRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricTrustCorrectionRecords,
			Help: "Number of records updated by the last global score correction",
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncRecomputeTotal increments the recompute total counter.
func (m *Metrics) IncRecomputeTotal() {
	m.recomputeTotal.Inc()
}

// IncRecomputeErrors increments the recompute errors counter.
func (m *Metrics) IncRecomputeErrors() {
	m.recomputeErrors.Inc()
}

// ObserveRecomputeDuration records a recompute duration sample.
func (m *Metrics) ObserveRecomputeDuration(seconds float64) {
	m.recomputeDuration.Observe(seconds)
}

// IncSnapshotWriteErrors increments the snapshot write errors counter.
func (m *Metrics) IncSnapshotWriteErrors() {
	m.snapshotWriteErrors.Inc()
}

// SetLastReconcileTimestamp sets the last reconcile timestamp gauge.
func (m *Metrics) SetLastReconcileTimestamp(timestamp float64) {
	m.lastReconcileTimestamp.Set(timestamp)
}

// SetLastReconcileCount sets the last reconcile subject count gauge.
func (m *Metrics) SetLastReconcileCount(count float64) {
	m.lastReconcileCount.Set(count)
}

// SetCorrectionRecordsUpdated sets the correction records gauge.
func (m *Metrics) SetCorrectionRecordsUpdated(count float64) {
	m.correctionRecords.Set(count)
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.recomputeTotal,
		m.recomputeErrors,
		m.recomputeDuration,
		m.snapshotWriteErrors,
		m.lastReconcileTimestamp,
		m.lastReconcileCount,
		m.correctionRecords,
	}
}
