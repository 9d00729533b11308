package jobs

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/veridex/listrank/internal/operator"
	"github.com/veridex/listrank/internal/trust"
)

// TestJobMetricsIntegration verifies that job metrics can be registered
// with Prometheus and are recorded end-to-end by the trust reconcile job.
func TestJobMetricsIntegration(t *testing.T) {
	// Create a new Prometheus registry (isolated from default registry)
	reg := prometheus.NewRegistry()

	m := NewMetrics()
	if err := m.Register(reg); err != nil {
		t.Fatalf("failed to register job metrics: %v", err)
	}

	ops := operator.NewInMemoryRepository()
	if err := ops.Insert(&operator.Operator{
		ID:                "op-1",
		VerificationState: operator.VerificationVerified,
	}); err != nil {
		t.Fatal(err)
	}

	computer := trust.NewComputer(trust.ComputerConfig{Operators: ops})
	tracker := trust.NewDirtyTracker()
	job := trust.NewReconcileJob(trust.ReconcileJobConfig{
		Interval:   time.Hour,
		JobMetrics: m,
	}, tracker, computer)

	tracker.MarkDirty("op-1")
	tracker.MarkDirty("op-missing") // forces an error sample too
	job.ReconcileNow()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	expectedMetrics := map[string]bool{
		MetricJobRunsTotal:      false,
		MetricJobDurationSeconds:   false,
		MetricJobErrorsTotal: false,
	}

	for _, family := range families {
		name := family.GetName()
		if _, ok := expectedMetrics[name]; ok {
			expectedMetrics[name] = true
		}
	}

	for name, found := range expectedMetrics {
		if !found {
			t.Errorf("metric %s not found in gathered metrics", name)
		}
	}
}
