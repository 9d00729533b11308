package trust

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsRegister(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()

	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// Registering the same collectors twice must fail.
	if err := m.Register(reg); err == nil {
		t.Error("expected duplicate registration error")
	}
}

func TestMetricsOperations(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatal(err)
	}

	// Exercise every recording path; none should panic.
	m.IncRecomputeTotal()
	m.IncRecomputeErrors()
	m.ObserveRecomputeDuration(0.02)
	m.IncSnapshotWriteErrors()
	m.SetLastReconcileTimestamp(1700000000)
	m.SetLastReconcileCount(12)
	m.SetCorrectionRecordsUpdated(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) != len(m.Collectors()) {
		t.Errorf("gathered %d metric families, want %d", len(families), len(m.Collectors()))
	}
}
