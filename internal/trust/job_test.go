package trust

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/veridex/listrank/internal/operator"
)

type fakeJobMetrics struct {
	mu        sync.Mutex
	jobsTotal map[string]int // status -> count
	errors    map[string]int // errorType -> count
	durations int
}

func newFakeJobMetrics() *fakeJobMetrics {
	return &fakeJobMetrics{
		jobsTotal: make(map[string]int),
		errors:    make(map[string]int),
	}
}

func (m *fakeJobMetrics) IncJobsTotal(jobType, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobsTotal[status]++
}

func (m *fakeJobMetrics) ObserveJobDuration(jobType string, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations++
}

func (m *fakeJobMetrics) IncJobErrors(jobType, errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[errorType]++
}

func newTestReconcileJob(t *testing.T, jm JobMetrics) (*ReconcileJob, *DirtyTracker, *operator.InMemoryRepository) {
	t.Helper()
	ops := operator.NewInMemoryRepository()
	computer := NewComputer(ComputerConfig{Operators: ops})
	tracker := NewDirtyTracker()
	job := NewReconcileJob(ReconcileJobConfig{
		Interval:   time.Hour, // never ticks during tests; cycles run via ReconcileNow
		JobMetrics: jm,
	}, tracker, computer)
	return job, tracker, ops
}

func TestReconcileJobStartStop(t *testing.T) {
	job, _, _ := newTestReconcileJob(t, nil)

	if job.IsRunning() {
		t.Error("job running before Start")
	}

	if err := job.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !job.IsRunning() {
		t.Error("job not running after Start")
	}

	// Second Start is a no-op.
	if err := job.Start(context.Background()); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	job.Stop()
	if job.IsRunning() {
		t.Error("job still running after Stop")
	}

	// Second Stop is a no-op.
	job.Stop()
}

func TestReconcileNowProcessesDirtyOperators(t *testing.T) {
	metrics := newFakeJobMetrics()
	job, tracker, ops := newTestReconcileJob(t, metrics)

	if err := ops.Insert(&operator.Operator{
		ID:                "op-1",
		VerificationState: operator.VerificationVerified,
	}); err != nil {
		t.Fatal(err)
	}

	tracker.MarkDirty("op-1")
	job.ReconcileNow()

	if tracker.IsDirty("op-1") {
		t.Error("op-1 still dirty after reconcile")
	}

	op, err := ops.GetByID("op-1")
	if err != nil {
		t.Fatal(err)
	}
	if op.TrustScore != 20 {
		t.Errorf("TrustScore = %d, want 20", op.TrustScore)
	}

	if metrics.jobsTotal["success"] != 1 {
		t.Errorf("success cycles = %d, want 1", metrics.jobsTotal["success"])
	}
	if metrics.durations != 1 {
		t.Errorf("duration observations = %d, want 1", metrics.durations)
	}
}

func TestReconcileNowKeepsFailedOperatorsDirty(t *testing.T) {
	metrics := newFakeJobMetrics()
	job, tracker, ops := newTestReconcileJob(t, metrics)

	if err := ops.Insert(&operator.Operator{ID: "op-1"}); err != nil {
		t.Fatal(err)
	}

	tracker.MarkDirty("op-1")
	tracker.MarkDirty("op-ghost") // no such operator, recompute fails

	job.ReconcileNow()

	if tracker.IsDirty("op-1") {
		t.Error("op-1 should be cleared after successful reconcile")
	}
	if !tracker.IsDirty("op-ghost") {
		t.Error("op-ghost should stay dirty for the next cycle")
	}
	if metrics.errors["recompute_error"] != 1 {
		t.Errorf("recompute errors = %d, want 1", metrics.errors["recompute_error"])
	}
	if metrics.jobsTotal["failure"] != 1 {
		t.Errorf("failure cycles = %d, want 1", metrics.jobsTotal["failure"])
	}
}

func TestReconcileNowEmptyTrackerIsQuiet(t *testing.T) {
	metrics := newFakeJobMetrics()
	job, _, _ := newTestReconcileJob(t, metrics)

	job.ReconcileNow()

	// An empty cycle records nothing at all.
	if metrics.jobsTotal["success"] != 0 || metrics.jobsTotal["failure"] != 0 {
		t.Errorf("jobsTotal = %v, want empty", metrics.jobsTotal)
	}
}
