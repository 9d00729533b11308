package trust

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// JobMetrics provides centralized background job metrics tracking.
// This interface allows the job to report to the shared job metrics system.
type JobMetrics interface {
	IncJobsTotal(jobType, status string)
	ObserveJobDuration(jobType string, seconds float64)
	IncJobErrors(jobType, errorType string)
}

// ReconcileJobConfig configures the trust score reconcile job.
type ReconcileJobConfig struct {
	// Interval is the duration between reconcile cycles.
	Interval time.Duration
	// Logger for job activity.
	Logger *slog.Logger
	// Metrics for performance tracking.
	Metrics *Metrics
	// JobMetrics for centralized background job tracking.
	JobMetrics JobMetrics
	// Timeout for each reconcile cycle.
	Timeout time.Duration
}

// DefaultReconcileInterval is the default interval between reconcile cycles.
const DefaultReconcileInterval = 30 * time.Second

// DefaultReconcileTimeout is the default timeout for a single reconcile cycle.
const DefaultReconcileTimeout = 30 * time.Second

// jobTypeReconcile labels this job in centralized job metrics.
const jobTypeReconcile = "trust_reconcile"

// ReconcileJob periodically recomputes trust scores for dirty operators.
// The synchronous event path already keeps scores current; this job is the
// safety net that re-converges after lost concurrent updates.
type ReconcileJob struct {
	config       ReconcileJobConfig
	dirtyTracker *DirtyTracker
	computer     *Computer

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewReconcileJob creates a new trust score reconcile job.
func NewReconcileJob(config ReconcileJobConfig, dirtyTracker *DirtyTracker, computer *Computer) *ReconcileJob {
	if config.Interval == 0 {
		config.Interval = DefaultReconcileInterval
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultReconcileTimeout
	}

	return &ReconcileJob{
		config:       config,
		dirtyTracker: dirtyTracker,
		computer:     computer,
	}
}

// Start begins the periodic reconcile job.
// Returns immediately; the job runs in a background goroutine.
func (j *ReconcileJob) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	go j.run(ctx)
	return nil
}

// Stop signals the reconcile job to stop and waits for it to finish.
func (j *ReconcileJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	stopCh := j.stopCh
	doneCh := j.doneCh
	j.mu.Unlock()

	close(stopCh)
	<-doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()
}

// IsRunning returns whether the job is currently running.
func (j *ReconcileJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// run is the main loop for the reconcile job.
func (j *ReconcileJob) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.config.Logger.Info("trust reconcile job stopping due to context cancellation")
			return
		case <-j.stopCh:
			j.config.Logger.Info("trust reconcile job stopping due to stop signal")
			return
		case <-ticker.C:
			j.reconcileDirtyOperators(ctx)
		}
	}
}

// reconcileDirtyOperators processes all dirty operators and updates their
// trust scores. Per-operator failures leave the dirty flag set for the next
// cycle and never abort the run.
func (j *ReconcileJob) reconcileDirtyOperators(parentCtx context.Context) {
	dirty := j.dirtyTracker.DirtyOperators()
	if len(dirty) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(parentCtx, j.config.Timeout)
	defer cancel()

	startTime := time.Now()
	total := len(dirty)
	var successCount int

	j.config.Logger.Info("reconciling trust scores", "dirty_count", total)

	for i, operatorID := range dirty {
		select {
		case <-ctx.Done():
			j.config.Logger.Error("trust reconcile timeout exceeded",
				"processed", i,
				"total", total,
				"timeout", j.config.Timeout)
			if j.config.JobMetrics != nil {
				j.config.JobMetrics.IncJobErrors(jobTypeReconcile, "timeout")
			}
			j.finishCycle(startTime, successCount, total)
			return
		default:
		}

		if _, err := j.computer.RecomputeOperator(ctx, operatorID); err != nil {
			j.config.Logger.Error("failed to reconcile trust score",
				"operator_id", operatorID,
				"error", err)
			if j.config.JobMetrics != nil {
				j.config.JobMetrics.IncJobErrors(jobTypeReconcile, "recompute_error")
			}
			continue
		}

		j.dirtyTracker.ClearDirty(operatorID)
		successCount++

		// Log batch progress every 10 operators
		if (i+1)%10 == 0 {
			j.config.Logger.Debug("reconcile progress",
				"processed", i+1,
				"total", total)
		}
	}

	j.finishCycle(startTime, successCount, total)
}

// finishCycle records cycle-level metrics and the completion log entry.
func (j *ReconcileJob) finishCycle(startTime time.Time, successCount, total int) {
	duration := time.Since(startTime).Seconds()

	status := "success"
	if successCount < total {
		status = "failure"
	}

	if j.config.Metrics != nil {
		j.config.Metrics.SetLastReconcileTimestamp(float64(time.Now().Unix()))
		j.config.Metrics.SetLastReconcileCount(float64(successCount))
	}
	if j.config.JobMetrics != nil {
		j.config.JobMetrics.IncJobsTotal(jobTypeReconcile, status)
		j.config.JobMetrics.ObserveJobDuration(jobTypeReconcile, duration)
	}

	j.config.Logger.Info("trust reconcile completed",
		"duration_seconds", duration,
		"operators_processed", successCount,
		"operators_failed", total-successCount)
}

// ReconcileNow immediately reconciles all dirty operators without waiting
// for the ticker. Useful for testing or forcing immediate updates.
func (j *ReconcileJob) ReconcileNow() {
	j.reconcileDirtyOperators(context.Background())
}
