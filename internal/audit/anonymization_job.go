package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// IPAnonymizer is the repository capability the anonymization job needs.
// *InMemoryRepository satisfies it; a Postgres-backed repository would run
// the equivalent UPDATE in batches.
type IPAnonymizer interface {
	// AnonymizeIPsBefore truncates IPs on up to limit entries created
	// before cutoff. Returns the number of entries rewritten.
	AnonymizeIPsBefore(cutoff time.Time, limit int) (int, error)

	// CountUnanonymizedIPs returns how many entries created before cutoff
	// still carry a full IP address.
	CountUnanonymizedIPs(cutoff time.Time) (int, error)
}

// JobMetrics provides centralized background job metrics tracking.
type JobMetrics interface {
	IncJobsTotal(jobType, status string)
	ObserveJobDuration(jobType string, seconds float64)
	IncJobErrors(jobType, errorType string)
}

// AnonymizationJobConfig configures the IP anonymization job.
type AnonymizationJobConfig struct {
	// Repository holding the audit log entries to anonymize.
	Repository IPAnonymizer
	// Logger for job activity.
	Logger *slog.Logger
	// BatchSize bounds how many entries a single pass rewrites at once.
	BatchSize int
	// DryRun reports eligible entries without rewriting them.
	DryRun bool
	// Interval is the duration between anonymization cycles.
	Interval time.Duration
	// JobMetrics for centralized background job tracking.
	JobMetrics JobMetrics
}

// DefaultAnonymizationInterval is the default interval between cycles.
// IP retention is measured in days, so a daily sweep is plenty.
const DefaultAnonymizationInterval = 24 * time.Hour

// DefaultAnonymizationBatchSize bounds entries rewritten per batch.
const DefaultAnonymizationBatchSize = 100

// jobTypeIPAnonymization labels this job in centralized job metrics.
const jobTypeIPAnonymization = "ip_anonymization"

// AnonymizationJob periodically truncates IP addresses on audit log entries
// older than the retention cutoff, per privacy requirements. Entries keep
// their hash chain intact because the IP is not part of the chained payload.
type AnonymizationJob struct {
	config AnonymizationJobConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewAnonymizationJob creates a new IP anonymization job.
func NewAnonymizationJob(config AnonymizationJobConfig) *AnonymizationJob {
	if config.BatchSize == 0 {
		config.BatchSize = DefaultAnonymizationBatchSize
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Interval == 0 {
		config.Interval = DefaultAnonymizationInterval
	}

	return &AnonymizationJob{config: config}
}

// Start begins the periodic anonymization job.
// Returns immediately; the job runs in a background goroutine.
func (j *AnonymizationJob) Start(ctx context.Context) error {
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

// Stop signals the anonymization job to stop and waits for it to finish.
func (j *AnonymizationJob) Stop() {
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
func (j *AnonymizationJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func (j *AnonymizationJob) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.config.Logger.Info("ip anonymization job stopping due to context cancellation")
			return
		case <-j.stopCh:
			j.config.Logger.Info("ip anonymization job stopping due to stop signal")
			return
		case <-ticker.C:
			if _, err := j.Run(ctx); err != nil {
				j.config.Logger.Error("ip anonymization cycle failed", "error", err)
			}
		}
	}
}

// Run executes one anonymization pass over all eligible entries, rewriting
// in batches. Returns the number of entries anonymized. In dry-run mode it
// only reports how many entries a real pass would touch.
func (j *AnonymizationJob) Run(ctx context.Context) (int, error) {
	cutoff := IPAnonymizationCutoff()
	startTime := time.Now()

	if j.config.DryRun {
		eligible, err := j.config.Repository.CountUnanonymizedIPs(cutoff)
		if err != nil {
			j.recordCycle(startTime, "failure")
			return 0, err
		}
		j.config.Logger.Info("ip anonymization dry run",
			"cutoff_date", cutoff,
			"eligible", eligible)
		j.recordCycle(startTime, "success")
		return eligible, nil
	}

	total := 0
	for {
		select {
		case <-ctx.Done():
			j.recordCycle(startTime, "failure")
			return total, ctx.Err()
		default:
		}

		n, err := j.config.Repository.AnonymizeIPsBefore(cutoff, j.config.BatchSize)
		if err != nil {
			if j.config.JobMetrics != nil {
				j.config.JobMetrics.IncJobErrors(jobTypeIPAnonymization, "anonymize_error")
			}
			j.recordCycle(startTime, "failure")
			return total, err
		}
		total += n
		if n < j.config.BatchSize {
			break
		}
	}

	if total > 0 {
		j.config.Logger.Info("ip anonymization completed",
			"cutoff_date", cutoff,
			"entries_anonymized", total)
	}
	j.recordCycle(startTime, "success")
	return total, nil
}

func (j *AnonymizationJob) recordCycle(startTime time.Time, status string) {
	if j.config.JobMetrics == nil {
		return
	}
	j.config.JobMetrics.IncJobsTotal(jobTypeIPAnonymization, status)
	j.config.JobMetrics.ObserveJobDuration(jobTypeIPAnonymization, time.Since(startTime).Seconds())
}
