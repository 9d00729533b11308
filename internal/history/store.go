package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists score snapshots. Implementations are append-only: Append
// never overwrites and nothing ever deletes.
type Store interface {
	// Append stores a new snapshot. The snapshot's ID and ComputedAt are
	// assigned when empty/zero. Returns the stored snapshot.
	Append(ctx context.Context, snap Snapshot) (*Snapshot, error)

	// QueryWindow returns snapshots for a subject whose ComputedAt falls
	// within the last windowDays days before now, newest first.
	// windowDays <= 0 means no time bound.
	QueryWindow(ctx context.Context, subjectID string, windowDays int, now time.Time) ([]Snapshot, error)
}

// InMemoryStore is an in-memory implementation of Store.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots []Snapshot
}

// NewInMemoryStore creates a new in-memory snapshot store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Append stores a new snapshot.
func (s *InMemoryStore) Append(ctx context.Context, snap Snapshot) (*Snapshot, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.ComputedAt.IsZero() {
		snap.ComputedAt = time.Now().UTC()
	}
	snap.FactorBreakdown = copyBreakdown(snap.FactorBreakdown)

	s.mu.Lock()
	s.snapshots = append(s.snapshots, snap)
	s.mu.Unlock()

	stored := snap
	stored.FactorBreakdown = copyBreakdown(snap.FactorBreakdown)
	return &stored, nil
}

// QueryWindow returns snapshots for a subject within the window, newest first.
func (s *InMemoryStore) QueryWindow(ctx context.Context, subjectID string, windowDays int, now time.Time) ([]Snapshot, error) {
	var cutoff time.Time
	if windowDays > 0 {
		cutoff = now.AddDate(0, 0, -windowDays)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Snapshot
	// Iterate in reverse insertion order (newest first)
	for i := len(s.snapshots) - 1; i >= 0; i-- {
		snap := s.snapshots[i]
		if snap.SubjectID != subjectID {
			continue
		}
		if windowDays > 0 && snap.ComputedAt.Before(cutoff) {
			continue
		}
		snap.FactorBreakdown = copyBreakdown(snap.FactorBreakdown)
		results = append(results, snap)
	}
	return results, nil
}

// Count returns the total number of stored snapshots (for testing).
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

// copyBreakdown returns a copy to prevent external mutation.
func copyBreakdown(b map[string]float64) map[string]float64 {
	if b == nil {
		return nil
	}
	copied := make(map[string]float64, len(b))
	for k, v := range b {
		copied[k] = v
	}
	return copied
}
