package trust

import (
	"sync"
	"time"
)

// DirtyTracker tracks which operators have pending changes that require
// trust score recomputation. The event path recomputes synchronously; the
// tracker backs the periodic reconcile job that re-converges scores after
// lost updates. Thread-safe via RWMutex.
type DirtyTracker struct {
	mu         sync.RWMutex
	dirtyFlags map[string]time.Time // operatorID -> time marked dirty
}

// NewDirtyTracker creates a new DirtyTracker instance.
func NewDirtyTracker() *DirtyTracker {
	return &DirtyTracker{
		dirtyFlags: make(map[string]time.Time),
	}
}

// MarkDirty marks an operator as needing trust score recomputation.
func (t *DirtyTracker) MarkDirty(operatorID string) {
	t.mu.Lock()
	t.dirtyFlags[operatorID] = time.Now()
	t.mu.Unlock()
}

// ClearDirty removes the dirty flag for an operator after recomputation.
func (t *DirtyTracker) ClearDirty(operatorID string) {
	t.mu.Lock()
	delete(t.dirtyFlags, operatorID)
	t.mu.Unlock()
}

// DirtyOperators returns the operator IDs currently marked dirty.
// Returns a copy to avoid external modification.
func (t *DirtyTracker) DirtyOperators() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.dirtyFlags))
	for id := range t.dirtyFlags {
		ids = append(ids, id)
	}
	return ids
}

// IsDirty checks if a specific operator is marked as dirty.
func (t *DirtyTracker) IsDirty(operatorID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, exists := t.dirtyFlags[operatorID]
	return exists
}

// DirtyCount returns the number of operators marked as dirty.
func (t *DirtyTracker) DirtyCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.dirtyFlags)
}
