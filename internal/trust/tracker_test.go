package trust

import (
	"sort"
	"testing"
)

func TestDirtyTracker(t *testing.T) {
	tracker := NewDirtyTracker()

	if tracker.DirtyCount() != 0 {
		t.Errorf("new tracker DirtyCount() = %d, want 0", tracker.DirtyCount())
	}

	tracker.MarkDirty("op-1")
	tracker.MarkDirty("op-2")
	tracker.MarkDirty("op-1") // re-marking is not a second entry

	if tracker.DirtyCount() != 2 {
		t.Errorf("DirtyCount() = %d, want 2", tracker.DirtyCount())
	}
	if !tracker.IsDirty("op-1") {
		t.Error("IsDirty(op-1) = false, want true")
	}
	if tracker.IsDirty("op-3") {
		t.Error("IsDirty(op-3) = true, want false")
	}

	ids := tracker.DirtyOperators()
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "op-1" || ids[1] != "op-2" {
		t.Errorf("DirtyOperators() = %v, want [op-1 op-2]", ids)
	}

	tracker.ClearDirty("op-1")
	if tracker.IsDirty("op-1") {
		t.Error("IsDirty(op-1) = true after ClearDirty")
	}
	if tracker.DirtyCount() != 1 {
		t.Errorf("DirtyCount() = %d, want 1", tracker.DirtyCount())
	}

	// Clearing an unknown ID is a no-op.
	tracker.ClearDirty("op-99")
	if tracker.DirtyCount() != 1 {
		t.Errorf("DirtyCount() = %d, want 1", tracker.DirtyCount())
	}
}

func TestDirtyTrackerReturnsCopy(t *testing.T) {
	tracker := NewDirtyTracker()
	tracker.MarkDirty("op-1")

	ids := tracker.DirtyOperators()
	ids[0] = "mutated"

	if !tracker.IsDirty("op-1") {
		t.Error("mutating the returned slice must not affect the tracker")
	}
}
