// Package history provides the append-only score snapshot ledger used for
// audit and trend queries over computed trust scores.
package history

import (
	"errors"
	"time"
)

// Subject types for score snapshots.
const (
	SubjectOperator = "operator"
	SubjectListing  = "listing"
)

var (
	// ErrInvalidSubjectType is returned when a snapshot has an unknown subject type.
	ErrInvalidSubjectType = errors.New("subject type must be operator or listing")
	// ErrEmptySubjectID is returned when a snapshot has no subject ID.
	ErrEmptySubjectID = errors.New("subject ID cannot be empty")
)

// Snapshot is an immutable record of a computed score at a point in time.
// Snapshots are created, never updated or deleted.
type Snapshot struct {
	ID              string             `json:"id"`
	SubjectID       string             `json:"subject_id"`
	SubjectType     string             `json:"subject_type"`
	Score           int                `json:"score"`
	FactorBreakdown map[string]float64 `json:"factor_breakdown,omitempty"`
	ComputedAt      time.Time          `json:"computed_at"`
}

// Validate checks the snapshot's required fields.
func (s *Snapshot) Validate() error {
	if s.SubjectID == "" {
		return ErrEmptySubjectID
	}
	if s.SubjectType != SubjectOperator && s.SubjectType != SubjectListing {
		return ErrInvalidSubjectType
	}
	return nil
}
