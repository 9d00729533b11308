package trust

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/veridex/listrank/internal/history"
	"github.com/veridex/listrank/internal/listing"
	"github.com/veridex/listrank/internal/normalize"
	"github.com/veridex/listrank/internal/operator"
	"github.com/veridex/listrank/internal/tracing"
)

// EventKind identifies a fact change that may require score recomputation.
type EventKind string

// Fact-change events. Every mutation listed here triggers a synchronous
// recomputation except boost approval, which only changes ranking inputs
// read at query time.
const (
	EventVerificationChanged   EventKind = "verification_changed"
	EventDocumentReviewed      EventKind = "document_reviewed"
	EventFinancialProofChanged EventKind = "financial_proof_changed"
	EventBadgeAwarded          EventKind = "badge_awarded"
	EventRestrictionApplied    EventKind = "restriction_applied"
	EventRestrictionRevoked    EventKind = "restriction_revoked"
	EventListingContentChanged EventKind = "listing_content_changed"
	EventBoostApproved         EventKind = "boost_approved"
)

var (
	// ErrInvalidPercent is returned when a correction percent is outside [0, 100].
	ErrInvalidPercent = errors.New("correction percent must be between 0 and 100")
	// ErrUnknownEvent is returned for an event kind the computer does not handle.
	ErrUnknownEvent = errors.New("unknown event kind")
)

// Event is a discrete recomputation request. Callers pass facts in; they
// never reach into scoring internals.
type Event struct {
	Kind       EventKind `json:"kind"`
	OperatorID string    `json:"operator_id,omitempty"`
	ListingID  string    `json:"listing_id,omitempty"`
}

// BadgeEvaluator is notified after an operator's score changes so badge
// eligibility can be re-evaluated. The computer does not block on or
// propagate evaluator failures.
type BadgeEvaluator interface {
	EvaluateBadges(ctx context.Context, operatorID string, score int)
}

// Notifier is informed of score-affecting events, fire-and-forget.
type Notifier interface {
	ScoreChanged(ctx context.Context, subjectType, subjectID string, oldScore, newScore int)
}

// Computer owns the single responsibility of keeping trust scores current.
// It recomputes on discrete events, persists through the repositories, and
// writes best-effort history snapshots.
type Computer struct {
	operators operator.Repository
	listings  listing.Repository
	snapshots history.Store
	badges    BadgeEvaluator
	notifier  Notifier
	weights   *Weights
	metrics   *Metrics
	logger    *slog.Logger
}

// ComputerConfig configures a Computer. Snapshots, badges, notifier and
// metrics are optional; nil disables them.
type ComputerConfig struct {
	Operators operator.Repository
	Listings  listing.Repository
	Snapshots history.Store
	Badges    BadgeEvaluator
	Notifier  Notifier
	Weights   *Weights
	Metrics   *Metrics
	Logger    *slog.Logger
}

// NewComputer creates a new trust score computer.
func NewComputer(cfg ComputerConfig) *Computer {
	if cfg.Weights == nil {
		cfg.Weights = DefaultWeights()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Computer{
		operators: cfg.Operators,
		listings:  cfg.Listings,
		snapshots: cfg.Snapshots,
		badges:    cfg.Badges,
		notifier:  cfg.Notifier,
		weights:   cfg.Weights,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// Weights returns the factor weights in use.
func (c *Computer) Weights() *Weights {
	return c.weights
}

// HandleEvent processes a fact-change event synchronously. It is called
// within the same logical operation as the state change, before the caller's
// response is returned.
func (c *Computer) HandleEvent(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventBoostApproved:
		// Boosts never alter trust scores, only query-time ranking.
		c.logger.Debug("boost approval ignored by trust computer",
			"listing_id", ev.ListingID)
		return nil
	case EventListingContentChanged:
		_, err := c.RecomputeListing(ctx, ev.ListingID)
		return err
	case EventVerificationChanged, EventDocumentReviewed, EventFinancialProofChanged,
		EventBadgeAwarded, EventRestrictionApplied, EventRestrictionRevoked:
		_, err := c.RecomputeOperator(ctx, ev.OperatorID)
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Kind)
	}
}

// RecomputeOperator recomputes and persists the trust score for a single
// operator, then writes a best-effort snapshot and fires collaborator
// notifications when the score changed.
func (c *Computer) RecomputeOperator(ctx context.Context, operatorID string) (int, error) {
	ctx, endSpan := tracing.StartSpan(ctx, "recompute_operator_score")
	score, err := c.recomputeOperator(ctx, operatorID)
	endSpan(err)
	return score, err
}

func (c *Computer) recomputeOperator(ctx context.Context, operatorID string) (int, error) {
	start := time.Now()

	op, err := c.operators.GetByID(operatorID)
	if err != nil {
		if c.metrics != nil {
			c.metrics.IncRecomputeErrors()
		}
		return 0, fmt.Errorf("failed to load operator %s: %w", operatorID, err)
	}

	now := time.Now().UTC()
	result := ScoreOperator(op, c.weights, now)

	if err := c.operators.PersistScore(operatorID, result.Score); err != nil {
		if c.metrics != nil {
			c.metrics.IncRecomputeErrors()
		}
		return 0, fmt.Errorf("failed to persist score for operator %s: %w", operatorID, err)
	}

	c.appendSnapshot(ctx, history.Snapshot{
		SubjectID:       operatorID,
		SubjectType:     history.SubjectOperator,
		Score:           result.Score,
		FactorBreakdown: result.Breakdown,
		ComputedAt:      now,
	})

	if result.Score != op.TrustScore {
		// Notification only, never awaited for correctness.
		if c.badges != nil {
			c.badges.EvaluateBadges(ctx, operatorID, result.Score)
		}
		if c.notifier != nil {
			c.notifier.ScoreChanged(ctx, history.SubjectOperator, operatorID, op.TrustScore, result.Score)
		}
	}

	if c.metrics != nil {
		c.metrics.IncRecomputeTotal()
		c.metrics.ObserveRecomputeDuration(time.Since(start).Seconds())
	}

	c.logger.Debug("operator trust score recomputed",
		"operator_id", operatorID,
		"old_score", op.TrustScore,
		"new_score", result.Score)

	return result.Score, nil
}

// RecomputeListing recomputes and persists the completeness-derived trust
// contribution for a single listing.
func (c *Computer) RecomputeListing(ctx context.Context, listingID string) (int, error) {
	ctx, endSpan := tracing.StartSpan(ctx, "recompute_listing_score")
	score, err := c.recomputeListing(ctx, listingID)
	endSpan(err)
	return score, err
}

func (c *Computer) recomputeListing(ctx context.Context, listingID string) (int, error) {
	l, err := c.listings.GetByID(listingID)
	if err != nil {
		if c.metrics != nil {
			c.metrics.IncRecomputeErrors()
		}
		return 0, fmt.Errorf("failed to load listing %s: %w", listingID, err)
	}

	score := listing.CompletenessScore(l)

	if err := c.listings.PersistScore(listingID, score); err != nil {
		if c.metrics != nil {
			c.metrics.IncRecomputeErrors()
		}
		return 0, fmt.Errorf("failed to persist score for listing %s: %w", listingID, err)
	}

	c.appendSnapshot(ctx, history.Snapshot{
		SubjectID:   listingID,
		SubjectType: history.SubjectListing,
		Score:       score,
		ComputedAt:  time.Now().UTC(),
	})

	if score != l.TrustScore && c.notifier != nil {
		c.notifier.ScoreChanged(ctx, history.SubjectListing, listingID, l.TrustScore, score)
	}

	c.logger.Debug("listing completeness score recomputed",
		"listing_id", listingID,
		"old_score", l.TrustScore,
		"new_score", score)

	return score, nil
}

// ApplyGlobalCorrection multiplies every operator's current score by
// (1 + percent/100), re-clamps to [0, 100], persists per record, and writes
// one snapshot per touched record. Per-record failures are logged, counted as
// not-updated, and never abort the batch. Returns the number of records
// updated.
func (c *Computer) ApplyGlobalCorrection(ctx context.Context, percent float64) (int, error) {
	if percent < 0 || percent > 100 {
		return 0, fmt.Errorf("%w: got %g", ErrInvalidPercent, percent)
	}

	ops, err := c.operators.List()
	if err != nil {
		return 0, fmt.Errorf("failed to list operators for correction: %w", err)
	}

	factor := 1 + percent/100
	updated := 0
	now := time.Now().UTC()

	for _, op := range ops {
		newScore := int(math.Round(normalize.Clamp(float64(op.TrustScore)*factor, 0, 100)))

		if err := c.operators.PersistScore(op.ID, newScore); err != nil {
			c.logger.Error("failed to apply correction to operator",
				"operator_id", op.ID,
				"error", err)
			if c.metrics != nil {
				c.metrics.IncRecomputeErrors()
			}
			continue
		}

		c.appendSnapshot(ctx, history.Snapshot{
			SubjectID:   op.ID,
			SubjectType: history.SubjectOperator,
			Score:       newScore,
			FactorBreakdown: map[string]float64{
				"correction_percent": percent,
				"previous_score":     float64(op.TrustScore),
			},
			ComputedAt: now,
		})
		updated++
	}

	if c.metrics != nil {
		c.metrics.SetCorrectionRecordsUpdated(float64(updated))
	}

	c.logger.Info("global score correction applied",
		"percent", percent,
		"records_updated", updated,
		"records_total", len(ops))

	return updated, nil
}

// BackfillSnapshots recomputes and snapshots every operator, continuing past
// individual failures. Returns the number of snapshots created.
func (c *Computer) BackfillSnapshots(ctx context.Context) (int, error) {
	ops, err := c.operators.List()
	if err != nil {
		return 0, fmt.Errorf("failed to list operators for backfill: %w", err)
	}

	created := 0
	for _, op := range ops {
		if _, err := c.RecomputeOperator(ctx, op.ID); err != nil {
			c.logger.Error("backfill failed for operator",
				"operator_id", op.ID,
				"error", err)
			continue
		}
		created++
	}

	c.logger.Info("snapshot backfill completed",
		"created", created,
		"failed", len(ops)-created)

	return created, nil
}

// appendSnapshot writes a history snapshot, best-effort. A snapshot write
// failure is logged and swallowed, never propagated as a request error.
func (c *Computer) appendSnapshot(ctx context.Context, snap history.Snapshot) {
	if c.snapshots == nil {
		return
	}
	if _, err := c.snapshots.Append(ctx, snap); err != nil {
		if c.metrics != nil {
			c.metrics.IncSnapshotWriteErrors()
		}
		c.logger.Warn("failed to write score snapshot",
			"subject_id", snap.SubjectID,
			"subject_type", snap.SubjectType,
			"error", err)
	}
}
