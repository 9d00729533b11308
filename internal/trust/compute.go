package trust

import (
	"math"
	"time"

	"github.com/veridex/listrank/internal/normalize"
	"github.com/veridex/listrank/internal/operator"
)

// Factor names used in score breakdowns and snapshot records.
const (
	FactorIdentity     = "identity"
	FactorDocuments    = "documents"
	FactorCompliance   = "compliance"
	FactorFinancial    = "financial"
	FactorBadges       = "badges"
	FactorRestrictions = "restrictions"
)

// Result holds a computed operator trust score with its factor breakdown.
// The breakdown carries the raw (unclamped, unrounded) contribution of each
// factor; restrictions appear as a negative value.
type Result struct {
	Score     int                `json:"score"`
	Breakdown map[string]float64 `json:"breakdown"`
}

// ScoreOperator computes an operator's trust score as a pure function of
// the operator's current fields at the given instant. The same inputs always
// yield the same score; callers recompute from scratch on every trigger so
// there is no incremental drift.
func ScoreOperator(op *operator.Operator, w *Weights, now time.Time) Result {
	if w == nil {
		w = DefaultWeights()
	}

	breakdown := map[string]float64{
		FactorIdentity:     identityContribution(op, w),
		FactorDocuments:    documentContribution(op, w),
		FactorCompliance:   complianceContribution(op, w),
		FactorFinancial:    financialContribution(op, w),
		FactorBadges:       badgeContribution(op, w),
		FactorRestrictions: -restrictionPenalty(op, w, now),
	}

	var sum float64
	for _, v := range breakdown {
		sum += v
	}

	score := int(math.Round(normalize.Clamp(sum, 0, 100)))
	return Result{Score: score, Breakdown: breakdown}
}

func identityContribution(op *operator.Operator, w *Weights) float64 {
	switch op.VerificationState {
	case operator.VerificationVerified:
		return w.IdentityVerified
	case operator.VerificationSubmitted:
		return w.IdentitySubmitted
	default:
		return 0
	}
}

func documentContribution(op *operator.Operator, w *Weights) float64 {
	ratio := normalize.Ratio(float64(op.VerifiedDocumentCount()), float64(op.RequiredDocuments))
	return ratio * w.DocumentsMax
}

func complianceContribution(op *operator.Operator, w *Weights) float64 {
	switch op.ComplianceTier {
	case operator.ComplianceCompliant:
		return w.ComplianceCompliant
	case operator.ComplianceVerified:
		return w.ComplianceVerified
	default:
		return 0
	}
}

func financialContribution(op *operator.Operator, w *Weights) float64 {
	switch op.FinancialProofTier {
	case operator.FinancialBasic:
		return w.FinancialBasic
	case operator.FinancialMedium:
		return w.FinancialMedium
	case operator.FinancialHigh:
		return w.FinancialHigh
	default:
		return 0
	}
}

func badgeContribution(op *operator.Operator, w *Weights) float64 {
	count := len(op.Badges)
	if w.BadgeCap > 0 && count > w.BadgeCap {
		count = w.BadgeCap
	}
	return float64(count) * w.PerBadge
}

// restrictionPenalty totals the penalty for all active restrictions.
// Each restriction costs its type penalty; repeated active restrictions of
// the same type escalate by RepeatEscalation per occurrence beyond the first.
func restrictionPenalty(op *operator.Operator, w *Weights, now time.Time) float64 {
	var penalty float64
	seen := make(map[string]int)

	for _, r := range op.ActiveRestrictions(now) {
		typePenalty, ok := w.RestrictionPenalties[r.Type]
		if !ok {
			typePenalty = w.RestrictionDefault
		}
		penalty += typePenalty + float64(seen[r.Type])*w.RepeatEscalation
		seen[r.Type]++
	}
	return penalty
}
