package trust

import (
	"fmt"
	"time"

	"github.com/veridex/listrank/internal/operator"
)

// Suggestion describes an improvement an operator can make to raise their
// trust score, with the points still available from that factor.
type Suggestion struct {
	Factor          string  `json:"factor"`
	Message         string  `json:"message"`
	PointsAvailable float64 `json:"points_available"`
}

// Suggestions derives improvement hints by inspecting which factor
// contributions sit below their maximum. Factors already at their ceiling
// produce no suggestion.
func Suggestions(op *operator.Operator, w *Weights, now time.Time) []Suggestion {
	if w == nil {
		w = DefaultWeights()
	}

	var suggestions []Suggestion

	if gap := w.IdentityVerified - identityContribution(op, w); gap > 0 {
		msg := "verify your identity"
		if op.VerificationState == operator.VerificationSubmitted {
			msg = "complete identity verification (review in progress)"
		}
		suggestions = append(suggestions, Suggestion{
			Factor:          FactorIdentity,
			Message:         fmt.Sprintf("%s: +%g pts available", msg, gap),
			PointsAvailable: gap,
		})
	}

	if gap := w.DocumentsMax - documentContribution(op, w); gap > 0 {
		suggestions = append(suggestions, Suggestion{
			Factor:          FactorDocuments,
			Message:         fmt.Sprintf("submit and verify all required documents: +%.3g pts available", gap),
			PointsAvailable: gap,
		})
	}

	if gap := w.ComplianceVerified - complianceContribution(op, w); gap > 0 {
		suggestions = append(suggestions, Suggestion{
			Factor:          FactorCompliance,
			Message:         fmt.Sprintf("advance your compliance tier: +%g pts available", gap),
			PointsAvailable: gap,
		})
	}

	if gap := w.FinancialHigh - financialContribution(op, w); gap > 0 {
		suggestions = append(suggestions, Suggestion{
			Factor:          FactorFinancial,
			Message:         fmt.Sprintf("provide stronger financial proof: +%g pts available", gap),
			PointsAvailable: gap,
		})
	}

	badgeMax := float64(w.BadgeCap) * w.PerBadge
	if gap := badgeMax - badgeContribution(op, w); gap > 0 {
		suggestions = append(suggestions, Suggestion{
			Factor:          FactorBadges,
			Message:         fmt.Sprintf("earn marketplace badges: +%g pts available", gap),
			PointsAvailable: gap,
		})
	}

	if penalty := restrictionPenalty(op, w, now); penalty > 0 {
		suggestions = append(suggestions, Suggestion{
			Factor:          FactorRestrictions,
			Message:         fmt.Sprintf("resolve active restrictions: +%g pts available", penalty),
			PointsAvailable: penalty,
		})
	}

	return suggestions
}
