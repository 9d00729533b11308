package ranking

import (
	"time"

	"github.com/veridex/listrank/internal/normalize"
)

// TrustNorm normalizes an operator trust score from [0, 100] onto [0, 1].
func TrustNorm(trustScore int) float64 {
	return normalize.Clamp01(float64(trustScore) / 100.0)
}

// RecencyWeight computes a linear activity decay score normalized to [0, 1].
// A listing active right now scores 1.0; the score decays linearly to 0 at
// windowDays of inactivity and floors there.
//
// Formula: max(0, 1 - daysSinceActivity / windowDays)
func RecencyWeight(lastActivityAt, now time.Time, windowDays float64) float64 {
	if windowDays <= 0 {
		return 1.0 // No decay window, everything is equally recent
	}

	sinceDays := now.Sub(lastActivityAt).Hours() / 24.0
	if sinceDays <= 0 {
		return 1.0
	}

	return normalize.Clamp01(1.0 - sinceDays/windowDays)
}

// EngagementWeight computes the engagement blend normalized to [0, 1].
// Each counter is log-saturated against its cap so early engagement moves
// the score far more than marginal engagement near the cap.
//
// Formula: favW·capLog(favorites, favCap) + viewW·capLog(views, viewCap) + leadW·capLog(leads, leadCap)
func EngagementWeight(favorites, views, leads int64, w EngagementWeights) float64 {
	return w.Favorites*normalize.CapLog(float64(favorites), w.FavoritesCap) +
		w.Views*normalize.CapLog(float64(views), w.ViewsCap) +
		w.Leads*normalize.CapLog(float64(leads), w.LeadsCap)
}

// Params holds the normalized component scores for one listing.
type Params struct {
	Trust      float64 // Normalized owner trust [0, 1]
	Recency    float64 // Activity recency [0, 1]
	Boost      float64 // Active boost weight [0, 1]
	Engagement float64 // Engagement blend [0, 1]
}

// CompositeScore computes the final composite ranking score for a listing.
// Uses the calibrated weights to combine trust, recency, boost, and
// engagement components.
//
// Default formula: score = (trust * 0.45) + (recency * 0.20) + (boost * 0.20) + (engagement * 0.15)
//
// Returns a score in [0, 1] as long as the weights sum to at most 1 and
// every component is in [0, 1].
func CompositeScore(params Params, weights *Weights) float64 {
	if weights == nil {
		weights = DefaultWeights()
	}

	return (params.Trust * weights.Composite.Trust) +
		(params.Recency * weights.Composite.Recency) +
		(params.Boost * weights.Composite.Boost) +
		(params.Engagement * weights.Composite.Engagement)
}
