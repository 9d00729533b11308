// Package ranking provides the composite discovery ranking computation
// with calibration support for listing search.
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	weights, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		log.Warn("using default weights", "error", err)
//	}
//
//	// Score and order a pre-filtered candidate set
//	candidates := []ranking.Candidate{
//		{Listing: l, OwnerTrustScore: owner.TrustScore},
//	}
//	results := ranking.Rank(candidates, time.Now().UTC(), weights)
//
//	// Page AFTER the full sort
//	page := ranking.Page(results, skip, limit)
//
// Component Functions:
//
// All component functions return values in the [0, 1] range and are
// composable. TrustNorm, RecencyWeight, EngagementWeight and the boost
// weight from the boost package are combined by CompositeScore under the
// calibrated weights.
//
// Calibration:
//
// The calibration system allows deploy-time tuning of ranking weights via
// JSON configuration files loaded at startup. This enables A/B testing and
// optimization without code changes (but requires a redeploy or restart to
// pick up new configuration). The shipped defaults are the production
// contract: 0.45 trust, 0.20 recency, 0.20 boost, 0.15 engagement over a
// 90-day recency window.
package ranking
