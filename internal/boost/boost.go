// Package boost provides paid-promotion models and the weight resolver that
// folds a listing's active boosts into a single capped ranking weight.
package boost

import "time"

// Boost tiers ordered by purchase price.
const (
	TierBasic      = "basic"
	TierCustom     = "custom"
	TierPremium    = "premium"
	TierEnterprise = "enterprise"
)

// Boost statuses.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
)

// TierWeight maps a boost tier to its ranking weight contribution.
// Unknown tiers fall back to DefaultTierWeight.
var TierWeight = map[string]float64{
	TierEnterprise: 1.0,
	TierPremium:    0.7,
	TierCustom:     0.55,
	TierBasic:      0.45,
}

// DefaultTierWeight is used when a tier is not found in the TierWeight map.
const DefaultTierWeight = 0.3

// Boost represents a paid, time-bounded promotion attached to a listing.
// Boosts only influence ranking weight at query time; they never touch
// trust scores.
type Boost struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	Tier      string    `json:"tier"`
	Status    string    `json:"status"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// IsActiveAt reports whether the boost counts toward ranking weight at the
// given instant. Only status=active boosts within [StartDate, EndDate] count.
func (b *Boost) IsActiveAt(now time.Time) bool {
	if b.Status != StatusActive {
		return false
	}
	if now.Before(b.StartDate) || now.After(b.EndDate) {
		return false
	}
	return true
}

// Weight returns the tier weight for this boost.
func (b *Boost) Weight() float64 {
	if w, ok := TierWeight[b.Tier]; ok {
		return w
	}
	return DefaultTierWeight
}

// ActiveWeight resolves the combined boost weight for a set of boosts at the
// given instant. Inactive and out-of-window boosts are ignored; active tier
// weights are summed and capped at 1.0, so stacked boosts cannot push a
// listing past the ceiling.
func ActiveWeight(boosts []Boost, now time.Time) float64 {
	var sum float64
	for i := range boosts {
		if boosts[i].IsActiveAt(now) {
			sum += boosts[i].Weight()
		}
	}
	if sum > 1 {
		return 1
	}
	return sum
}
