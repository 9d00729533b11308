package ranking

import (
	"sort"
	"time"

	"github.com/veridex/listrank/internal/boost"
	"github.com/veridex/listrank/internal/listing"
)

// Candidate pairs a listing with its owner's current trust score. The
// candidate set is pre-filtered by the caller (published/eligible only);
// the engine never touches storage.
type Candidate struct {
	Listing         *listing.Listing
	OwnerTrustScore int
}

// Breakdown carries the normalized component scores behind a ranking score.
type Breakdown struct {
	Trust      float64 `json:"trust"`
	Recency    float64 `json:"recency"`
	Boost      float64 `json:"boost"`
	Engagement float64 `json:"engagement"`
}

// Result is the ephemeral per-query ranking outcome for one listing. It is
// created fresh per query and never persisted.
type Result struct {
	Candidate
	ListingID string    `json:"listing_id"`
	Score     float64   `json:"ranking_score"`
	Breakdown Breakdown `json:"breakdown"`
}

// Rank scores every candidate and returns the results in descending rank
// order. Ordering is fully deterministic: featured listings pin to the top,
// then ranking score descending, ties broken by raw owner trust descending,
// then creation time descending, then listing ID.
func Rank(candidates []Candidate, now time.Time, weights *Weights) []Result {
	if weights == nil {
		weights = DefaultWeights()
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, score(c, now, weights))
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Listing.IsFeatured != b.Listing.IsFeatured {
			return a.Listing.IsFeatured
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.OwnerTrustScore != b.OwnerTrustScore {
			return a.OwnerTrustScore > b.OwnerTrustScore
		}
		if !a.Listing.CreatedAt.Equal(b.Listing.CreatedAt) {
			return a.Listing.CreatedAt.After(b.Listing.CreatedAt)
		}
		return a.ListingID < b.ListingID
	})

	return results
}

// score computes one candidate's composite score with its breakdown.
func score(c Candidate, now time.Time, weights *Weights) Result {
	l := c.Listing

	breakdown := Breakdown{
		Trust:      TrustNorm(c.OwnerTrustScore),
		Recency:    RecencyWeight(l.LastActivityAt, now, weights.RecencyWindowDays),
		Boost:      boost.ActiveWeight(l.ActiveBoosts, now),
		Engagement: EngagementWeight(l.FavoritesCount, l.Views, l.LeadsCount, weights.Engagement),
	}

	return Result{
		Candidate: c,
		ListingID: l.ID,
		Score: CompositeScore(Params{
			Trust:      breakdown.Trust,
			Recency:    breakdown.Recency,
			Boost:      breakdown.Boost,
			Engagement: breakdown.Engagement,
		}, weights),
		Breakdown: breakdown,
	}
}

// Page slices an already-sorted result set. Paging always happens after the
// full candidate set is scored and sorted; slicing first would paginate
// incorrectly whenever the candidate set shifts between page requests.
func Page(results []Result, skip, limit int) []Result {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(results) {
		return []Result{}
	}
	end := len(results)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	return results[skip:end]
}

// RankListings scores, sorts, and pages a candidate set in one call.
// Returns the requested page and the total candidate count for pagination
// metadata.
func RankListings(candidates []Candidate, now time.Time, skip, limit int, weights *Weights) ([]Result, int) {
	results := Rank(candidates, now, weights)
	return Page(results, skip, limit), len(results)
}

// SortMode selects the search result ordering. Composite ranking invokes
// the full scoring formula; the other modes sort directly on the requested
// field and bypass scoring entirely.
type SortMode string

const (
	SortComposite SortMode = "composite"
	SortPrice     SortMode = "price"
	SortRecency   SortMode = "recency"
	SortTrust     SortMode = "trust"
)

// ValidSortMode reports whether mode names a supported sort order.
func ValidSortMode(mode SortMode) bool {
	switch mode {
	case SortComposite, SortPrice, SortRecency, SortTrust:
		return true
	}
	return false
}

// SortCandidates orders a candidate set by a direct field sort for the
// non-composite modes. Price sorts ascending (cheapest first); recency sorts
// by last activity descending; trust sorts by raw owner trust descending.
// Ties fall through to creation time descending, then listing ID.
func SortCandidates(candidates []Candidate, mode SortMode) []Candidate {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)

	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		switch mode {
		case SortPrice:
			if a.Listing.Price != b.Listing.Price {
				return a.Listing.Price < b.Listing.Price
			}
		case SortRecency:
			if !a.Listing.LastActivityAt.Equal(b.Listing.LastActivityAt) {
				return a.Listing.LastActivityAt.After(b.Listing.LastActivityAt)
			}
		case SortTrust:
			if a.OwnerTrustScore != b.OwnerTrustScore {
				return a.OwnerTrustScore > b.OwnerTrustScore
			}
		}
		if !a.Listing.CreatedAt.Equal(b.Listing.CreatedAt) {
			return a.Listing.CreatedAt.After(b.Listing.CreatedAt)
		}
		return a.Listing.ID < b.Listing.ID
	})

	return sorted
}
