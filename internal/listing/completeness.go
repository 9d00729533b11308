package listing

import (
	"math"

	"github.com/veridex/listrank/internal/normalize"
)

// Completeness scoring point values. A minimally populated listing starts at
// the base score; media presence and verified documents earn the rest.
const (
	CompletenessBase = 20

	CoverImagePoints = 15

	PhotoPoints    = 3
	PhotoPointsCap = 15

	RenderingPoints    = 5
	RenderingPointsCap = 10

	DocumentPointsMax = 40
)

// CompletenessScore computes the listing-level trust contribution from media
// completeness and document verification, clamped to [0, 100] and rounded to
// the nearest integer. It is a pure function of the listing's current fields
// and is recomputed whenever the media or document set changes.
func CompletenessScore(l *Listing) int {
	score := float64(CompletenessBase)

	if l.Media.HasCoverImage {
		score += CoverImagePoints
	}

	photoPts := float64(l.Media.PhotoCount * PhotoPoints)
	if photoPts < 0 {
		photoPts = 0
	}
	score += math.Min(photoPts, PhotoPointsCap)

	renderPts := float64(l.Media.RenderingCount * RenderingPoints)
	if renderPts < 0 {
		renderPts = 0
	}
	score += math.Min(renderPts, RenderingPointsCap)

	docRatio := normalize.Ratio(float64(l.VerifiedDocumentCount()), float64(l.RequiredDocuments))
	score += docRatio * DocumentPointsMax

	return int(math.Round(normalize.Clamp(score, 0, 100)))
}
