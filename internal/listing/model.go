// Package listing provides models, repository access, and the
// completeness-driven trust contribution for marketplace listings.
package listing

import (
	"errors"
	"time"

	"github.com/veridex/listrank/internal/boost"
)

// Listing statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Document review statuses for listing-level documents.
const (
	DocumentPending  = "pending"
	DocumentVerified = "verified"
	DocumentRejected = "rejected"
	DocumentExpired  = "expired"
)

// ErrListingNotFound is returned when a listing does not exist.
var ErrListingNotFound = errors.New("listing not found")

// Document is a listing-level document (title deed, building permit, etc).
type Document struct {
	Category string `json:"category"`
	Status   string `json:"status"`
}

// Media summarizes the listing's media set for completeness scoring.
type Media struct {
	HasCoverImage  bool `json:"has_cover_image"`
	PhotoCount     int  `json:"photo_count"`
	RenderingCount int  `json:"rendering_count"`
}

// Listing is the ranked subject of discovery search. TrustScore is the
// listing's own completeness-derived contribution; the owner's trust score
// is read from the operator record at ranking time. View, favorite and lead
// counters are incremented by external collaborators and only read here.
type Listing struct {
	ID                string        `json:"id"`
	OperatorID        string        `json:"operator_id"`
	Title             string        `json:"title"`
	Status            string        `json:"status"`
	TrustScore        int           `json:"trust_score"`
	Views             int64         `json:"views"`
	FavoritesCount    int64         `json:"favorites_count"`
	LeadsCount        int64         `json:"leads_count"`
	ActiveBoosts      []boost.Boost `json:"active_boosts"`
	Media             Media         `json:"media"`
	Documents         []Document    `json:"documents"`
	RequiredDocuments int           `json:"required_documents"`
	Price             float64       `json:"price"`
	IsFeatured        bool          `json:"is_featured"`
	LastActivityAt    time.Time     `json:"last_activity_at"`
	CreatedAt         time.Time     `json:"created_at"`
}

// VerifiedDocumentCount returns how many listing documents passed review.
func (l *Listing) VerifiedDocumentCount() int {
	count := 0
	for i := range l.Documents {
		if l.Documents[i].Status == DocumentVerified {
			count++
		}
	}
	return count
}
