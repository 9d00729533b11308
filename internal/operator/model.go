// Package operator provides models and repository access for marketplace
// operators, the trust subjects of the scoring engine.
package operator

import (
	"errors"
	"time"
)

// Verification states for operator identity (KYC) review.
const (
	VerificationNone      = "none"
	VerificationSubmitted = "submitted"
	VerificationVerified  = "verified"
	VerificationRejected  = "rejected"
)

// Compliance tiers awarded by the compliance review process.
const (
	ComplianceBasic     = "basic"
	ComplianceCompliant = "compliant"
	ComplianceVerified  = "verified"
)

// Financial proof tiers.
const (
	FinancialNone   = "none"
	FinancialBasic  = "basic"
	FinancialMedium = "medium"
	FinancialHigh   = "high"
)

// Document review statuses.
const (
	DocumentPending  = "pending"
	DocumentVerified = "verified"
	DocumentRejected = "rejected"
	DocumentExpired  = "expired"
)

// Restriction types applied by moderation.
const (
	RestrictionWarning     = "warning"
	RestrictionListingHold = "listing_hold"
	RestrictionPayoutHold  = "payout_hold"
	RestrictionSuspension  = "suspension"
	RestrictionFraudFlag   = "fraud_flag"
)

// ErrOperatorNotFound is returned when an operator does not exist.
var ErrOperatorNotFound = errors.New("operator not found")

// Document is a single compliance document attached to an operator.
type Document struct {
	Category string `json:"category"`
	Status   string `json:"status"`
}

// Restriction is a moderation sanction applied to an operator.
// A nil ExpiresAt means the restriction does not expire on its own.
type Restriction struct {
	Type      string     `json:"type"`
	AppliedAt time.Time  `json:"applied_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// IsActiveAt reports whether the restriction is in force at the given instant.
func (r *Restriction) IsActiveAt(now time.Time) bool {
	if now.Before(r.AppliedAt) {
		return false
	}
	if r.ExpiresAt != nil && now.After(*r.ExpiresAt) {
		return false
	}
	return true
}

// Operator is the verified party owning listings. TrustScore is mutated only
// by the trust computer; every other field is owned by external workflows
// (KYC, compliance review, moderation) and read here as plain facts.
type Operator struct {
	ID                 string        `json:"id"`
	DisplayName        string        `json:"display_name"`
	VerificationState  string        `json:"verification_state"`
	ComplianceTier     string        `json:"compliance_tier"`
	FinancialProofTier string        `json:"financial_proof_tier"`
	Documents          []Document    `json:"documents"`
	RequiredDocuments  int           `json:"required_documents"`
	Restrictions       []Restriction `json:"restrictions"`
	Badges             []string      `json:"badges"`
	TrustScore         int           `json:"trust_score"`
	Plan               string        `json:"plan"`
	CreatedAt          time.Time     `json:"created_at"`
}

// VerifiedDocumentCount returns how many of the operator's documents have
// passed review.
func (o *Operator) VerifiedDocumentCount() int {
	count := 0
	for i := range o.Documents {
		if o.Documents[i].Status == DocumentVerified {
			count++
		}
	}
	return count
}

// ActiveRestrictions returns the restrictions in force at the given instant.
func (o *Operator) ActiveRestrictions(now time.Time) []Restriction {
	var active []Restriction
	for i := range o.Restrictions {
		if o.Restrictions[i].IsActiveAt(now) {
			active = append(active, o.Restrictions[i])
		}
	}
	return active
}
