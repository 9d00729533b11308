// Package trust provides the operator trust score computation engine:
// weighted factor scoring, the recomputation orchestrator, and the
// self-healing recompute job.
package trust

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/veridex/listrank/internal/operator"
)

// Weights defines the factor point values for operator trust scoring.
// The positive factor maxima sum to 100 so a fully verified, unrestricted
// operator reaches the ceiling exactly.
type Weights struct {
	// Identity verification block.
	IdentityVerified  float64 `json:"identity_verified"`  // full credit (default: 20)
	IdentitySubmitted float64 `json:"identity_submitted"` // partial credit while in review (default: 10)

	// Maximum points from the document verification ratio.
	DocumentsMax float64 `json:"documents_max"` // default: 25

	// Compliance tier step function.
	ComplianceCompliant float64 `json:"compliance_compliant"` // default: 15
	ComplianceVerified  float64 `json:"compliance_verified"`  // default: 30

	// Financial proof tier step function.
	FinancialBasic  float64 `json:"financial_basic"`  // default: 5
	FinancialMedium float64 `json:"financial_medium"` // default: 10
	FinancialHigh   float64 `json:"financial_high"`   // default: 15

	// Badge contribution: PerBadge points each, at most BadgeCap badges.
	PerBadge float64 `json:"per_badge"` // default: 2
	BadgeCap int     `json:"badge_cap"` // default: 5

	// Penalty subtracted per active restriction, by restriction type.
	// Types absent from the map use RestrictionDefault. Each repeated
	// active restriction of the same type adds RepeatEscalation on top.
	RestrictionPenalties map[string]float64 `json:"restriction_penalties"`
	RestrictionDefault   float64            `json:"restriction_default"` // default: 10
	RepeatEscalation     float64            `json:"repeat_escalation"`   // default: 5
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"` // Config version for future compatibility
	Weights Weights `json:"weights"` // Weight overrides
}

// DefaultWeights returns the default trust factor weights.
//
// Positive maxima: identity 20 + documents 25 + compliance 30 + financial 15
// + badges 10 = 100. Restrictions subtract from the sum; the final score is
// clamped to [0, 100] regardless.
func DefaultWeights() *Weights {
	return &Weights{
		IdentityVerified:    20,
		IdentitySubmitted:   10,
		DocumentsMax:        25,
		ComplianceCompliant: 15,
		ComplianceVerified:  30,
		FinancialBasic:      5,
		FinancialMedium:     10,
		FinancialHigh:       15,
		PerBadge:            2,
		BadgeCap:            5,
		RestrictionPenalties: map[string]float64{
			operator.RestrictionWarning:    5,
			operator.RestrictionSuspension: 20,
			operator.RestrictionFraudFlag:  25,
		},
		RestrictionDefault: 10,
		RepeatEscalation:   5,
	}
}

// LoadCalibration loads trust weights from a JSON calibration file.
// Partial configurations are merged with defaults for graceful degradation;
// on any error the defaults are returned alongside the error.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read trust calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read trust calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse trust calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse trust calibration file: %w", err)
	}

	merged := MergeCalibration(DefaultWeights(), &config.Weights)
	slog.Info("loaded trust calibration", "path", filePath)
	return merged, nil
}

// MergeCalibration merges override weights with base weights.
// Only non-zero override values are applied, which allows partial overrides
// in the calibration file.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}
	if override == nil {
		result := *base
		return &result
	}

	result := *base // Copy base

	if override.IdentityVerified != 0 {
		result.IdentityVerified = override.IdentityVerified
	}
	if override.IdentitySubmitted != 0 {
		result.IdentitySubmitted = override.IdentitySubmitted
	}
	if override.DocumentsMax != 0 {
		result.DocumentsMax = override.DocumentsMax
	}
	if override.ComplianceCompliant != 0 {
		result.ComplianceCompliant = override.ComplianceCompliant
	}
	if override.ComplianceVerified != 0 {
		result.ComplianceVerified = override.ComplianceVerified
	}
	if override.FinancialBasic != 0 {
		result.FinancialBasic = override.FinancialBasic
	}
	if override.FinancialMedium != 0 {
		result.FinancialMedium = override.FinancialMedium
	}
	if override.FinancialHigh != 0 {
		result.FinancialHigh = override.FinancialHigh
	}
	if override.PerBadge != 0 {
		result.PerBadge = override.PerBadge
	}
	if override.BadgeCap != 0 {
		result.BadgeCap = override.BadgeCap
	}
	if override.RestrictionDefault != 0 {
		result.RestrictionDefault = override.RestrictionDefault
	}
	if override.RepeatEscalation != 0 {
		result.RepeatEscalation = override.RepeatEscalation
	}

	// The penalty map replaces wholesale when provided; merging individual
	// types would make removals impossible to express.
	result.RestrictionPenalties = copyPenalties(base.RestrictionPenalties)
	if len(override.RestrictionPenalties) > 0 {
		result.RestrictionPenalties = copyPenalties(override.RestrictionPenalties)
	}

	return &result
}

// copyPenalties returns a copy to prevent shared mutation across configs.
func copyPenalties(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	copied := make(map[string]float64, len(m))
	for k, v := range m {
		copied[k] = v
	}
	return copied
}
