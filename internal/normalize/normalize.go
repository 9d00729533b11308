// Package normalize provides bounded normalization primitives used by the
// trust and ranking engines. All functions are total: any input, including
// negative or zero values, maps into [0, 1] without error.
package normalize

import "math"

// CapLog maps an unbounded non-negative counter onto [0, 1] using capped
// logarithmic scaling: min(1, ln(value+1) / ln(cap+1)).
//
// Counters like view totals have no upper bound, so marginal growth must
// contribute diminishing value. The score saturates at 1.0 once value
// reaches cap. Negative inputs are treated as 0; a non-positive cap
// yields 0 to avoid division by zero.
func CapLog(value, cap float64) float64 {
	if value < 0 {
		value = 0
	}
	if cap <= 0 {
		return 0
	}
	scaled := math.Log(value+1) / math.Log(cap+1)
	if scaled > 1 {
		return 1
	}
	return scaled
}

// Clamp01 clamps x into the [0, 1] range.
func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Ratio returns numerator/denominator clamped to [0, 1].
// Returns 0 when the denominator is zero or negative; negative numerators
// are treated as 0.
func Ratio(numerator, denominator float64) float64 {
	if denominator <= 0 {
		return 0
	}
	if numerator < 0 {
		numerator = 0
	}
	return Clamp01(numerator / denominator)
}

// Clamp clamps x into the [lo, hi] range.
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
