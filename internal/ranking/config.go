package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// CompositeWeights defines the factor weights of the composite ranking
// formula. The four weights sum to 1 so the composite score stays in [0, 1].
type CompositeWeights struct {
	Trust      float64 `json:"trust"`      // Weight for normalized owner trust (default: 0.45)
	Recency    float64 `json:"recency"`    // Weight for activity recency (default: 0.20)
	Boost      float64 `json:"boost"`      // Weight for paid boost (default: 0.20)
	Engagement float64 `json:"engagement"` // Weight for engagement blend (default: 0.15)
}

// EngagementWeights defines the engagement blend: each counter is
// log-normalized against its cap, then the three components are combined.
type EngagementWeights struct {
	Favorites    float64 `json:"favorites"`     // Blend weight for favorites (default: 0.5)
	Views        float64 `json:"views"`         // Blend weight for views (default: 0.3)
	Leads        float64 `json:"leads"`         // Blend weight for leads (default: 0.2)
	FavoritesCap float64 `json:"favorites_cap"` // Saturation point for favorites (default: 500)
	ViewsCap     float64 `json:"views_cap"`     // Saturation point for views (default: 5000)
	LeadsCap     float64 `json:"leads_cap"`     // Saturation point for leads (default: 200)
}

// Weights holds all ranking weight configurations.
type Weights struct {
	Composite         CompositeWeights  `json:"composite"`           // Composite formula weights
	Engagement        EngagementWeights `json:"engagement"`          // Engagement blend weights
	RecencyWindowDays float64           `json:"recency_window_days"` // Linear decay window (default: 90)
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"` // Config version for future compatibility
	Weights Weights `json:"weights"` // Weight configurations
}

// DefaultWeights returns the default ranking weight configuration.
//
// Composite formula:
// score = (trustNorm * 0.45) + (recency * 0.20) + (boost * 0.20) + (engagement * 0.15)
//   - Trust dominates: reputation is the strongest discovery signal
//   - Recency decays linearly over 90 days of inactivity
//   - Boost rewards paid promotion without letting it outweigh trust
//   - Engagement blends favorites/views/leads, log-saturated at 500/5000/200
func DefaultWeights() *Weights {
	return &Weights{
		Composite: CompositeWeights{
			Trust:      0.45,
			Recency:    0.20,
			Boost:      0.20,
			Engagement: 0.15,
		},
		Engagement: EngagementWeights{
			Favorites:    0.5,
			Views:        0.3,
			Leads:        0.2,
			FavoritesCap: 500,
			ViewsCap:     5000,
			LeadsCap:     200,
		},
		RecencyWindowDays: 90,
	}
}

// LoadCalibration loads ranking weights from a JSON calibration file.
// If the file doesn't exist or can't be read, returns default weights with
// an error. Partial configurations are merged with defaults for graceful
// degradation.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read ranking calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read ranking calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse ranking calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse ranking calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	logCalibrationOverrides(defaults, merged)

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

	if override.Composite.Trust != 0 {
		result.Composite.Trust = override.Composite.Trust
	}
	if override.Composite.Recency != 0 {
		result.Composite.Recency = override.Composite.Recency
	}
	if override.Composite.Boost != 0 {
		result.Composite.Boost = override.Composite.Boost
	}
	if override.Composite.Engagement != 0 {
		result.Composite.Engagement = override.Composite.Engagement
	}

	if override.Engagement.Favorites != 0 {
		result.Engagement.Favorites = override.Engagement.Favorites
	}
	if override.Engagement.Views != 0 {
		result.Engagement.Views = override.Engagement.Views
	}
	if override.Engagement.Leads != 0 {
		result.Engagement.Leads = override.Engagement.Leads
	}
	if override.Engagement.FavoritesCap != 0 {
		result.Engagement.FavoritesCap = override.Engagement.FavoritesCap
	}
	if override.Engagement.ViewsCap != 0 {
		result.Engagement.ViewsCap = override.Engagement.ViewsCap
	}
	if override.Engagement.LeadsCap != 0 {
		result.Engagement.LeadsCap = override.Engagement.LeadsCap
	}

	if override.RecencyWindowDays != 0 {
		result.RecencyWindowDays = override.RecencyWindowDays
	}

	return &result
}

// logCalibrationOverrides logs which weights were overridden from defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string

	if loaded.Composite.Trust != defaults.Composite.Trust {
		overrides = append(overrides, fmt.Sprintf("composite.trust: %.2f -> %.2f",
			defaults.Composite.Trust, loaded.Composite.Trust))
	}
	if loaded.Composite.Recency != defaults.Composite.Recency {
		overrides = append(overrides, fmt.Sprintf("composite.recency: %.2f -> %.2f",
			defaults.Composite.Recency, loaded.Composite.Recency))
	}
	if loaded.Composite.Boost != defaults.Composite.Boost {
		overrides = append(overrides, fmt.Sprintf("composite.boost: %.2f -> %.2f",
			defaults.Composite.Boost, loaded.Composite.Boost))
	}
	if loaded.Composite.Engagement != defaults.Composite.Engagement {
		overrides = append(overrides, fmt.Sprintf("composite.engagement: %.2f -> %.2f",
			defaults.Composite.Engagement, loaded.Composite.Engagement))
	}

	if loaded.Engagement != defaults.Engagement {
		overrides = append(overrides, fmt.Sprintf("engagement blend: %+v -> %+v",
			defaults.Engagement, loaded.Engagement))
	}
	if loaded.RecencyWindowDays != defaults.RecencyWindowDays {
		overrides = append(overrides, fmt.Sprintf("recency_window_days: %.0f -> %.0f",
			defaults.RecencyWindowDays, loaded.RecencyWindowDays))
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
