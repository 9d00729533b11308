package boost

import (
	"math"
	"testing"
	"time"
)

var now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func activeBoost(tier string) Boost {
	return Boost{
		Tier:      tier,
		Status:    StatusActive,
		StartDate: now.Add(-24 * time.Hour),
		EndDate:   now.Add(24 * time.Hour),
	}
}

func TestBoostIsActiveAt(t *testing.T) {
	tests := []struct {
		name  string
		boost Boost
		want  bool
	}{
		{
			name:  "active within window",
			boost: activeBoost(TierPremium),
			want:  true,
		},
		{
			name: "pending status is not active",
			boost: Boost{
				Tier:      TierPremium,
				Status:    StatusPending,
				StartDate: now.Add(-time.Hour),
				EndDate:   now.Add(time.Hour),
			},
			want: false,
		},
		{
			name: "cancelled status is not active",
			boost: Boost{
				Tier:      TierEnterprise,
				Status:    StatusCancelled,
				StartDate: now.Add(-time.Hour),
				EndDate:   now.Add(time.Hour),
			},
			want: false,
		},
		{
			name: "not yet started",
			boost: Boost{
				Tier:      TierBasic,
				Status:    StatusActive,
				StartDate: now.Add(time.Hour),
				EndDate:   now.Add(48 * time.Hour),
			},
			want: false,
		},
		{
			name: "already ended",
			boost: Boost{
				Tier:      TierBasic,
				Status:    StatusActive,
				StartDate: now.Add(-48 * time.Hour),
				EndDate:   now.Add(-time.Hour),
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.boost.IsActiveAt(now); got != tt.want {
				t.Errorf("IsActiveAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestActiveWeight(t *testing.T) {
	tests := []struct {
		name   string
		boosts []Boost
		want   float64
	}{
		{
			name:   "no boosts returns zero",
			boosts: nil,
			want:   0,
		},
		{
			name:   "single basic boost",
			boosts: []Boost{activeBoost(TierBasic)},
			want:   0.45,
		},
		{
			name:   "single enterprise boost",
			boosts: []Boost{activeBoost(TierEnterprise)},
			want:   1.0,
		},
		{
			name:   "unknown tier uses default weight",
			boosts: []Boost{activeBoost("legacy")},
			want:   DefaultTierWeight,
		},
		{
			name:   "stacked weights cap at one",
			boosts: []Boost{activeBoost(TierEnterprise), activeBoost(TierEnterprise)},
			want:   1.0,
		},
		{
			name:   "premium plus custom stays below cap",
			boosts: []Boost{activeBoost(TierPremium), activeBoost(TierCustom)},
			// 0.7 + 0.55 = 1.25 capped at 1.0
			want: 1.0,
		},
		{
			name:   "basic plus custom sums uncapped",
			boosts: []Boost{activeBoost(TierBasic), activeBoost(TierCustom)},
			want:   1.0,
		},
		{
			name: "inactive boosts are ignored",
			boosts: []Boost{
				{Tier: TierEnterprise, Status: StatusExpired, StartDate: now.Add(-48 * time.Hour), EndDate: now.Add(-time.Hour)},
				activeBoost(TierBasic),
			},
			want: 0.45,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ActiveWeight(tt.boosts, now)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ActiveWeight() = %v, want %v", got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("ActiveWeight() = %v out of [0,1]", got)
			}
		})
	}
}
