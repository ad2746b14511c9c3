package services

import (
	"talktime/internal/models"

	"github.com/shopspring/decimal"
)

// Caller-side coin rates. One minute of call time costs the per-minute
// rate; the same amount is the minimum charge reserved at call start.
const (
	AudioCoinsPerMinute int64 = 10
	VideoCoinsPerMinute int64 = 60
)

// BadgeRate is one row of the static listener earning-rate table.
type BadgeRate struct {
	Badge              models.BadgeTier `json:"badge"`
	MinHours           float64          `json:"min_hours"`
	AudioRatePerMinute decimal.Decimal  `json:"audio_rate_per_minute"`
	VideoRatePerMinute decimal.Decimal  `json:"video_rate_per_minute"`
}

// BadgeRates maps yesterday's completed-call hours to a badge tier and
// that day's listener earning rates, highest tier first. Thresholds are
// inclusive: exactly 6.0 hours earns silver.
var BadgeRates = []BadgeRate{
	{models.BadgeTierGold, 9, decimal.NewFromFloat(2.00), decimal.NewFromFloat(6.00)},
	{models.BadgeTierSilver, 6, decimal.NewFromFloat(1.50), decimal.NewFromFloat(4.50)},
	{models.BadgeTierBronze, 3, decimal.NewFromFloat(1.25), decimal.NewFromFloat(3.75)},
	{models.BadgeTierBasic, 0, decimal.NewFromFloat(1.00), decimal.NewFromFloat(3.00)},
}

// RateForTier returns the rate table row for a badge tier, falling back
// to basic for unknown tiers.
func RateForTier(tier models.BadgeTier) BadgeRate {
	for _, rate := range BadgeRates {
		if rate.Badge == tier {
			return rate
		}
	}
	return BadgeRates[len(BadgeRates)-1]
}

// TierForHours maps completed-call hours to a badge tier.
func TierForHours(hours float64) BadgeRate {
	for _, rate := range BadgeRates {
		if hours >= rate.MinHours {
			return rate
		}
	}
	return BadgeRates[len(BadgeRates)-1]
}

// CoinsPerMinute returns the caller's per-minute coin rate for a call
// type. This is also the minimum charge reserved at start.
func CoinsPerMinute(callType models.CallType) int64 {
	if callType == models.CallTypeVideo {
		return VideoCoinsPerMinute
	}
	return AudioCoinsPerMinute
}

// MinimumCharge returns the coins reserved at call start for a call type.
func MinimumCharge(callType models.CallType) int64 {
	return CoinsPerMinute(callType)
}

// EarningRate picks the per-minute listener earning rate for a call type
// out of a rate row.
func (r BadgeRate) EarningRate(callType models.CallType) decimal.Decimal {
	if callType == models.CallTypeVideo {
		return r.VideoRatePerMinute
	}
	return r.AudioRatePerMinute
}
