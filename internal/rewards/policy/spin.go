package policy

import (
	"math/rand"

	"github.com/25x8/rewards/internal/rewards/models"
	"github.com/shopspring/decimal"
)

const (
	spinRewardStep  = 10
	spinRewardSlots = 50
)

// SpinOutcome describes the result of resolving a spin against a user's counters
type SpinOutcome int

const (
	SpinOK SpinOutcome = iota
	SpinNoSpins
)

// SpinState is the part of a user record touched by a spin
type SpinState struct {
	FreeSpins    int
	AdSpins      int
	DailyStreak  int
	LastSpinDate string
}

// SpinStateOf extracts the spin counters of u
func SpinStateOf(u *models.User) SpinState {
	return SpinState{
		FreeSpins:    u.FreeSpins,
		AdSpins:      u.AdSpins,
		DailyStreak:  u.DailyStreak,
		LastSpinDate: u.LastSpinDate,
	}
}

// Apply writes the counters back to u
func (s SpinState) Apply(u *models.User) {
	u.FreeSpins = s.FreeSpins
	u.AdSpins = s.AdSpins
	u.DailyStreak = s.DailyStreak
	u.LastSpinDate = s.LastSpinDate
}

// ResolveSpin resets the counters on a new day and consumes one spin,
// free spins first. A new day also counts towards the daily streak.
func ResolveSpin(s SpinState, today string) (SpinState, SpinOutcome) {
	if ShouldReset(s.LastSpinDate, today) {
		s.FreeSpins = DailyFreeSpins
		s.AdSpins = 0
		s.DailyStreak++
		s.LastSpinDate = today
	}

	if s.FreeSpins <= 0 && s.AdSpins <= 0 {
		return s, SpinNoSpins
	}

	if s.FreeSpins > 0 {
		s.FreeSpins--
	} else {
		s.AdSpins--
	}
	return s, SpinOK
}

// SpinReward draws a reward uniformly from 10, 20, ..., 500
func SpinReward(rng *rand.Rand) decimal.Decimal {
	var n int
	if rng == nil {
		n = rand.Intn(spinRewardSlots)
	} else {
		n = rng.Intn(spinRewardSlots)
	}
	return decimal.NewFromInt(int64((n + 1) * spinRewardStep))
}
