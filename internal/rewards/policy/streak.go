package policy

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	streakBaseReward = decimal.NewFromInt(10)
	streakStep       = decimal.NewFromFloat(0.5)
)

// ClaimOutcome describes the result of a streak claim
type ClaimOutcome int

const (
	ClaimNew ClaimOutcome = iota
	ClaimContinued
	ClaimRestarted
	ClaimAlreadyClaimed
)

// StreakClaim computes the next streak value from the last claim time.
// lastClaim is nil for a user who never claimed.
func StreakClaim(lastClaim *time.Time, streak int, now time.Time, loc *time.Location) (int, ClaimOutcome) {
	if lastClaim == nil {
		return 1, ClaimNew
	}

	gap := DayGap(*lastClaim, now, loc)
	switch {
	case gap < 1:
		return streak, ClaimAlreadyClaimed
	case gap == 1:
		return streak + 1, ClaimContinued
	default:
		return 1, ClaimRestarted
	}
}

// StreakReward returns 10 + (streak-1)*0.5
func StreakReward(streak int) decimal.Decimal {
	if streak < 1 {
		streak = 1
	}
	return streakBaseReward.Add(streakStep.Mul(decimal.NewFromInt(int64(streak - 1))))
}
