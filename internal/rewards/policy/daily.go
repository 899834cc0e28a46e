// Package policy holds the pure reward rules: daily spin reset, spin reward
// draw and streak claim transitions. Nothing here touches storage.
package policy

import (
	"time"

	"github.com/25x8/rewards/internal/rewards/models"
)

// DailyFreeSpins is the free spin allotment restored on each new day
const DailyFreeSpins = 2

// Today formats now as a calendar date in loc
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(models.DateLayout)
}

// ShouldReset reports whether the spin counters belong to an earlier day.
// Dates are compared at day granularity.
func ShouldReset(lastDate, today string) bool {
	return lastDate != today
}

// DayGap returns the number of whole calendar days between last and now in loc
func DayGap(last, now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	ly, lm, ld := last.In(loc).Date()
	ny, nm, nd := now.In(loc).Date()
	lastDay := time.Date(ly, lm, ld, 0, 0, 0, 0, time.UTC)
	nowDay := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return int(nowDay.Sub(lastDay).Hours() / 24)
}
