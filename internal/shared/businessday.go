package shared

import (
	"math"
	"time"
)

// businessDayShift moves the day boundary to 2 AM local time so that sales
// entered between midnight and 2 AM count against the previous day.
const businessDayShift = 2 * time.Hour

// BusinessDay returns the business day a wall-clock instant belongs to,
// truncated to midnight in the instant's location.
func BusinessDay(now time.Time) time.Time {
	shifted := now.Add(-businessDayShift)
	y, m, d := shifted.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// StartOfDay truncates an instant to plain calendar midnight. The auto-unlock
// sweep uses this boundary, not the shifted one.
func StartOfDay(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// Round2 rounds a monetary amount to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
