package clock

import "time"

const hourMs int64 = 60 * 60 * 1000
const dayMs int64 = 24 * hourMs

// FloorHourMs rounds a device timestamp down to the start of its hour.
func FloorHourMs(ms int64) int64 {
	t := FromMs(ms).UTC()
	hourStart := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	return hourStart.UnixMilli()
}

// CeilHourMs returns the start of the hour following ms's hour, unconditionally
// (even if ms already sits on an hour boundary) — an exclusive upper bound
// for a half-open interval, matching the original normalizer's rounding.
func CeilHourMs(ms int64) int64 {
	return FloorHourMs(ms) + hourMs
}

// FloorDayMs rounds a device timestamp down to the start of its UTC day.
func FloorDayMs(ms int64) int64 {
	t := FromMs(ms).UTC()
	dayStart := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return dayStart.UnixMilli()
}

// CeilDayMs returns the start of the UTC day following ms's day,
// unconditionally, matching the original normalizer's day rounding.
func CeilDayMs(ms int64) int64 {
	return FloorDayMs(ms) + dayMs
}
