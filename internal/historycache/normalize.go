package historycache

import (
	"github.com/ipintdriver/historycache/pkg/clock"
	"github.com/ipintdriver/historycache/pkg/interval"
)

// overheadFromNowMs caps any padded interval from reaching further into
// the future than the device could plausibly have recorded.
const overheadFromNowMs = 10_000

// normalize widens a short requested interval to improve cache hit rate
// before it is dispatched as a NormalizerRequest job. A sub-hour interval
// widens to its enclosing hour; anything longer (or a calendar lookup,
// which always wants day granularity) widens to its enclosing day.
func normalize(iv interval.Interval, forCalendar bool) interval.Interval {
	if iv.Length() < hourMs && !forCalendar {
		return interval.New(clock.FloorHourMs(iv.Lo), clock.CeilHourMs(iv.Hi))
	}
	return interval.New(clock.FloorDayMs(iv.Lo), clock.CeilDayMs(iv.Hi))
}

// roundTo pads iv symmetrically up to targetLen when it is shorter, then
// clamps the upper end at nowMs+overheadMs and the lower end at 0. Used
// for the storage-backend-friendly padding applied to a requested range
// before checking it against the in-flight search (GetRecordings step 6),
// distinct from normalize's boundary-widening.
func roundTo(iv interval.Interval, targetLen, nowMs, overheadMs int64) interval.Interval {
	if iv.Length() >= targetLen {
		return iv
	}
	pad := targetLen - iv.Length()
	lo := iv.Lo - pad/2
	hi := iv.Hi + pad/2
	if pad%2 != 0 {
		hi++
	}
	if cap := nowMs + overheadMs; hi > cap {
		hi = cap
	}
	if lo < 0 {
		lo = 0
	}
	if hi < lo {
		hi = lo
	}
	return interval.New(lo, hi)
}
