package devicesearch

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/ipintdriver/historycache/pkg/interval"
)

// ErrSearchExhausted is returned by RecordingSearch when every retry
// attempt still failed to make progress.
var ErrSearchExhausted = errors.New("devicesearch: exhausted retry attempts without progress")

// maxFailedSyncAttempts bounds the synchronous calendar search's retry
// loop: up to 5 consecutive attempts that make no progress before giving up.
const maxFailedSyncAttempts = 5

// RecordingSearch is the synchronous variant used only by the Calendar
// path: it blocks the caller up to a timeout per attempt, retrying from
// the last known progress boundary on failure, and gives up once
// maxFailedSyncAttempts attempts in a row make no progress.
type RecordingSearch struct {
	async *AsyncRecordingSearch
	// guard enforces a minimum spacing between consecutive synchronous
	// attempts (the original's RequestStormGuard), so a stuck device
	// can't be hammered by back-to-back Calendar retries.
	guard *rate.Limiter
}

// NewRecordingSearch builds a synchronous wrapper around async, spacing
// consecutive attempts at most one per minInterval.
func NewRecordingSearch(async *AsyncRecordingSearch, minInterval time.Duration) *RecordingSearch {
	return &RecordingSearch{
		async: async,
		guard: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// Days runs the calendar search to completion, merging day boundaries
// across retries and tracking the last progress point so a retry only
// re-asks about the remaining range.
func (r *RecordingSearch) Days(ctx context.Context, lo, hi int64) ([]int64, error) {
	var days []int64
	remainingLo := lo
	failures := 0

	for failures < maxFailedSyncAttempts {
		if err := r.guard.Wait(ctx); err != nil {
			return days, err
		}

		got, code, err := r.oneAttempt(ctx, remainingLo, hi)
		days = append(days, got...)
		if err != nil {
			return days, err
		}

		switch code {
		case OK:
			return days, nil
		case Cancelled:
			return days, ctx.Err()
		default:
			if len(got) > 0 {
				// made progress; narrow the remaining window, reset the
				// consecutive-failure count, and keep retrying
				remainingLo = maxInt64(remainingLo, lastDay(got)+1)
				failures = 0
			} else {
				failures++
			}
		}
	}

	return days, ErrSearchExhausted
}

func (r *RecordingSearch) oneAttempt(ctx context.Context, lo, hi int64) ([]int64, Code, error) {
	type result struct {
		days []int64
		code Code
	}
	done := make(chan result, 1)

	var collected []int64
	cancel := r.async.StartCalendar(ctx, interval.New(lo, hi), func(days []int64) {
		collected = append(collected, days...)
	}, func(code Code) {
		done <- result{days: collected, code: code}
	})
	defer cancel()

	select {
	case res := <-done:
		return res.days, res.code, nil
	case <-ctx.Done():
		cancel()
		return collected, Cancelled, ctx.Err()
	}
}

func lastDay(days []int64) int64 {
	max := days[0]
	for _, d := range days[1:] {
		if d > max {
			max = d
		}
	}
	return max
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
