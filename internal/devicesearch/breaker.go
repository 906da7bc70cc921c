package devicesearch

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ipintdriver/historycache/pkg/interval"
)

// BreakerDevice wraps a Device with a circuit breaker so a wedged device
// fails searches fast instead of letting every queued job run its own
// timeout against a backend that keeps failing. It embeds the Device
// interface, which promotes only Search: a wrapped device's TrackSource or
// CalendarDevice methods are not reachable through a BreakerDevice, and
// type assertions for those capabilities on it fail.
type BreakerDevice struct {
	Device
	inner Device
	cb    *gobreaker.CircuitBreaker
}

// DefaultBreakerSettings trips after 3 consecutive failures (mirroring the
// cache's own job retry cap) and probes again after a cooldown. A failure
// is a non-OK, non-Cancelled code from the device, or ctx ending before
// the device reports (which the caller sees as Cancelled).
func DefaultBreakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
}

// NewBreakerDevice wraps inner with a circuit breaker built from settings.
func NewBreakerDevice(inner Device, settings gobreaker.Settings) *BreakerDevice {
	return &BreakerDevice{Device: inner, inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Search implements Device. It blocks the calling goroutine until the
// inner search reports its code or ctx ends, which is safe because a
// strand only ever runs one search at a time.
func (b *BreakerDevice) Search(ctx context.Context, iv interval.Interval, onRange func(interval.Set), onDone func(Code)) {
	_, err := b.cb.Execute(func() (interface{}, error) {
		done := make(chan Code, 1)
		b.inner.Search(ctx, iv, onRange, func(c Code) { done <- c })

		select {
		case c := <-done:
			onDone(c)
			if c == OK || c == Cancelled {
				return nil, nil
			}
			return nil, fmt.Errorf("devicesearch: %s", c)
		case <-ctx.Done():
			onDone(Cancelled)
			return nil, ctx.Err()
		}
	})
	if err == gobreaker.ErrOpenState {
		onDone(FatalError)
	}
}
