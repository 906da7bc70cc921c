package devicesearch

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/ipintdriver/historycache/pkg/interval"
)

// AsyncRecordingSearch wraps one Device with the properties the async
// search path requires: strand serialization, a timeout, external
// cancellation, track filtering, and destroy-on-finish. A fresh value is
// meant to be used for exactly one search.
type AsyncRecordingSearch struct {
	device  Device
	strand  *Strand
	trackID string
	timeout time.Duration
	logger  log.Logger
}

// NewAsyncRecordingSearch builds a wrapper for one search against device,
// dispatched onto strand, bounded by timeout. trackID may be empty if the
// device does not multiplex tracks.
func NewAsyncRecordingSearch(device Device, strand *Strand, trackID string, timeout time.Duration, logger log.Logger) *AsyncRecordingSearch {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &AsyncRecordingSearch{device: device, strand: strand, trackID: trackID, timeout: timeout, logger: logger}
}

// Start dispatches the search on the strand and returns a cancel func the
// caller can invoke at any time; cancelling after on_done has fired is a
// no-op. Only the call into the device runs on the strand; onRange and
// onDone are invoked on whichever goroutine the device delivers them from.
func (a *AsyncRecordingSearch) Start(parent context.Context, iv interval.Interval, onRange func(interval.Set), onDone func(Code)) (cancel func()) {
	ctx, cancelFn := context.WithTimeout(parent, a.timeout)

	finished := make(chan struct{})
	safeOnDone := func(code Code) {
		select {
		case <-finished:
			return
		default:
			close(finished)
		}
		cancelFn()
		onDone(code)
	}

	a.strand.Run(func() {
		select {
		case <-ctx.Done():
			safeOnDone(Cancelled)
			return
		default:
		}

		if tracked, ok := a.device.(TrackSource); ok && a.trackID != "" {
			tracked.SearchTracked(ctx, iv, func(tr TrackedRange) {
				if tr.Track != a.trackID {
					if !tr.Set.IsEmpty() {
						level.Warn(a.logger).Log("msg", "dropping ranges for unrequested track", "want", a.trackID, "got", tr.Track)
					}
					return
				}
				onRange(tr.Set)
			}, safeOnDone)
			return
		}

		a.device.Search(ctx, iv, onRange, safeOnDone)
	})

	return func() { cancelFn() }
}

// StartCalendar is the calendar-mode alternative: it surfaces known day
// boundaries instead of ranges, for devices implementing CalendarDevice.
func (a *AsyncRecordingSearch) StartCalendar(parent context.Context, iv interval.Interval, onDays func([]int64), onDone func(Code)) (cancel func()) {
	cal, ok := a.device.(CalendarDevice)
	if !ok {
		go onDone(FatalError)
		return func() {}
	}

	ctx, cancelFn := context.WithTimeout(parent, a.timeout)
	finished := make(chan struct{})
	safeOnDone := func(code Code) {
		select {
		case <-finished:
			return
		default:
			close(finished)
		}
		cancelFn()
		onDone(code)
	}

	a.strand.Run(func() {
		cal.SearchCalendar(ctx, iv, onDays, safeOnDone)
	})

	return func() { cancelFn() }
}
