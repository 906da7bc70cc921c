// Package devicesearch wraps a recording device's search contract with the
// serialization, timeout, cancellation, and retry semantics the cache
// expects from a single outstanding device search.
package devicesearch

import (
	"context"

	"github.com/ipintdriver/historycache/pkg/interval"
)

// Code is the terminal status of a device search, mirroring the device
// collaborator's on_done(code) contract.
type Code int

const (
	OK Code = iota
	Cancelled
	TransientError
	FatalError
)

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case Cancelled:
		return "cancelled"
	case TransientError:
		return "transient_error"
	case FatalError:
		return "fatal_error"
	default:
		return "unknown"
	}
}

// Device is the collaborator contract: Search calls onRange zero or more
// times and exactly once calls onDone. Callbacks may arrive on any
// goroutine; AsyncRecordingSearch serializes the calls into the device on
// a strand but passes the callbacks through as the device delivers them.
type Device interface {
	Search(ctx context.Context, iv interval.Interval, onRange func(interval.Set), onDone func(Code))
}

// TrackedRange is a device-reported range tagged with the video track it
// belongs to, for devices that multiplex several tracks over one search.
type TrackedRange struct {
	Track string
	Set   interval.Set
}

// TrackSource is an optional capability a Device may implement: when it
// does, AsyncRecordingSearch filters results down to the requested track
// instead of taking every reported range at face value.
type TrackSource interface {
	SearchTracked(ctx context.Context, iv interval.Interval, onRange func(TrackedRange), onDone func(Code))
}

// CalendarDevice is an optional capability for devices that can answer
// "which days have any recording" without enumerating full ranges.
type CalendarDevice interface {
	SearchCalendar(ctx context.Context, iv interval.Interval, onDays func([]int64), onDone func(Code))
}
