// Package facade exposes the history cache as the outer contract callers
// actually see: a status-coded GetRecordings/GetCalendar pair, with
// concurrent identical Calendar lookups collapsed into one device round
// trip.
package facade

import (
	"context"
	"strconv"
	"time"

	"github.com/gogo/status"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc/codes"

	"github.com/ipintdriver/historycache/internal/devicesearch"
	"github.com/ipintdriver/historycache/internal/historycache"
	"github.com/ipintdriver/historycache/pkg/interval"
)

// Status is the outer status code callers see: FULL when the result is
// a complete answer, PARTIAL when background work was scheduled, and
// TRY_LATER when the cache refused the request outright.
type Status int

const (
	StatusFull Status = iota
	StatusPartial
	StatusTryLater
)

func (s Status) String() string {
	switch s {
	case StatusFull:
		return "full"
	case StatusPartial:
		return "partial"
	case StatusTryLater:
		return "try_later"
	default:
		return "unknown"
	}
}

// GRPCCode maps Status onto the codes this repository already uses to
// carry facade-level results over RPC boundaries elsewhere.
func (s Status) GRPCCode() codes.Code {
	switch s {
	case StatusFull, StatusPartial:
		return codes.OK
	case StatusTryLater:
		return codes.Unavailable
	default:
		return codes.Unknown
	}
}

// Facade is the single entry point callers use; it owns one Cache and a
// singleflight group that coalesces concurrent identical Calendar asks.
type Facade struct {
	cache        *historycache.Cache
	recordingSrc *devicesearch.RecordingSearch
	calendarGrp  singleflight.Group
}

// New builds a Facade around cache. recordingSrc may be nil if the
// device never answers calendar queries.
func New(cache *historycache.Cache, recordingSrc *devicesearch.RecordingSearch) *Facade {
	return &Facade{cache: cache, recordingSrc: recordingSrc}
}

// GetRecordings implements the outer contract callers see: a status plus the
// best-effort interval set the cache currently has for requested.
func (f *Facade) GetRecordings(ctx context.Context, requested interval.Interval, maxCount int, minGapMs int64) (Status, interval.Set) {
	result, full, accepted := f.cache.GetRecordings(requested, maxCount, minGapMs)
	switch {
	case !accepted:
		return StatusTryLater, interval.Set{}
	case full:
		return StatusFull, result
	default:
		return StatusPartial, result
	}
}

// GetCalendar answers "which days in requested have any recording",
// deduplicating identical concurrent requests onto a single device
// round trip via singleflight — callers racing on the same range get the
// same slice back instead of each triggering their own search.
func (f *Facade) GetCalendar(ctx context.Context, requested interval.Interval) ([]time.Time, error) {
	if f.recordingSrc == nil {
		return nil, status.Error(codes.Unimplemented, "facade: device does not support calendar search")
	}

	key := calendarKey(requested)
	v, err, _ := f.calendarGrp.Do(key, func() (interface{}, error) {
		days, err := f.recordingSrc.Days(ctx, requested.Lo, requested.Hi)
		if err != nil {
			return nil, err
		}
		out := make([]time.Time, len(days))
		for i, d := range days {
			out[i] = time.UnixMilli(d)
		}
		return out, nil
	})
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "facade: calendar search failed: %v", err)
	}
	return v.([]time.Time), nil
}

// Stop blocks until the cache is fully quiesced.
func (f *Facade) Stop() { f.cache.Stop() }

// ClearCache stops the cache and wipes all cached state.
func (f *Facade) ClearCache() { f.cache.ClearCache() }

// SetTweaks swaps the active Config.
func (f *Facade) SetTweaks(cfg historycache.Config) { f.cache.SetTweaks(cfg) }

func calendarKey(iv interval.Interval) string {
	return strconv.FormatInt(iv.Lo, 36) + ":" + strconv.FormatInt(iv.Hi, 36)
}
