// Package ledger tracks which intervals the history cache has already
// asked the device about, so a gap in history ∩ asked can be trusted as
// "no data there" instead of re-dispatching a search. It also tracks
// recent near-live empty results, which are believed only provisionally.
package ledger

import (
	"time"

	"github.com/ipintdriver/historycache/pkg/interval"
)

// PerformedRequests tracks {asked, askedEmpty, askedEmptyExpiry}: asked
// is authoritative and never expires; askedEmpty is a provisional
// near-live belief that expires.
type PerformedRequests struct {
	asked            interval.Set
	askedEmpty       interval.Set
	askedEmptyExpiry time.Time
}

// Add records that iv has been successfully queried.
func (p *PerformedRequests) Add(iv interval.Interval) {
	p.asked = p.asked.AddInterval(iv)
}

// AddEmpty records that iv was queried near-live and returned nothing, to
// be believed until expiry (steady-clock now() + expiration).
func (p *PerformedRequests) AddEmpty(iv interval.Interval, now time.Time, expiration time.Duration) {
	p.askedEmpty = p.askedEmpty.AddInterval(iv)
	p.askedEmptyExpiry = now.Add(expiration)
}

// Subtract removes iv from asked (e.g. ring-buffer eviction), and also
// drops any overlapping part of askedEmpty: an entry can never stay
// "known empty" once the range it covers is evicted from "known asked".
func (p *PerformedRequests) Subtract(iv interval.Interval) {
	s := interval.SingletonSet(iv)
	p.asked = p.asked.Subtract(s)
	p.askedEmpty = p.askedEmpty.Subtract(s)
}

// Clear wipes both asked and askedEmpty.
func (p *PerformedRequests) Clear() {
	p.asked = interval.Set{}
	p.askedEmpty = interval.Set{}
	p.askedEmptyExpiry = time.Time{}
}

// Snapshot returns the authoritative asked set.
func (p *PerformedRequests) Snapshot() interval.Set {
	return p.asked
}

// AdjustToEmpty checks whether askedEmpty can prove requested is already
// known-empty, returning true if so. Otherwise it appends any
// still-unresolved remainder to missing and returns false.
func (p *PerformedRequests) AdjustToEmpty(requested interval.Interval, now time.Time, missing *interval.Set) bool {
	if p.askedEmpty.IsEmpty() {
		return false
	}
	if !p.askedEmptyExpiry.After(now) {
		p.askedEmpty = interval.Set{}
		return false
	}

	// Truncate requested on the right to the last known-empty upper bound.
	hi := requested.Hi
	if last := p.askedEmpty.Last().Hi; last < hi {
		hi = last
	}
	if hi < requested.Lo {
		hi = requested.Lo
	}
	truncated := interval.New(requested.Lo, hi)

	result := interval.SingletonSet(truncated).Subtract(p.askedEmpty)
	if result.IsEmpty() {
		return true
	}
	if result.Subtract(p.asked).IsEmpty() {
		return true
	}

	*missing = missing.Union(result)
	return false
}
