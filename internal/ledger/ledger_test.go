package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipintdriver/historycache/pkg/interval"
)

func TestAddAndSnapshot(t *testing.T) {
	var p PerformedRequests
	p.Add(interval.New(0, 10))
	p.Add(interval.New(20, 30))
	assert.Equal(t, []interval.Interval{{0, 10}, {20, 30}}, p.Snapshot().Items())
}

func TestSubtractAlsoStripsAskedEmpty(t *testing.T) {
	var p PerformedRequests
	now := time.Unix(0, 0)
	p.Add(interval.New(0, 100))
	p.AddEmpty(interval.New(50, 100), now, time.Minute)

	p.Subtract(interval.New(40, 60))

	assert.Equal(t, []interval.Interval{{0, 40}, {60, 100}}, p.Snapshot().Items())
	var missing interval.Set
	// askedEmpty should no longer cover [50,60): adjust should now report
	// a missing remainder inside what used to be fully trusted.
	full := p.AdjustToEmpty(interval.New(50, 100), now, &missing)
	require.False(t, full)
}

func TestAdjustToEmptyFullWhenWithinKnownEmpty(t *testing.T) {
	var p PerformedRequests
	now := time.Unix(0, 0)
	p.AddEmpty(interval.New(100, 200), now, time.Minute)

	var missing interval.Set
	full := p.AdjustToEmpty(interval.New(120, 180), now, &missing)
	assert.True(t, full)
	assert.True(t, missing.IsEmpty())
}

func TestAdjustToEmptyExpires(t *testing.T) {
	var p PerformedRequests
	now := time.Unix(0, 0)
	p.AddEmpty(interval.New(100, 200), now, time.Minute)

	var missing interval.Set
	full := p.AdjustToEmpty(interval.New(120, 180), now.Add(2*time.Minute), &missing)
	assert.False(t, full)
}

func TestAdjustToEmptyFalseButCoveredByAsked(t *testing.T) {
	var p PerformedRequests
	now := time.Unix(0, 0)
	p.Add(interval.New(0, 300))
	p.AddEmpty(interval.New(100, 200), now, time.Minute)

	var missing interval.Set
	// requested extends beyond the known-empty region but that extra part
	// is still covered by `asked`, so this should report full.
	full := p.AdjustToEmpty(interval.New(90, 210), now, &missing)
	assert.True(t, full)
}

func TestClear(t *testing.T) {
	var p PerformedRequests
	p.Add(interval.New(0, 10))
	p.AddEmpty(interval.New(5, 10), time.Unix(0, 0), time.Minute)
	p.Clear()
	assert.True(t, p.Snapshot().IsEmpty())
	var missing interval.Set
	assert.False(t, p.AdjustToEmpty(interval.New(0, 10), time.Unix(0, 0), &missing))
}
