package historycache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ipintdriver/historycache/pkg/interval"
)

func TestNormalizeWidensSubHourToHour(t *testing.T) {
	now := time.Date(2026, 7, 31, 14, 23, 5, 0, time.UTC)
	lo := now.Add(-30 * time.Minute).UnixMilli()
	hi := now.UnixMilli()

	widened := normalize(interval.New(lo, hi), false)

	assert.Equal(t, time.Date(2026, 7, 31, 13, 0, 0, 0, time.UTC).UnixMilli(), widened.Lo)
	assert.Equal(t, time.Date(2026, 7, 31, 15, 0, 0, 0, time.UTC).UnixMilli(), widened.Hi)
}

func TestNormalizeWidensLongIntervalToDay(t *testing.T) {
	lo := time.Date(2026, 7, 31, 2, 0, 0, 0, time.UTC).UnixMilli()
	hi := time.Date(2026, 7, 31, 20, 0, 0, 0, time.UTC).UnixMilli()

	widened := normalize(interval.New(lo, hi), false)

	assert.Equal(t, time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC).UnixMilli(), widened.Lo)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), widened.Hi)
}

func TestNormalizeForCalendarAlwaysWidensToDayEvenWhenSubHour(t *testing.T) {
	now := time.Date(2026, 7, 31, 14, 23, 5, 0, time.UTC)
	lo := now.Add(-5 * time.Minute).UnixMilli()
	hi := now.UnixMilli()

	widened := normalize(interval.New(lo, hi), true)

	assert.Equal(t, time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC).UnixMilli(), widened.Lo)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), widened.Hi)
}

func TestRoundToPadsAndCaps(t *testing.T) {
	now := time.Date(2026, 7, 31, 14, 0, 5, 0, time.UTC).UnixMilli()
	rounded := roundTo(interval.New(now-100, now-50), hourMs, now, overheadFromNowMs)
	assert.True(t, rounded.Length() <= now+overheadFromNowMs-rounded.Lo)
	assert.True(t, rounded.Hi <= now+overheadFromNowMs)
}

func TestRoundToLeavesLongEnoughIntervalUnchanged(t *testing.T) {
	iv := interval.New(0, hourMs*2)
	assert.Equal(t, iv, roundTo(iv, hourMs, hourMs*2, overheadFromNowMs))
}

func TestRoundToNeverInverts(t *testing.T) {
	now := int64(1000)
	rounded := roundTo(interval.New(500, 600), hourMs, now, overheadFromNowMs)
	assert.False(t, rounded.IsEmpty() && rounded.Lo != rounded.Hi)
	assert.True(t, rounded.Hi >= rounded.Lo)
}
