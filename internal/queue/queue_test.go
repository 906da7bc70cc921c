package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipintdriver/historycache/pkg/interval"
)

func TestEnqueueDropsWhenAlreadySearching(t *testing.T) {
	q := New()
	now := time.Unix(0, 0)
	q.Enqueue(interval.New(10, 20), UserRequest, now, interval.New(0, 100))
	assert.Equal(t, 0, q.Len())
}

func TestEnqueueUpgradesContainingJob(t *testing.T) {
	q := New()
	now := time.Unix(0, 0)
	q.Enqueue(interval.New(0, 100), UpdateCacheRequest, now, interval.Interval{})
	q.Enqueue(interval.New(10, 20), UserRequest, now.Add(time.Second), interval.Interval{})

	require.Equal(t, 1, q.Len())
	j := q.Pop()
	assert.Equal(t, UserRequest, j.Kind)
	assert.Equal(t, interval.New(0, 100), j.Interval)
}

func TestEnqueueDoesNotDowngradeContainingJob(t *testing.T) {
	q := New()
	now := time.Unix(0, 0)
	q.Enqueue(interval.New(0, 100), UserRequest, now, interval.Interval{})
	q.Enqueue(interval.New(10, 20), UpdateCacheRequest, now.Add(time.Second), interval.Interval{})

	require.Equal(t, 1, q.Len())
	j := q.Pop()
	assert.Equal(t, UserRequest, j.Kind)
}

func TestEnqueueMergesOverlapping(t *testing.T) {
	q := New()
	now := time.Unix(0, 0)
	q.Enqueue(interval.New(0, 10), NormalizerRequest, now, interval.Interval{})
	q.Enqueue(interval.New(20, 30), NormalizerRequest, now, interval.Interval{})
	q.Enqueue(interval.New(5, 25), UserRequest, now.Add(time.Second), interval.Interval{})

	require.Equal(t, 1, q.Len())
	j := q.Pop()
	assert.Equal(t, UserRequest, j.Kind)
	assert.Equal(t, interval.New(0, 30), j.Interval)
}

func TestPopOrdersByKindThenAge(t *testing.T) {
	q := New()
	now := time.Unix(0, 0)
	q.Enqueue(interval.New(0, 10), UpdateCacheRequest, now, interval.Interval{})
	q.Enqueue(interval.New(100, 110), NormalizerRequest, now.Add(time.Second), interval.Interval{})
	q.Enqueue(interval.New(200, 210), UserRequest, now.Add(2*time.Second), interval.Interval{})

	require.Equal(t, 3, q.Len())
	first := q.Pop()
	assert.Equal(t, UserRequest, first.Kind)
	second := q.Pop()
	assert.Equal(t, NormalizerRequest, second.Kind)
	third := q.Pop()
	assert.Equal(t, UpdateCacheRequest, third.Kind)
	assert.Equal(t, 0, q.Len())
}

func TestUnionTracksQueuedIntervals(t *testing.T) {
	q := New()
	now := time.Unix(0, 0)
	q.Enqueue(interval.New(0, 10), UserRequest, now, interval.Interval{})
	q.Enqueue(interval.New(50, 60), UserRequest, now, interval.Interval{})

	union := q.Union()
	assert.Equal(t, []interval.Interval{{0, 10}, {50, 60}}, union.Items())

	q.Pop()
	assert.Equal(t, []interval.Interval{{50, 60}}, q.Union().Items())
}

func TestOldestAge(t *testing.T) {
	q := New()
	now := time.Unix(0, 0)
	q.Enqueue(interval.New(0, 10), UserRequest, now, interval.Interval{})
	later := now.Add(5 * time.Second)
	assert.Equal(t, 5*time.Second, q.OldestAge(later))
}

func TestEnqueueEmptyIntervalIsNoop(t *testing.T) {
	q := New()
	q.Enqueue(interval.Interval{}, UserRequest, time.Unix(0, 0), interval.Interval{})
	assert.Equal(t, 0, q.Len())
}
