package interval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetUnionMergesAdjacent(t *testing.T) {
	s := NewSet(New(0, 10), New(10, 20), New(30, 40))
	require.Equal(t, 2, s.Len())
	assert.Equal(t, []Interval{{0, 20}, {30, 40}}, s.Items())
}

func TestSetIntersect(t *testing.T) {
	a := NewSet(New(0, 10), New(20, 30))
	b := NewSet(New(5, 25))
	got := a.Intersect(b)
	assert.Equal(t, []Interval{{5, 10}, {20, 25}}, got.Items())
}

func TestSetSubtract(t *testing.T) {
	a := NewSet(New(0, 100))
	b := NewSet(New(10, 20), New(50, 60))
	got := a.Subtract(b)
	assert.Equal(t, []Interval{{0, 10}, {20, 50}, {60, 100}}, got.Items())
}

func TestSetXorIsUncoveredRemainder(t *testing.T) {
	history := NewSet(New(0, 10), New(20, 30))
	requested := New(0, 30)
	// Xor of a lone requested interval against history == requested \ history.
	missing := SingletonSet(requested).Xor(history)
	assert.Equal(t, []Interval{{10, 20}}, missing.Items())
}

func TestAddIntersection(t *testing.T) {
	var result Set
	a := NewSet(New(0, 100))
	b := NewSet(New(50, 150))
	AddIntersection(&result, a, b)
	assert.Equal(t, []Interval{{50, 100}}, result.Items())

	// Accumulates across calls.
	AddIntersection(&result, NewSet(New(200, 300)), NewSet(New(250, 400)))
	assert.Equal(t, []Interval{{50, 100}, {250, 300}}, result.Items())
}

func TestSplit(t *testing.T) {
	got := Split(New(0, 25), 10)
	assert.Equal(t, []Interval{{0, 10}, {10, 20}, {20, 25}}, got)
}

func TestSplitExactMultiple(t *testing.T) {
	got := Split(New(0, 20), 10)
	assert.Equal(t, []Interval{{0, 10}, {10, 20}}, got)
}

func TestGapMerge(t *testing.T) {
	s := NewSet(New(100, 140), New(160, 170), New(210, 220), New(240, 250), New(260, 270), New(320, 330))
	merged := s.GapMerge(30)
	assert.Equal(t, []Interval{{100, 170}, {210, 270}, {320, 330}}, merged.Items())
}

func TestContainsIntervalAndHull(t *testing.T) {
	s := NewSet(New(0, 10), New(20, 30))
	assert.True(t, s.ContainsInterval(New(0, 5)))
	assert.False(t, s.ContainsInterval(New(5, 25)))
	assert.Equal(t, New(0, 30), Hull(New(0, 10), New(20, 30)))
	assert.Equal(t, New(0, 10), Hull(New(0, 10), Empty()))
}

func TestEmptyInterval(t *testing.T) {
	iv := New(5, 5)
	assert.True(t, iv.IsEmpty())
	assert.Equal(t, int64(0), iv.Length())
}
