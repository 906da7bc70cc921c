package interval

import (
	"sort"
	"strings"
)

// Set is an ordered collection of non-overlapping, non-adjacent intervals,
// kept sorted by Lo. Adjacent or overlapping intervals are merged on
// insert so that for any i, elements[i].Hi < elements[i+1].Lo.
//
// The zero value is an empty set, ready to use.
type Set struct {
	items []Interval
}

// NewSet builds a Set from the given intervals, merging overlaps/adjacency.
func NewSet(ivs ...Interval) Set {
	var s Set
	for _, iv := range ivs {
		s = s.Union(SingletonSet(iv))
	}
	return s
}

// SingletonSet returns a Set containing just iv (or empty, if iv is empty).
func SingletonSet(iv Interval) Set {
	if iv.IsEmpty() {
		return Set{}
	}
	return Set{items: []Interval{iv}}
}

// IsEmpty reports whether the set has no intervals.
func (s Set) IsEmpty() bool { return len(s.items) == 0 }

// Len returns the number of disjoint intervals in the set.
func (s Set) Len() int { return len(s.items) }

// Items returns the underlying intervals in increasing order. The caller
// must not mutate the returned slice.
func (s Set) Items() []Interval { return s.items }

// First returns the lowest interval, or the empty interval if s is empty.
func (s Set) First() Interval {
	if s.IsEmpty() {
		return Interval{}
	}
	return s.items[0]
}

// Last returns the highest interval, or the empty interval if s is empty.
func (s Set) Last() Interval {
	if s.IsEmpty() {
		return Interval{}
	}
	return s.items[len(s.items)-1]
}

// Bounds returns the hull of the whole set: [first.Lo, last.Hi).
func (s Set) Bounds() Interval {
	if s.IsEmpty() {
		return Interval{}
	}
	return Interval{Lo: s.items[0].Lo, Hi: s.items[len(s.items)-1].Hi}
}

// Contains reports whether t falls within any element of s.
func (s Set) Contains(t int64) bool {
	for _, iv := range s.items {
		if iv.Contains(t) {
			return true
		}
		if t < iv.Lo {
			break
		}
	}
	return false
}

// ContainsInterval reports whether other is fully covered by the union of
// s's elements (other need not fall in a single element).
func (s Set) ContainsInterval(other Interval) bool {
	if other.IsEmpty() {
		return true
	}
	return SingletonSet(other).Subtract(s).IsEmpty()
}

// Equal reports whether s and other contain the same intervals in order.
func (s Set) Equal(other Set) bool {
	if len(s.items) != len(other.items) {
		return false
	}
	for i := range s.items {
		if s.items[i] != other.items[i] {
			return false
		}
	}
	return true
}

// Union returns s ∪ other, merging any intervals that touch or overlap.
func (s Set) Union(other Set) Set {
	merged := make([]Interval, 0, len(s.items)+len(other.items))
	merged = append(merged, s.items...)
	merged = append(merged, other.items...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Lo < merged[j].Lo })

	out := make([]Interval, 0, len(merged))
	for _, iv := range merged {
		if iv.IsEmpty() {
			continue
		}
		if n := len(out); n > 0 && iv.Lo <= out[n-1].Hi {
			if iv.Hi > out[n-1].Hi {
				out[n-1].Hi = iv.Hi
			}
			continue
		}
		out = append(out, iv)
	}
	return Set{items: out}
}

// AddInterval returns s ∪ {iv}.
func (s Set) AddInterval(iv Interval) Set {
	return s.Union(SingletonSet(iv))
}

// Intersect returns s ∩ other.
func (s Set) Intersect(other Set) Set {
	var out []Interval
	i, j := 0, 0
	for i < len(s.items) && j < len(other.items) {
		a, b := s.items[i], other.items[j]
		if ov := a.Intersect(b); !ov.IsEmpty() {
			out = append(out, ov)
		}
		if a.Hi < b.Hi {
			i++
		} else {
			j++
		}
	}
	return Set{items: out}
}

// AddIntersection appends (a ∩ b) into the set addressed by result,
// mirroring boost::icl::add_intersection: result |= (a ∩ b).
func AddIntersection(result *Set, a, b Set) {
	*result = result.Union(a.Intersect(b))
}

// Subtract returns s \ other.
func (s Set) Subtract(other Set) Set {
	if other.IsEmpty() {
		return s
	}
	var out []Interval
	for _, a := range s.items {
		pieces := []Interval{a}
		for _, b := range other.items {
			if !b.Intersects(a) {
				continue
			}
			var next []Interval
			for _, p := range pieces {
				next = append(next, subtractOne(p, b)...)
			}
			pieces = next
		}
		for _, p := range pieces {
			if !p.IsEmpty() {
				out = append(out, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Lo < out[j].Lo })
	return (Set{items: out}).normalize()
}

func subtractOne(a, b Interval) []Interval {
	if !a.Intersects(b) {
		return []Interval{a}
	}
	var out []Interval
	if a.Lo < b.Lo {
		out = append(out, Interval{Lo: a.Lo, Hi: b.Lo})
	}
	if b.Hi < a.Hi {
		out = append(out, Interval{Lo: b.Hi, Hi: a.Hi})
	}
	return out
}

// Xor returns the symmetric difference of s and other: (s \ other) ∪
// (other \ s). For a lone interval I and a set S lying inside I this is
// I \ S (the parts of I not covered by S); parts of S outside I are also
// part of the result.
func (s Set) Xor(other Set) Set {
	return s.Subtract(other).Union(other.Subtract(s))
}

// normalize re-merges adjacent/overlapping elements; used after piecewise
// subtraction where touching remainders could otherwise stay split.
func (s Set) normalize() Set {
	return (Set{}).Union(s)
}

// Split emits consecutive sub-intervals of length at most step, covering
// iv exactly: [lo, lo+step), [lo+step, lo+2*step), ... The final piece may
// be shorter than step.
func Split(iv Interval, step int64) []Interval {
	if iv.IsEmpty() || step <= 0 {
		return nil
	}
	var out []Interval
	lo := iv.Lo
	for lo < iv.Hi {
		hi := lo + step
		if hi > iv.Hi {
			hi = iv.Hi
		}
		out = append(out, Interval{Lo: lo, Hi: hi})
		lo = hi
	}
	return out
}

// GapMerge repeatedly merges successive intervals [a,b), [c,d) with
// c - b < minGap into [a,d), given minGap > 0.
func (s Set) GapMerge(minGap int64) Set {
	if minGap <= 0 || len(s.items) < 2 {
		return s
	}
	out := make([]Interval, 0, len(s.items))
	cur := s.items[0]
	for _, next := range s.items[1:] {
		if next.Lo-cur.Hi < minGap {
			cur.Hi = next.Hi
			continue
		}
		out = append(out, cur)
		cur = next
	}
	out = append(out, cur)
	return Set{items: out}
}

func (s Set) String() string {
	if s.IsEmpty() {
		return "empty"
	}
	parts := make([]string, len(s.items))
	for i, iv := range s.items {
		parts[i] = iv.String()
	}
	return strings.Join(parts, ", ")
}
