// Package queue implements the search job queue: an ordered multiset of
// SearchJob plus a derived union of all queued intervals, maintained
// incrementally as jobs are enqueued, merged, or popped.
package queue

import (
	"container/heap"
	"time"

	"github.com/google/uuid"

	"github.com/ipintdriver/historycache/pkg/interval"
)

// Kind orders jobs: lower-numbered kinds run first. A user request always
// preempts a normalizer widen, which always preempts a background
// update-cache sweep.
type Kind int

const (
	UserRequest Kind = iota
	NormalizerRequest
	UpdateCacheRequest
)

func (k Kind) String() string {
	switch k {
	case UserRequest:
		return "user_request"
	case NormalizerRequest:
		return "normalizer_request"
	case UpdateCacheRequest:
		return "update_cache_request"
	default:
		return "unknown"
	}
}

// SearchJob is one unit of device-search work.
type SearchJob struct {
	ID        string
	Interval  interval.Interval
	Kind      Kind
	CreatedAt time.Time
}

// Queue is an ordered multiset of SearchJob ordered by (Kind, CreatedAt),
// with an incrementally maintained union of all queued intervals.
type Queue struct {
	h     jobHeap
	union interval.Set
}

// New returns an empty job queue.
func New() *Queue {
	return &Queue{}
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int { return len(q.h) }

// Union returns the union of all queued job intervals.
func (q *Queue) Union() interval.Set { return q.union }

// OldestAge returns how long the oldest-created queued job (not
// necessarily the highest-priority one) has been waiting, used by the
// cache's queue-depth guard to refuse new work once it's badly backed up.
// Returns 0 if empty.
func (q *Queue) OldestAge(now time.Time) time.Duration {
	if len(q.h) == 0 {
		return 0
	}
	oldest := q.h[0].CreatedAt
	for _, j := range q.h[1:] {
		if j.CreatedAt.Before(oldest) {
			oldest = j.CreatedAt
		}
	}
	return now.Sub(oldest)
}

// Enqueue inserts iv as a job of the given kind, merging with whatever is
// already queued:
//  1. if searching contains iv, drop.
//  2. if a queued job's interval contains iv, upgrade its kind if weaker, drop new.
//  3. else merge every overlapping queued job into one job covering their union,
//     with the strongest kind among the merged set and kind.
//  4. else insert a new job.
func (q *Queue) Enqueue(iv interval.Interval, kind Kind, now time.Time, searching interval.Interval) {
	if iv.IsEmpty() {
		return
	}
	if !searching.IsEmpty() && searching.ContainsInterval(iv) {
		return
	}

	for i, j := range q.h {
		if j.Interval.ContainsInterval(iv) {
			if j.Kind > kind {
				q.h[i].Kind = kind
				heap.Fix(&q.h, i)
			}
			return
		}
	}

	merged := interval.SingletonSet(iv)
	strongest := kind
	var survivors jobHeap
	for _, j := range q.h {
		if j.Interval.Intersects(iv) {
			merged = merged.AddInterval(j.Interval)
			if j.Kind < strongest {
				strongest = j.Kind
			}
			continue
		}
		survivors = append(survivors, j)
	}
	q.h = survivors
	heap.Init(&q.h)

	hull := merged.Bounds()
	q.push(SearchJob{
		ID:        uuid.New().String(),
		Interval:  hull,
		Kind:      strongest,
		CreatedAt: now,
	})
}

func (q *Queue) push(j SearchJob) {
	heap.Push(&q.h, j)
	q.union = q.union.AddInterval(j.Interval)
}

// Pop removes and returns the highest-priority job: lowest Kind, then
// oldest CreatedAt. Panics if the queue is empty — callers must check Len().
func (q *Queue) Pop() SearchJob {
	if len(q.h) == 0 {
		panic("queue: Pop on empty queue")
	}
	j := heap.Pop(&q.h).(SearchJob)
	q.recomputeUnion()
	return j
}

// Jobs returns a snapshot of all queued jobs in no particular order, for
// status reporting.
func (q *Queue) Jobs() []SearchJob {
	out := make([]SearchJob, len(q.h))
	copy(out, q.h)
	return out
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.h = nil
	q.union = interval.Set{}
}

func (q *Queue) recomputeUnion() {
	var u interval.Set
	for _, j := range q.h {
		u = u.AddInterval(j.Interval)
	}
	q.union = u
}

type jobHeap []SearchJob

func (h jobHeap) Len() int { return len(h) }
func (h jobHeap) Less(i, j int) bool {
	if h[i].Kind != h[j].Kind {
		return h[i].Kind < h[j].Kind
	}
	return h[i].CreatedAt.Before(h[j].CreatedAt)
}
func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x interface{}) {
	*h = append(*h, x.(SearchJob))
}
func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
