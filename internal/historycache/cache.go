// Package historycache implements the cached history requester: an
// in-memory interval cache standing between callers asking "what
// recordings exist in this range" and a slow, single-outstanding-search
// device collaborator.
package historycache

import (
	"context"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.uber.org/atomic"

	"github.com/ipintdriver/historycache/internal/devicesearch"
	"github.com/ipintdriver/historycache/internal/ledger"
	"github.com/ipintdriver/historycache/internal/queue"
	"github.com/ipintdriver/historycache/pkg/clock"
	"github.com/ipintdriver/historycache/pkg/interval"
)

// hourMs caps any background update-cache chunk at one hour, matching the
// storage backend's preferred granularity.
const hourMs = 3_600_000

var tracer = otel.Tracer("internal/historycache")

// State is the cache's lifecycle state: Stopped, Working, or
// StopRequested, guarded by mu and signalled through cond.
type State int

const (
	StateStopped State = iota
	StateWorking
	StateStopRequested
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateWorking:
		return "working"
	case StateStopRequested:
		return "stop_requested"
	default:
		return "unknown"
	}
}

// Cache is the cached history requester core. A single mutex guards
// all mutable state; device interactions happen off that lock, through a
// strand that serializes them to exactly one outstanding search.
type Cache struct {
	mu   sync.Mutex
	cond *sync.Cond

	state State

	history                  interval.Set
	performed                ledger.PerformedRequests
	recent                   interval.Set
	recentRequestsExpiration time.Time

	queue          *queue.Queue
	searchingRange interval.Interval
	cancelCurrent  func()
	unsuccessCount atomic.Uint32

	updateTimer      *time.Timer
	updateCacheRange interval.Interval

	tweaks Config
	device devicesearch.Device
	strand *devicesearch.Strand
	clk    clock.Clock

	metrics *metrics
	logger  log.Logger

	closeOnce sync.Once
}

// New builds a Cache around device, using clk for all time reads so tests
// can substitute a fake clock.
func New(device devicesearch.Device, tweaks Config, clk clock.Clock, reg prometheus.Registerer, logger log.Logger) *Cache {
	c := &Cache{
		queue:   queue.New(),
		tweaks:  tweaks,
		device:  device,
		strand:  devicesearch.NewStrand(),
		clk:     clk,
		metrics: newMetrics(reg),
		logger:  newLogger(logger),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Start puts the cache into service. In ring mode (CacheDepthMs > 0) the
// background updater starts immediately; otherwise it starts lazily on
// the first non-empty history (see onRange). Returns ErrFatalConfig
// if CacheDepthMs exceeds the current wall-clock time in milliseconds,
// so the ring window would start before the epoch.
func (c *Cache) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tweaks.CacheDepthMs > 0 {
		if c.tweaks.CacheDepthMs > clock.NowMs(c.clk) {
			return ErrFatalConfig
		}
		c.armUpdateTimerLocked(c.tweaks.UpdateCacheTimeout)
	}
	return nil
}

// PresentationRange returns the hull of everything currently known,
// recovered from the original's getPresentationRange/presentationRange.
func (c *Cache) PresentationRange() interval.Interval {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Bounds()
}

// ContainsRecordForTime reports whether ts falls within known history.
func (c *Cache) ContainsRecordForTime(ts int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Contains(ts)
}

// State returns the current lifecycle state, mainly for tests and status
// reporting.
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot is a point-in-time view of cache state for status reporting.
type Snapshot struct {
	State          State
	History        interval.Set
	QueueLen       int
	QueueJobs      []queue.SearchJob
	SearchingRange interval.Interval
	UnsuccessCount int
}

// Snapshot captures the cache's current state without mutating anything,
// used by status/debug surfaces.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:          c.state,
		History:        c.history,
		QueueLen:       c.queue.Len(),
		QueueJobs:      c.queue.Jobs(),
		SearchingRange: c.searchingRange,
		UnsuccessCount: int(c.unsuccessCount.Load()),
	}
}

// SetTweaks swaps the active Config, for test overrides and live tuning.
func (c *Cache) SetTweaks(tweaks Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tweaks = tweaks
}

// GetRecordings is a non-blocking best-effort read that
// may also schedule background work. full reports whether result is a
// complete answer for requested; accepted reports whether the call was
// honored at all (false only when the cache refuses outright — queue
// too deep, or stopping — the facade maps that to TRY_LATER).
func (c *Cache) GetRecordings(requested interval.Interval, maxCount int, minGapMs int64) (result interval.Set, full bool, accepted bool) {
	started := time.Now()
	defer func() { c.metrics.getRecordingsDur.Observe(time.Since(started).Seconds()) }()

	_, span := tracer.Start(context.Background(), "GetRecordings")
	defer span.End()

	span.AddEvent("lock.acquire.start")
	c.mu.Lock()
	span.AddEvent("lock.acquired")
	defer c.mu.Unlock()

	var missing interval.Set
	result, missing, full = c.cachedHistoryLocked(requested)

	now := c.clk.Now()
	if !full {
		var adjMissing interval.Set
		if c.performed.AdjustToEmpty(requested, c.clk.Steady(), &adjMissing) {
			full = true
		}
	}

	if minGapMs > 0 && result.Len() > 1 {
		result = result.GapMerge(minGapMs)
	}

	if maxCount > 0 && result.Len() > maxCount {
		return interval.NewSet(result.Items()[:maxCount]...), false, true
	}

	if full {
		return result, true, true
	}

	nowMs := clock.NowMs(c.clk)
	rounded := roundTo(requested, hourMs, nowMs, overheadFromNowMs)

	if !c.searchingRange.IsEmpty() && c.searchingRange.ContainsInterval(rounded) {
		return result, full, true
	}

	trustRight := false
	if c.history.IsEmpty() || requested.Hi > c.history.Last().Hi {
		steadyNow := c.clk.Steady()
		if !c.recentRequestsExpiration.After(steadyNow) {
			c.recent = interval.Set{}
			c.recentRequestsExpiration = steadyNow.Add(c.tweaks.RecentRequestInterval)
		}

		rightTailLo := requested.Lo
		if !c.history.IsEmpty() {
			if h := c.history.Last().Hi; h > rightTailLo {
				rightTailLo = h
			}
		}
		rightTail := interval.New(rightTailLo, requested.Hi)

		if rightTail.Hi+overheadFromNowMs >= nowMs {
			rightTail = interval.New(rightTail.Lo, rightTail.Hi+overheadFromNowMs)
			trustRight = true
		}

		missing = missing.AddInterval(rightTail).Subtract(c.recent).Intersect(interval.SingletonSet(requested))
		c.recent = c.recent.AddInterval(rightTail)
	}

	if missing.IsEmpty() {
		return result, trustRight, true
	}

	if age := c.queue.OldestAge(now); age > c.tweaks.QueueDepthThreshold && c.tweaks.QueueDepthThreshold > 0 {
		level.Debug(c.logger).Log("msg", "refusing request", "err", ErrQueueDepthExceeded, "age", age)
		return result, false, false
	}

	if c.state == StateStopRequested {
		level.Debug(c.logger).Log("msg", "refusing request", "err", ErrStopped)
		return result, false, false
	}
	c.state = StateWorking

	go c.scheduleSearchJob(requested, now, missing)

	return result, false, true
}

// cachedHistoryLocked reconciles requested
// against history and the performed-requests ledger, reporting what is
// already known (result), what still needs fetching (missing), and
// whether the answer is already complete (full).
func (c *Cache) cachedHistoryLocked(requested interval.Interval) (result, missing interval.Set, full bool) {
	reqSet := interval.SingletonSet(requested)
	performedOverlap := reqSet.Intersect(c.performed.Snapshot())

	if c.history.IsEmpty() && performedOverlap.IsEmpty() {
		return interval.Set{}, reqSet, false
	}

	result = c.history.Intersect(reqSet)
	if result.Equal(reqSet) {
		return result, interval.Set{}, true
	}

	covered := c.history.Union(performedOverlap)
	missing = reqSet.Subtract(covered)

	var historyHi int64 = -1
	if !c.history.IsEmpty() {
		historyHi = c.history.Last().Hi
	}

	if historyHi >= 0 && historyHi < requested.Hi {
		tailLo := requested.Lo
		if !result.IsEmpty() {
			tailLo = result.Last().Hi
		}
		if tailLo < requested.Hi {
			missing = missing.AddInterval(interval.New(tailLo, requested.Hi))
		}
	}

	if missing.IsEmpty() {
		if historyHi >= requested.Hi {
			full = true
		}
		return result, missing, full
	}

	if !result.IsEmpty() {
		firstResultLo := result.First().Lo
		for _, m := range missing.Items() {
			if m.Lo < firstResultLo {
				return interval.Set{}, missing, false
			}
		}
	}

	inProgress := c.queue.Union().AddInterval(c.searchingRange)
	if overlap := reqSet.Intersect(inProgress); !overlap.IsEmpty() {
		result = truncateAt(result, overlap.First().Lo)
		full = false
	}

	return result, missing, full
}

// truncateAt keeps only the parts of s lying at or before boundary,
// clipping the element that straddles it.
func truncateAt(s interval.Set, boundary int64) interval.Set {
	var out interval.Set
	for _, iv := range s.Items() {
		switch {
		case iv.Hi <= boundary:
			out = out.AddInterval(iv)
		case iv.Lo < boundary:
			out = out.AddInterval(interval.New(iv.Lo, boundary))
			return out
		default:
			return out
		}
	}
	return out
}

// scheduleSearchJob turns missing ranges into queued jobs and kicks off
// a search if none is in flight. It runs off the caller's goroutine so
// GetRecordings never blocks on it.
func (c *Cache) scheduleSearchJob(requested interval.Interval, now time.Time, missing interval.Set) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateStopRequested {
		// Nothing was dispatched on this request's behalf; if no other
		// search is in flight, this is the point where the stop actually
		// quiesces.
		if c.searchingRange.IsEmpty() {
			c.changeStateToStoppedLocked()
		}
		return
	}

	for _, m := range missing.Items() {
		c.enqueueLocked(m, queue.UserRequest, now)
	}
	c.enqueueLocked(normalize(requested, false), queue.NormalizerRequest, now)

	if c.searchingRange.IsEmpty() && c.queue.Len() > 0 {
		job := c.queue.Pop()
		go c.doRecordingSearch(job)
	}
}

func (c *Cache) enqueueLocked(iv interval.Interval, kind queue.Kind, now time.Time) {
	c.queue.Enqueue(iv, kind, now, c.searchingRange)
	c.metrics.jobsEnqueued.WithLabelValues(kind.String()).Inc()
	c.metrics.queueLength.Set(float64(c.queue.Len()))
}

// doRecordingSearch drops the lock, dispatches through the
// device-search wrapper, and re-acquires it in the onRange/onDone
// callbacks.
func (c *Cache) doRecordingSearch(job queue.SearchJob) {
	ctx, span := tracer.Start(context.Background(), "doRecordingSearch")
	defer span.End()

	span.AddEvent("lock.acquire.start")
	c.mu.Lock()
	span.AddEvent("lock.acquired")
	if c.state == StateStopRequested {
		c.changeStateToStoppedLocked()
		c.mu.Unlock()
		return
	}
	c.searchingRange = job.Interval
	historyWasEmpty := c.history.IsEmpty()
	c.mu.Unlock()

	c.metrics.searchesStarted.Inc()

	async := devicesearch.NewAsyncRecordingSearch(c.device, c.strand, "", c.tweaks.SearchTimeout, c.logger)

	var updateCacheRecords interval.Set
	cancel := async.Start(ctx, job.Interval, func(records interval.Set) {
		c.onRange(job, records, &updateCacheRecords, historyWasEmpty)
	}, func(code devicesearch.Code) {
		c.onDone(job, code, updateCacheRecords)
	})

	c.mu.Lock()
	c.cancelCurrent = cancel
	c.mu.Unlock()
}

func (c *Cache) onRange(job queue.SearchJob, records interval.Set, updateCacheRecords *interval.Set, historyWasEmpty bool) {
	if records.IsEmpty() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if job.Kind == queue.UpdateCacheRequest {
		*updateCacheRecords = updateCacheRecords.Union(records)
		return
	}

	foundRange := records.Bounds()
	c.history = c.history.Union(records)
	c.performed.Add(foundRange)

	overlap := foundRange.Intersect(c.searchingRange)
	c.searchingRange = shrinkSearchingRange(c.searchingRange, overlap)
	c.recent = c.recent.Subtract(records)

	if historyWasEmpty && !c.history.IsEmpty() {
		c.moveUpdateCacheRangeLocked()
		c.armUpdateTimerLocked(c.tweaks.UpdateCacheTimeout)
	}
}

// shrinkSearchingRange drops overlap from the left edge of searching,
// which is where the device reports progress (sequentially from the
// start of the job's interval outward). An overlap reaching searching's
// upper end empties it; one strictly inside it leaves it unchanged.
func shrinkSearchingRange(searching, overlap interval.Interval) interval.Interval {
	if overlap.IsEmpty() {
		return searching
	}
	if overlap.Hi >= searching.Hi {
		return interval.Interval{}
	}
	if overlap.Lo <= searching.Lo {
		return interval.New(overlap.Hi, searching.Hi)
	}
	return searching
}

func (c *Cache) onDone(job queue.SearchJob, code devicesearch.Code, updateCacheRecords interval.Set) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ok := code == devicesearch.OK
	// Retry eligibility is decided on the count *before* this failure is
	// folded in: three failed attempts are retried in place, a fourth
	// failure is dropped ("unsuccessCount < 3" gates the
	// retry that happens after incrementing past the previous failure).
	retry := false
	switch {
	case ok:
		c.unsuccessCount.Store(0)
	case code != devicesearch.Cancelled:
		c.metrics.searchesFailed.Inc()
		count := c.unsuccessCount.Load()
		retry = count < 3
		if count < 3 {
			c.unsuccessCount.Add(1)
		}
	}

	if job.Kind == queue.UpdateCacheRequest {
		c.updateCacheLocked(job.Interval, updateCacheRecords)
	}

	if ok {
		c.applyLiveEdgeHeuristicLocked(job.Interval)
	}

	if retry {
		c.metrics.searchesRetried.Inc()
		go c.doRecordingSearch(job)
		return
	}

	if c.state == StateStopRequested {
		c.changeStateToStoppedLocked()
		return
	}

	for {
		if c.queue.Len() == 0 {
			c.changeStateToStoppedLocked()
			return
		}
		next := c.queue.Pop()
		if ok {
			_, missing, full := c.cachedHistoryLocked(next.Interval)
			if full {
				continue
			}
			for _, m := range missing.Items() {
				nowMs := clock.NowMs(c.clk)
				c.enqueueLocked(roundTo(m, hourMs, nowMs, overheadFromNowMs), queue.UserRequest, c.clk.Now())
			}
		}
		go c.doRecordingSearch(next)
		return
	}
}

// applyLiveEdgeHeuristicLocked implements the on-done live-edge
// handling: near-now empty stretches are provisionally believed so the
// cache doesn't keep re-asking the device about a range it just checked.
func (c *Cache) applyLiveEdgeHeuristicLocked(requested interval.Interval) {
	nowMs := clock.NowMs(c.clk)
	ttl := c.tweaks.EmptyResultTrustInterval
	windowLo := nowMs - 2*ttl.Milliseconds()
	windowHi := nowMs + ttl.Milliseconds()

	croppedHi := requested.Hi
	if croppedHi > windowHi {
		croppedHi = windowHi
	}
	if croppedHi < requested.Lo {
		croppedHi = requested.Lo
	}
	cropped := interval.New(requested.Lo, croppedHi)

	if cropped.Hi <= windowLo || cropped.Lo >= windowHi {
		capped := cropped
		if !c.history.IsEmpty() {
			if h := c.history.Last().Hi; h > capped.Lo && h < capped.Hi {
				capped = interval.New(capped.Lo, h)
			}
		}
		c.performed.Add(capped)
		return
	}

	splitAt := windowLo
	if splitAt < cropped.Lo {
		splitAt = cropped.Lo
	}
	if splitAt > cropped.Hi {
		splitAt = cropped.Hi
	}
	left := interval.New(cropped.Lo, splitAt)
	right := interval.New(splitAt, cropped.Hi)

	if !left.IsEmpty() {
		c.performed.Add(left)
	}
	if !right.IsEmpty() {
		c.performed.AddEmpty(right, c.clk.Steady(), ttl)
	}
}

// updateCacheLocked implements the background updater's on-completion
// handling for an UpdateCache job, common to both ring and non-ring mode.
func (c *Cache) updateCacheLocked(requested interval.Interval, records interval.Set) {
	current := c.history.Intersect(interval.SingletonSet(requested))
	if current.Equal(records) {
		c.moveUpdateCacheRangeLocked()
		c.armUpdateTimerLocked(c.tweaks.UpdateCacheTimeout)
		return
	}

	// Drop whatever history claimed about `requested` (now proven stale)
	// and replace it with what the device actually reported.
	c.history = c.history.Subtract(interval.SingletonSet(requested)).Union(records)
	c.moveUpdateCacheRangeLocked()
	c.armUpdateTimerLocked(0)
}

// moveUpdateCacheRangeLocked advances the background updater's sweep
// window to the next unchecked chunk of history.
func (c *Cache) moveUpdateCacheRangeLocked() {
	if c.updateCacheRange.IsEmpty() {
		if c.history.IsEmpty() {
			return
		}
		first := c.history.First()
		c.updateCacheRange = capLength(first, hourMs)
		return
	}
	start := c.updateCacheRange.Hi
	for _, h := range c.history.Items() {
		if h.Hi <= start {
			continue
		}
		lo := start
		if h.Lo > lo {
			lo = h.Lo
		}
		c.updateCacheRange = capLength(interval.New(lo, h.Hi), hourMs)
		return
	}
	c.updateCacheRange = interval.Interval{}
}

func capLength(iv interval.Interval, maxLen int64) interval.Interval {
	if iv.Length() <= maxLen {
		return iv
	}
	return interval.New(iv.Lo, iv.Lo+maxLen)
}

// ringEvictLocked drops history and performed-request state older than
// the configured ring-buffer depth.
func (c *Cache) ringEvictLocked() {
	if c.history.IsEmpty() {
		return
	}
	expire := clock.NowMs(c.clk) - c.tweaks.CacheDepthMs
	beginLo := c.history.First().Lo

	lo, hi := expire, beginLo
	if beginLo < expire {
		lo, hi = beginLo, expire
	}
	evict := interval.New(lo, hi)
	if evict.IsEmpty() {
		return
	}
	c.history = c.history.Subtract(interval.SingletonSet(evict))
	c.performed.Subtract(evict)
}

func (c *Cache) updateTimerHandler() {
	_, span := tracer.Start(context.Background(), "updateTimerHandler")
	defer span.End()

	span.AddEvent("lock.acquire.start")
	c.mu.Lock()
	span.AddEvent("lock.acquired")
	defer c.mu.Unlock()

	if c.state == StateStopRequested {
		return
	}

	var jobIv interval.Interval
	nowMs := clock.NowMs(c.clk)

	if c.tweaks.CacheDepthMs > 0 {
		c.ringEvictLocked()
		start := nowMs - c.tweaks.CacheDepthMs
		if !c.history.IsEmpty() {
			start = c.history.Last().Hi
		}
		jobIv = interval.New(start, nowMs)
	} else {
		if c.updateCacheRange.IsEmpty() {
			c.moveUpdateCacheRangeLocked()
		}
		jobIv = c.updateCacheRange
	}

	if jobIv.IsEmpty() {
		c.armUpdateTimerLocked(c.tweaks.UpdateCacheTimeout)
		return
	}

	c.enqueueLocked(jobIv, queue.UpdateCacheRequest, c.clk.Now())
	if c.searchingRange.IsEmpty() && c.state != StateStopRequested {
		job := c.queue.Pop()
		c.state = StateWorking
		go c.doRecordingSearch(job)
	}
}

func (c *Cache) armUpdateTimerLocked(d time.Duration) {
	if c.updateTimer != nil {
		c.updateTimer.Stop()
	}
	if d < 0 {
		d = 0
	}
	c.updateTimer = time.AfterFunc(d, c.updateTimerHandler)
}

// Stop requests a stop, cancels the in-flight search and the update
// timer, and blocks until the state machine reaches Stopped.
func (c *Cache) Stop() {
	c.mu.Lock()
	if c.state == StateStopped {
		if c.updateTimer != nil {
			c.updateTimer.Stop()
		}
		c.mu.Unlock()
		return
	}
	c.state = StateStopRequested
	if c.updateTimer != nil {
		c.updateTimer.Stop()
	}
	cancel := c.cancelCurrent
	pollInterval := c.tweaks.StopPollInterval
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	for {
		c.mu.Lock()
		if c.state == StateStopped {
			c.mu.Unlock()
			return
		}
		cancel = c.cancelCurrent
		c.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		time.Sleep(pollInterval)
	}
}

// Close releases the cache's strand worker goroutine. Call it only after
// Stop has returned and the cache will not be used again; Close is
// idempotent but does not itself quiesce in-flight work.
func (c *Cache) Close() {
	c.closeOnce.Do(c.strand.Close)
}

func (c *Cache) changeStateToStoppedLocked() {
	c.state = StateStopped
	c.searchingRange = interval.Interval{}
	c.queue.Clear()
	c.cond.Broadcast()
}

// ClearCache stops the cache, then wipes all cached state.
func (c *Cache) ClearCache() {
	c.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = interval.Set{}
	c.performed.Clear()
	c.recent = interval.Set{}
	c.updateCacheRange = interval.Interval{}
	c.unsuccessCount.Store(0)
	c.state = StateStopped
}
