package devicesearch

// Strand is a single-worker execution context: every func handed to Run
// executes after the previous one finishes, on one goroutine. It grounds
// the cache's "exactly one device search in flight" invariant the way
// friggdb/pool's worker pool serializes jobs onto a bounded goroutine set,
// sized down to a single worker so device interactions never interleave.
type Strand struct {
	work chan func()
	quit chan struct{}
}

// NewStrand starts the strand's worker goroutine.
func NewStrand() *Strand {
	s := &Strand{
		work: make(chan func(), 64),
		quit: make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *Strand) loop() {
	for {
		select {
		case fn := <-s.work:
			fn()
		case <-s.quit:
			return
		}
	}
}

// Run schedules fn to execute on the strand. It does not block for fn to
// complete; callers that need completion should signal it themselves
// (e.g. via onDone).
func (s *Strand) Run(fn func()) {
	select {
	case s.work <- fn:
	case <-s.quit:
	}
}

// Close stops the worker goroutine and does not wait for anything. Work
// still queued when Close is called may or may not run, and a Run racing
// with Close may queue work that never runs.
func (s *Strand) Close() {
	close(s.quit)
}
