package historycache

import "errors"

// Sentinel errors surfaced from the background job path and logged.
// ErrFatalConfig is returned by Start; the others never escape a public
// method as a Go error — GetRecordings reflects them in its returned
// booleans instead.
var (
	// ErrQueueDepthExceeded means the oldest queued job is older than the
	// configured threshold; getRecordings refuses new work.
	ErrQueueDepthExceeded = errors.New("historycache: queue depth threshold exceeded")
	// ErrStopped means the cache is stopping or stopped and cannot accept
	// new search work.
	ErrStopped = errors.New("historycache: cache is stopping")
	// ErrFatalConfig means a Tweaks value makes the background updater's
	// setup impossible to satisfy (e.g. cache_depth_ms in the future).
	ErrFatalConfig = errors.New("historycache: invalid tweaks configuration")
)
