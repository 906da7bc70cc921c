package historycache

import (
	"flag"
	"time"
)

// Config is the set of runtime tunables a deployment might want to
// override without touching code.
type Config struct {
	// UpdateCacheTimeout is the period of the background refresh.
	UpdateCacheTimeout time.Duration `yaml:"update_cache_timeout"`
	// RecentRequestInterval bounds how often a user query targeting the
	// live edge re-dispatches a search for the same right-hand tail.
	RecentRequestInterval time.Duration `yaml:"recent_request_interval"`
	// EmptyResultTrustInterval is how long an add_empty ledger entry is
	// believed before it must be re-verified against the device.
	EmptyResultTrustInterval time.Duration `yaml:"empty_result_trust_interval"`
	// CacheDepthMs is the ring-buffer eviction depth; zero disables ring
	// mode and the updater instead grows the window from first history.
	CacheDepthMs int64 `yaml:"cache_depth_ms"`
	// SearchTimeout bounds one device search attempt.
	SearchTimeout time.Duration `yaml:"search_timeout"`
	// QueueDepthThreshold: once the oldest queued job is older than this,
	// getRecordings refuses new work with TRY_LATER instead of enqueueing.
	QueueDepthThreshold time.Duration `yaml:"queue_depth_threshold"`
	// StopPollInterval is how often Stop polls for quiescence while
	// waiting for the in-flight search to observe the stop request.
	StopPollInterval time.Duration `yaml:"stop_poll_interval"`
}

// RegisterFlagsAndApplyDefaults registers f with the given prefix and
// fills Config with the package's defaults, following the pattern used
// throughout this repository's other Config types.
func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.DurationVar(&c.UpdateCacheTimeout, prefix+"update-cache-timeout", 30*time.Second, "Period of the background cache-refresh sweep.")
	f.DurationVar(&c.RecentRequestInterval, prefix+"recent-request-interval", 5*time.Second, "Window during which a repeated live-edge request is not re-dispatched.")
	f.DurationVar(&c.EmptyResultTrustInterval, prefix+"empty-result-trust-interval", 30*time.Second, "How long a near-live empty search result is trusted without re-asking the device.")
	f.Int64Var(&c.CacheDepthMs, prefix+"cache-depth-ms", 0, "Ring-buffer eviction depth in milliseconds; 0 disables ring mode.")
	f.DurationVar(&c.SearchTimeout, prefix+"search-timeout", 2*time.Minute, "Timeout for one device search attempt.")
	f.DurationVar(&c.QueueDepthThreshold, prefix+"queue-depth-threshold", 30*time.Second, "Maximum age of the oldest queued job before new requests are refused.")
	f.DurationVar(&c.StopPollInterval, prefix+"stop-poll-interval", 100*time.Millisecond, "Polling interval Stop uses while waiting for quiescence.")
}
