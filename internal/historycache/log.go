package historycache

import "github.com/go-kit/log"

// newLogger returns a no-op logger if base is nil, matching the pattern
// used across this repository's other modules for optional loggers.
func newLogger(base log.Logger) log.Logger {
	if base == nil {
		return log.NewNopLogger()
	}
	return log.With(base, "component", "historycache")
}
