package flagstore

import "time"

const (
	DefaultPrefix = "launchdarkly"

	// DefaultCacheTTL is a sensible CacheTTL. Options.CacheTTL itself has no
	// default because zero means "no cache".
	DefaultCacheTTL = 15 * time.Second
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
