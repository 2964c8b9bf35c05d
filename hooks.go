package flagstore

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The store calls them on hot paths.
type Hooks interface {
	// An Upsert found an equal or newer version already stored.
	StaleUpdate(namespace, key string, stored, attempted int)

	// A conditional write lost to a concurrent writer and will be retried.
	// attempt starts at 1. A growing attempt count for one key is the
	// hot-retry case of the update loop.
	UpdateConflict(namespace, key string, attempt int)

	// The external store failed.
	// op ∈ {"get", "get_all", "put", "init", "initialized", "members", "metadata"}
	StoreError(op string, err error)

	// A read-through cache load failed; nothing was cached.
	CacheLoadError(namespace, key string, err error)

	// Init wrote a full data set.
	InitCompleted(kinds, items int)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) StaleUpdate(string, string, int, int)  {}
func (NopHooks) UpdateConflict(string, string, int)    {}
func (NopHooks) StoreError(string, error)              {}
func (NopHooks) CacheLoadError(string, string, error)  {}
func (NopHooks) InitCompleted(int, int)                {}
