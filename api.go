package flagstore

import (
	"context"
	"time"

	"github.com/unkn0wn-root/flagstore/cache"
	pr "github.com/unkn0wn-root/flagstore/provider"
)

// Store is the persistence API the evaluation engine talks to.
//
// Get hides tombstones: a deleted record and a missing one both come back
// with ok == false. GetAll always reads the external store and leaves
// tombstones out.
type Store interface {
	Init(ctx context.Context, data FullDataSet) error
	Get(ctx context.Context, kind DataKind, key string) (item ItemDescriptor, ok bool, err error)
	GetAll(ctx context.Context, kind DataKind) (map[string]ItemDescriptor, error)

	// Upsert writes item iff its version is newer than the stored one.
	// applied == false with a nil error means a newer or equal version won.
	Upsert(ctx context.Context, kind DataKind, key string, item ItemDescriptor) (applied bool, err error)
	// Delete is Upsert of a tombstone carrying version.
	Delete(ctx context.Context, kind DataKind, key string, version int) (applied bool, err error)

	// Initialized reports whether a full data set was ever written. Once
	// true it stays true.
	Initialized(ctx context.Context) bool
	// IsStoreAvailable reports whether the external store answers queries.
	IsStoreAvailable(ctx context.Context) bool

	Close(ctx context.Context) error
}

// Options configure a Store. Only Provider is required.
type Options struct {
	Provider pr.KeyedStore

	Prefix string // key prefix; "" => DefaultPrefix

	// CacheTTL bounds how long a cached record is served.
	// 0 disables the record cache and the initialized cache.
	// < 0 caches records until they are overwritten.
	CacheTTL      time.Duration
	PurgeInterval time.Duration // 0 => cache.DefaultPurgeInterval

	// MaxCachedItems > 0 bounds the record cache to about that many entries
	// (ristretto admission). 0 keeps every record.
	MaxCachedItems int64

	Clock  cache.Clock // nil => cache.SystemClock
	Logger Logger      // nil => NopLogger
	Hooks  Hooks       // nil => NopHooks

	// UpdateHook, if set, runs right before every conditional write of an
	// Upsert, after the stored version was read. Tests use it to slip a
	// competing write in between.
	UpdateHook func(kind DataKind, key string)
}

func New(opts Options) (Store, error) {
	return newStore(opts)
}
