package flagstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/flagstore/cache"
	"github.com/unkn0wn-root/flagstore/cache/ristretto"
	pr "github.com/unkn0wn-root/flagstore/provider"
)

type initKey struct{}

type store struct {
	core     *versionedStore
	provider pr.KeyedStore
	log      Logger
	hooks    Hooks

	// nil when caching is disabled
	items     *cache.LoadingCache[CacheKey, lookup]
	initCache *cache.LoadingCache[initKey, bool]

	inited atomic.Bool

	// kinds maps a namespace back to its DataKind for the cache loader.
	// The first kind registered for a namespace wins.
	kinds sync.Map

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ Store = (*store)(nil)

func newStore(opts Options) (*store, error) {
	if opts.Provider == nil {
		return nil, ErrNilProvider
	}

	s := &store{
		provider: opts.Provider,
		log:      coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:    coalesce[Hooks](opts.Hooks, NopHooks{}),
	}
	s.core = &versionedStore{
		store:      opts.Provider,
		prefix:     coalesce(opts.Prefix, DefaultPrefix),
		log:        s.log,
		hooks:      s.hooks,
		updateHook: opts.UpdateHook,
	}

	if opts.CacheTTL == 0 {
		return s, nil
	}

	clock := coalesce[cache.Clock](opts.Clock, cache.SystemClock{})
	purge := coalesce(opts.PurgeInterval, cache.DefaultPurgeInterval)

	if opts.MaxCachedItems > 0 {
		backing, err := ristretto.New[CacheKey, lookup](ristretto.Config{
			MaxCost: opts.MaxCachedItems,
			TTL:     opts.CacheTTL,
		}, func(k CacheKey) string { return k.Namespace + "\x00" + k.Key })
		if err != nil {
			return nil, fmt.Errorf("flagstore: record cache: %w", err)
		}
		s.items = cache.NewLoadingCacheWithStorage[CacheKey, lookup](s.loadItem, backing)
	} else {
		s.items = cache.NewLoadingCache[CacheKey, lookup](s.loadItem, cache.Config{
			TTL:           opts.CacheTTL,
			PurgeInterval: purge,
			Clock:         clock,
		})
	}

	// A store that is not initialized yet is asked again after a TTL, even
	// when records are cached forever; someone else may initialize it.
	initTTL := opts.CacheTTL
	if initTTL < 0 {
		initTTL = DefaultCacheTTL
	}
	s.initCache = cache.NewLoadingCache[initKey, bool](func(ctx context.Context, _ initKey) (bool, error) {
		return s.core.initialized(ctx)
	}, cache.Config{TTL: initTTL, PurgeInterval: purge, Clock: clock})

	return s, nil
}

func (s *store) register(kind DataKind) {
	s.kinds.LoadOrStore(kind.GetName(), kind)
}

func (s *store) loadItem(ctx context.Context, ck CacheKey) (lookup, error) {
	v, ok := s.kinds.Load(ck.Namespace)
	if !ok {
		return lookup{}, fmt.Errorf("flagstore: unknown kind %q", ck.Namespace)
	}
	l, err := s.core.get(ctx, v.(DataKind), ck.Key)
	if err != nil {
		s.hooks.CacheLoadError(ck.Namespace, ck.Key, err)
		return lookup{}, err
	}
	return l, nil
}

// Init replaces every kind in data, then reseeds the cache with exactly the
// records written. The cache is cleared only after the store holds the new
// data, and loads that started earlier are not stored, so a reader never
// caches a record from before the replace.
func (s *store) Init(ctx context.Context, data FullDataSet) error {
	if s.closed.Load() {
		return ErrClosed
	}
	for _, coll := range data {
		s.register(coll.Kind)
	}
	n, err := s.core.init(ctx, data)
	if err != nil {
		s.log.Error("init failed", Fields{"kinds": len(data), "err": err})
		return err
	}
	if s.items != nil {
		s.items.Clear()
		for _, coll := range data {
			ns := coll.Kind.GetName()
			for _, ki := range coll.Items {
				s.items.Set(CacheKey{Namespace: ns, Key: ki.Key}, lookup{item: ki.Item, found: true})
			}
		}
	}
	s.inited.Store(true)
	s.log.Info("store initialized", Fields{"kinds": len(data), "items": n})
	s.hooks.InitCompleted(len(data), n)
	return nil
}

func (s *store) Get(ctx context.Context, kind DataKind, key string) (ItemDescriptor, bool, error) {
	if s.closed.Load() {
		return ItemDescriptor{}, false, ErrClosed
	}
	var (
		l   lookup
		err error
	)
	if s.items != nil {
		s.register(kind)
		l, err = s.items.Get(ctx, CacheKey{Namespace: kind.GetName(), Key: key})
	} else {
		l, err = s.core.get(ctx, kind, key)
	}
	if err != nil {
		return ItemDescriptor{}, false, err
	}
	if !l.live() {
		return ItemDescriptor{}, false, nil
	}
	return l.item, true, nil
}

func (s *store) GetAll(ctx context.Context, kind DataKind) (map[string]ItemDescriptor, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	all, err := s.core.getAll(ctx, kind)
	if err != nil {
		return nil, err
	}
	for k, item := range all {
		if item.Deleted {
			delete(all, k)
		}
	}
	return all, nil
}

func (s *store) Upsert(ctx context.Context, kind DataKind, key string, item ItemDescriptor) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	applied, current, err := s.core.upsert(ctx, kind, key, item)
	if s.items != nil {
		ck := CacheKey{Namespace: kind.GetName(), Key: key}
		if current != nil {
			s.register(kind)
			// a concurrent Upsert may already have cached a newer record
			s.items.SetIf(ck, *current, current.supersedes)
		} else {
			// the current record is unknown; let the next read fetch it
			s.items.Delete(ck)
		}
	}
	return applied, err
}

func (s *store) Delete(ctx context.Context, kind DataKind, key string, version int) (bool, error) {
	return s.Upsert(ctx, kind, key, Tombstone(version))
}

func (s *store) Initialized(ctx context.Context) bool {
	if s.inited.Load() {
		return true
	}
	if s.closed.Load() {
		return false
	}
	var (
		ok  bool
		err error
	)
	if s.initCache != nil {
		ok, err = s.initCache.Get(ctx, initKey{})
	} else {
		ok, err = s.core.initialized(ctx)
	}
	if err != nil {
		s.log.Warn("initialized check failed", Fields{"err": err})
		return false
	}
	if ok {
		s.inited.Store(true)
	}
	return ok
}

func (s *store) IsStoreAvailable(ctx context.Context) bool {
	if s.closed.Load() {
		return false
	}
	_, err := s.core.initialized(ctx)
	return err == nil
}

// Close stops the cache purge loops and closes the provider. Later calls
// return the first result.
func (s *store) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if s.items != nil {
			_ = s.items.Close()
		}
		if s.initCache != nil {
			_ = s.initCache.Close()
		}
		s.closeErr = s.provider.Close(ctx)
	})
	return s.closeErr
}
