package flagstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/flagstore/internal/util"
	pr "github.com/unkn0wn-root/flagstore/provider"
)

// StoreMetadata describes the big segment data set as a whole.
type StoreMetadata struct {
	// LastUpToDate is when the synchronizer last brought the data up to
	// date. Zero when it wrote the marker without a time.
	LastUpToDate time.Time
}

// BigSegmentOptions configure a BigSegmentStore. Only Provider is required.
type BigSegmentOptions struct {
	Provider pr.SetStore
	Prefix   string // "" => DefaultPrefix

	// MembershipCacheTTL > 0 keeps looked up memberships for that long.
	MembershipCacheTTL time.Duration
	// MembershipCacheMaxMB caps the membership cache; 0 = unlimited.
	MembershipCacheMaxMB int

	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks
}

// BigSegmentStore reads big segment membership written by an external
// synchronizer. It never writes.
type BigSegmentStore struct {
	store  pr.SetStore
	prefix string
	log    Logger
	hooks  Hooks

	// lookups for one user hash share a single pair of set reads
	requests singleflight.Group
	cache    *bigcache.BigCache // nil: no caching
}

// cachedMembership is what the membership cache stores, msgpack encoded.
type cachedMembership struct {
	Included []string `msgpack:"i,omitempty"`
	Excluded []string `msgpack:"e,omitempty"`
}

func (c cachedMembership) membership() Membership {
	if len(c.Included) == 0 && len(c.Excluded) == 0 {
		return nil
	}
	return NewMembership(c.Included, c.Excluded)
}

func NewBigSegmentStore(opts BigSegmentOptions) (*BigSegmentStore, error) {
	if opts.Provider == nil {
		return nil, ErrNilProvider
	}
	s := &BigSegmentStore{
		store:  opts.Provider,
		prefix: coalesce(opts.Prefix, DefaultPrefix),
		log:    coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:  coalesce[Hooks](opts.Hooks, NopHooks{}),
	}
	if opts.MembershipCacheTTL > 0 {
		conf := bigcache.DefaultConfig(opts.MembershipCacheTTL)
		conf.Shards = 64
		conf.MaxEntriesInWindow = 10_000
		conf.MaxEntrySize = 256
		conf.Verbose = false
		if opts.MembershipCacheTTL < conf.CleanWindow {
			conf.CleanWindow = opts.MembershipCacheTTL
		}
		if opts.MembershipCacheMaxMB > 0 {
			conf.HardMaxCacheSize = opts.MembershipCacheMaxMB
		}
		c, err := bigcache.New(context.Background(), conf)
		if err != nil {
			return nil, fmt.Errorf("flagstore: membership cache: %w", err)
		}
		s.cache = c
	}
	return s, nil
}

// GetMembership returns the user's membership, or nil when no segment
// references the user at all.
func (s *BigSegmentStore) GetMembership(ctx context.Context, userHash string) (Membership, error) {
	if s.cache != nil {
		if m, ok := s.cached(userHash); ok {
			return m.membership(), nil
		}
	}
	// the shared read outlives any one caller; each caller waits on its own ctx
	ch := s.requests.DoChan(userHash, func() (any, error) {
		return s.fetch(context.WithoutCancel(ctx), userHash)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(cachedMembership).membership(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *BigSegmentStore) cached(userHash string) (cachedMembership, bool) {
	b, err := s.cache.Get(userHash)
	if err != nil {
		return cachedMembership{}, false
	}
	var m cachedMembership
	if err := msgpack.Unmarshal(b, &m); err != nil {
		_ = s.cache.Delete(userHash) // self-heal
		return cachedMembership{}, false
	}
	return m, true
}

func (s *BigSegmentStore) fetch(ctx context.Context, userHash string) (cachedMembership, error) {
	included, err := s.store.Members(ctx, util.BigSegmentIncludeKey(s.prefix, userHash))
	if err != nil {
		s.hooks.StoreError("members", err)
		return cachedMembership{}, err
	}
	excluded, err := s.store.Members(ctx, util.BigSegmentExcludeKey(s.prefix, userHash))
	if err != nil {
		s.hooks.StoreError("members", err)
		return cachedMembership{}, err
	}
	m := cachedMembership{Included: included, Excluded: excluded}
	if s.cache != nil {
		b, err := msgpack.Marshal(m)
		if err == nil {
			err = s.cache.Set(userHash, b)
		}
		if err != nil {
			// only costs a store read next time
			s.log.Debug("membership not cached", Fields{"err": err})
		}
	}
	return m, nil
}

// GetMetadata returns nil, nil when the synchronizer has never run.
func (s *BigSegmentStore) GetMetadata(ctx context.Context) (*StoreMetadata, error) {
	v, ok, err := s.store.GetString(ctx, util.BigSegmentsSyncTimeKey(s.prefix))
	if err != nil {
		s.hooks.StoreError("metadata", err)
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if v == "" {
		return &StoreMetadata{}, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("flagstore: big segments sync time %q: %w", v, err)
	}
	return &StoreMetadata{LastUpToDate: time.UnixMilli(ms)}, nil
}

func (s *BigSegmentStore) Close(ctx context.Context) error {
	var errs []error
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	errs = append(errs, s.store.Close(ctx))
	return errors.Join(errs...)
}
