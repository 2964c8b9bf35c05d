// Package ristretto is a bounded cache.Storage backed by dgraph-io/ristretto.
//
// Unlike cache.ExpiringCache it caps memory: ristretto may refuse or evict
// entries under pressure. A refused Set only means the next read goes to the
// store again, which is always safe for a read-through cache.
package ristretto

import (
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/flagstore/cache"
)

type Config struct {
	NumCounters int64
	MaxCost     int64 // with unit cost this is the entry limit
	BufferItems int64
	Metrics     bool
	TTL         time.Duration // <= 0: no expiry
}

// Storage maps K to a ristretto string key with keyFn, because ristretto
// only hashes a fixed set of key types.
type Storage[K comparable, V any] struct {
	c     *rc.Cache
	keyFn func(K) string
	ttl   time.Duration
}

var _ cache.Storage[string, int] = (*Storage[string, int])(nil)

func New[K comparable, V any](cfg Config, keyFn func(K) string) (*Storage[K, V], error) {
	if keyFn == nil {
		return nil, errors.New("ristretto: key function is required")
	}
	if cfg.MaxCost <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = cfg.MaxCost * 10 // ristretto's recommended ratio
	}
	if cfg.BufferItems <= 0 {
		cfg.BufferItems = 64
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	ttl := cfg.TTL
	if ttl < 0 {
		ttl = 0
	}
	return &Storage[K, V]{c: c, keyFn: keyFn, ttl: ttl}, nil
}

func (s *Storage[K, V]) TryGet(key K) (V, bool) {
	var zero V
	raw, ok := s.c.Get(s.keyFn(key))
	if !ok {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		// self-heal: drop unexpected entry shape
		s.c.Del(s.keyFn(key))
		return zero, false
	}
	return v, true
}

// Set waits for ristretto's write buffer so the value is visible to the next
// TryGet on any goroutine.
func (s *Storage[K, V]) Set(key K, value V) {
	s.c.SetWithTTL(s.keyFn(key), value, 1, s.ttl)
	s.c.Wait()
}

func (s *Storage[K, V]) Delete(key K) {
	s.c.Del(s.keyFn(key))
}

func (s *Storage[K, V]) Clear() {
	s.c.Clear()
}

func (s *Storage[K, V]) Close() error {
	s.c.Close()
	return nil
}

// Metrics is nil unless Config.Metrics was set.
func (s *Storage[K, V]) Metrics() *rc.Metrics { return s.c.Metrics }
