// Package cache holds the in-process caches that sit in front of the
// external store: ExpiringCache (uniform TTL, background purge) and
// LoadingCache (read-through with coalesced loads).
package cache

import (
	"sync"
	"time"
)

// DefaultPurgeInterval is used when Config.PurgeInterval is zero.
const DefaultPurgeInterval = 30 * time.Second

// Storage is what LoadingCache needs from its backing map.
type Storage[K comparable, V any] interface {
	TryGet(key K) (V, bool)
	Set(key K, value V)
	Delete(key K)
	Clear()
	Close() error
}

// Config configures an ExpiringCache.
type Config struct {
	TTL           time.Duration // <= 0: entries never expire
	PurgeInterval time.Duration // 0 => DefaultPurgeInterval
	Clock         Clock         // nil => SystemClock
}

type entry[V any] struct {
	value     V
	expiresAt time.Time // zero => never
	seq       uint64
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// orderRec is one slot of the insertion queue. A slot whose seq no longer
// matches the live entry was superseded by a later Set (or a Delete) and is
// skipped when it reaches the front.
type orderRec[K comparable] struct {
	key K
	seq uint64
}

// ExpiringCache is a map with one TTL for every entry and a background loop
// that drops expired entries.
//
// The purge walks an insertion-ordered queue from the front and stops at the
// first live, unexpired entry. That is only correct because the TTL is fixed
// per cache: insertion order is then also expiration order. Do not add
// per-entry TTLs without replacing the queue with a real expiry index.
type ExpiringCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	order   []orderRec[K]
	head    int
	seq     uint64

	ttl   time.Duration
	clock Clock

	ticker    Ticker
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ Storage[string, int] = (*ExpiringCache[string, int])(nil)

// NewExpiringCache starts the purge loop only when a TTL is set.
func NewExpiringCache[K comparable, V any](cfg Config) *ExpiringCache[K, V] {
	c := &ExpiringCache[K, V]{
		entries: make(map[K]entry[V]),
		ttl:     cfg.TTL,
		clock:   cfg.Clock,
	}
	if c.clock == nil {
		c.clock = SystemClock{}
	}
	if c.ttl <= 0 {
		return c
	}

	interval := cfg.PurgeInterval
	if interval <= 0 {
		interval = DefaultPurgeInterval
	}
	c.ticker = c.clock.NewTicker(interval)
	c.stopCh = make(chan struct{})
	c.wg.Add(1)
	go c.purgeLoop()
	return c
}

// TryGet never returns an expired value, even if the purge has not run yet.
func (c *ExpiringCache[K, V]) TryGet(key K) (V, bool) {
	now := c.clock.Now()
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || e.expired(now) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Get returns the zero value when the key is missing or expired.
func (c *ExpiringCache[K, V]) Get(key K) V {
	v, _ := c.TryGet(key)
	return v
}

// Set inserts or replaces key and restarts its TTL.
func (c *ExpiringCache[K, V]) Set(key K, value V) {
	now := c.clock.Now()
	c.mu.Lock()
	c.seq++
	e := entry[V]{value: value, seq: c.seq}
	if c.ttl > 0 {
		e.expiresAt = now.Add(c.ttl)
		c.order = append(c.order, orderRec[K]{key: key, seq: c.seq})
	}
	c.entries[key] = e
	c.mu.Unlock()
}

func (c *ExpiringCache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *ExpiringCache[K, V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[K]entry[V])
	c.order = nil
	c.head = 0
	c.mu.Unlock()
}

// Len counts stored entries, including expired ones the purge has not
// reached yet.
func (c *ExpiringCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the purge loop. Safe to call more than once.
func (c *ExpiringCache[K, V]) Close() error {
	c.closeOnce.Do(func() {
		if c.stopCh == nil {
			return
		}
		close(c.stopCh)
		c.wg.Wait()
		c.ticker.Stop()
	})
	return nil
}

func (c *ExpiringCache[K, V]) purgeLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ticker.C():
			c.purge()
		case <-c.stopCh:
			return
		}
	}
}

// purge removes expired entries from the front of the queue and reports how
// many live entries it dropped.
func (c *ExpiringCache[K, V]) purge() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	var empty orderRec[K]
	for c.head < len(c.order) {
		rec := c.order[c.head]
		if e, ok := c.entries[rec.key]; ok && e.seq == rec.seq {
			if !e.expired(now) {
				break
			}
			delete(c.entries, rec.key)
			removed++
		}
		c.order[c.head] = empty
		c.head++
	}
	c.compact()
	return removed
}

// compact reclaims the consumed front of the queue once it is at least half
// of the backing slice. Caller holds c.mu.
func (c *ExpiringCache[K, V]) compact() {
	if c.head == 0 || c.head*2 < len(c.order) {
		return
	}
	n := copy(c.order, c.order[c.head:])
	var empty orderRec[K]
	for i := n; i < len(c.order); i++ {
		c.order[i] = empty
	}
	c.order = c.order[:n]
	c.head = 0
}
