package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrLoaderPanic wraps a panic raised by a loader. The panic is turned into
// an error so every waiter is released.
var ErrLoaderPanic = errors.New("cache: loader panicked")

// LoaderFunc computes the value for a missing key.
type LoaderFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// call is one in-flight load. val and err are written once, before done is
// closed. superseded is guarded by LoadingCache.mu.
type call[V any] struct {
	done       chan struct{}
	val        V
	err        error
	superseded bool
}

// LoadingCache memoizes a loader. Concurrent Gets for the same missing key
// share one loader invocation; loads for different keys run in parallel.
//
// A failed load stores nothing, hands the error to every caller waiting on
// that load, and the next Get tries again.
type LoadingCache[K comparable, V any] struct {
	loader LoaderFunc[K, V]
	store  Storage[K, V]

	// mu guards calls only. The loader never runs under it.
	mu    sync.Mutex
	calls map[K]*call[V]
}

// NewLoadingCache stores values in an ExpiringCache built from cfg.
func NewLoadingCache[K comparable, V any](loader LoaderFunc[K, V], cfg Config) *LoadingCache[K, V] {
	return NewLoadingCacheWithStorage[K, V](loader, NewExpiringCache[K, V](cfg))
}

// NewLoadingCacheWithStorage lets the caller pick the backing map. The
// LoadingCache owns store from here on and closes it in Close.
func NewLoadingCacheWithStorage[K comparable, V any](loader LoaderFunc[K, V], store Storage[K, V]) *LoadingCache[K, V] {
	return &LoadingCache[K, V]{
		loader: loader,
		store:  store,
		calls:  make(map[K]*call[V]),
	}
}

// Get returns the cached value or loads it. A caller that joins a load
// started by someone else stops waiting when its own ctx ends; the load
// itself runs under the ctx of the caller that started it.
func (c *LoadingCache[K, V]) Get(ctx context.Context, key K) (V, error) {
	if v, ok := c.store.TryGet(key); ok {
		return v, nil
	}

	c.mu.Lock()
	if cl, ok := c.calls[key]; ok {
		c.mu.Unlock()
		return wait(ctx, cl)
	}
	// A load may have finished between TryGet and Lock.
	if v, ok := c.store.TryGet(key); ok {
		c.mu.Unlock()
		return v, nil
	}
	cl := &call[V]{done: make(chan struct{})}
	c.calls[key] = cl
	c.mu.Unlock()

	c.load(ctx, key, cl)
	return cl.val, cl.err
}

// Set stores value directly. A load for key that is in flight right now
// still answers its waiters but will not overwrite value.
func (c *LoadingCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	if cl, ok := c.calls[key]; ok {
		cl.superseded = true
	}
	c.store.Set(key, value)
	c.mu.Unlock()
}

// SetIf stores value only when replace, given the current entry, says so.
// The check and the write happen under one lock, so concurrent SetIf calls
// for a key are ordered. A load in flight for key is not stored either way.
func (c *LoadingCache[K, V]) SetIf(key K, value V, replace func(cur V, ok bool) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.calls[key]; ok {
		cl.superseded = true
	}
	cur, ok := c.store.TryGet(key)
	if !replace(cur, ok) {
		return false
	}
	c.store.Set(key, value)
	return true
}

// Delete drops key so the next Get reloads it.
func (c *LoadingCache[K, V]) Delete(key K) {
	c.mu.Lock()
	if cl, ok := c.calls[key]; ok {
		cl.superseded = true
	}
	c.store.Delete(key)
	c.mu.Unlock()
}

// Clear drops every entry. Loads in flight right now are not stored.
func (c *LoadingCache[K, V]) Clear() {
	c.mu.Lock()
	for _, cl := range c.calls {
		cl.superseded = true
	}
	c.store.Clear()
	c.mu.Unlock()
}

// Close releases the backing storage (and its purge loop).
func (c *LoadingCache[K, V]) Close() error {
	return c.store.Close()
}

func (c *LoadingCache[K, V]) load(ctx context.Context, key K, cl *call[V]) {
	defer func() {
		if r := recover(); r != nil {
			var zero V
			cl.val = zero
			cl.err = fmt.Errorf("%w: %v", ErrLoaderPanic, r)
		}
		c.mu.Lock()
		if cl.err == nil && !cl.superseded {
			c.store.Set(key, cl.val)
		}
		delete(c.calls, key)
		c.mu.Unlock()
		close(cl.done)
	}()
	cl.val, cl.err = c.loader(ctx, key)
}

func wait[V any](ctx context.Context, cl *call[V]) (V, error) {
	select {
	case <-cl.done:
		return cl.val, cl.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}
