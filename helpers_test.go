package flagstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unkn0wn-root/flagstore/cache"
	"github.com/unkn0wn-root/flagstore/provider/memory"
)

// fakeStore wraps the in-memory provider with call counters and injectable
// failures.
type fakeStore struct {
	*memory.Store

	gets   atomic.Int32
	puts   atomic.Int32
	exists atomic.Int32

	mu        sync.Mutex
	getErr    error
	putErr    error
	existsErr error
}

func newFakeStore() *fakeStore { return &fakeStore{Store: memory.New()} }

func (f *fakeStore) fail(get, put, exists error) {
	f.mu.Lock()
	f.getErr, f.putErr, f.existsErr = get, put, exists
	f.mu.Unlock()
}

func (f *fakeStore) errs() (get, put, exists error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getErr, f.putErr, f.existsErr
}

func (f *fakeStore) Get(ctx context.Context, hashKey, field string) ([]byte, bool, error) {
	f.gets.Add(1)
	if err, _, _ := f.errs(); err != nil {
		return nil, false, err
	}
	return f.Store.Get(ctx, hashKey, field)
}

func (f *fakeStore) ConditionalPut(ctx context.Context, hashKey, field string, old, value []byte) (bool, error) {
	f.puts.Add(1)
	if _, err, _ := f.errs(); err != nil {
		return false, err
	}
	return f.Store.ConditionalPut(ctx, hashKey, field, old, value)
}

func (f *fakeStore) Exists(ctx context.Context, key string) (bool, error) {
	f.exists.Add(1)
	if _, _, err := f.errs(); err != nil {
		return false, err
	}
	return f.Store.Exists(ctx, key)
}

type recordingHooks struct {
	NopHooks
	mu        sync.Mutex
	stale     []string
	conflicts []int
	loadErrs  int
	inits     int
}

func (h *recordingHooks) StaleUpdate(_, key string, _, _ int) {
	h.mu.Lock()
	h.stale = append(h.stale, key)
	h.mu.Unlock()
}

func (h *recordingHooks) UpdateConflict(_, _ string, attempt int) {
	h.mu.Lock()
	h.conflicts = append(h.conflicts, attempt)
	h.mu.Unlock()
}

func (h *recordingHooks) CacheLoadError(string, string, error) {
	h.mu.Lock()
	h.loadErrs++
	h.mu.Unlock()
}

func (h *recordingHooks) InitCompleted(int, int) {
	h.mu.Lock()
	h.inits++
	h.mu.Unlock()
}

// manualClock only moves on Advance; its tickers never fire.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *manualClock) NewTicker(time.Duration) cache.Ticker { return idleTicker{} }

type idleTicker struct{}

func (idleTicker) C() <-chan time.Time { return nil }
func (idleTicker) Stop()               {}

func newTestStore(t *testing.T, p *fakeStore, optsOpt func(*Options)) *store {
	t.Helper()
	opts := Options{
		Provider: p,
		Prefix:   "test",
		CacheTTL: time.Minute,
	}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	s, err := newStore(opts)
	if err != nil {
		t.Fatalf("newStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func item(version int, payload string) ItemDescriptor {
	return ItemDescriptor{Version: version, Item: []byte(payload)}
}

func payloadOf(t *testing.T, it ItemDescriptor) string {
	t.Helper()
	b, ok := it.Item.([]byte)
	if !ok {
		t.Fatalf("item payload is %T, want []byte", it.Item)
	}
	return string(b)
}
