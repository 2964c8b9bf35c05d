// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/flagstore"
//	asynchook "github.com/unkn0wn-root/flagstore/hooks/async"
//	"github.com/unkn0wn-root/flagstore/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    ConflictEvery: 10, // sample logs: ~every 10th CAS retry
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	st, _ := flagstore.New(flagstore.Options{
//	    Provider: provider,
//	    CacheTTL: flagstore.DefaultCacheTTL,
//	    Hooks:    hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/flagstore"
)

type Hooks struct {
	inner flagstore.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once

	mu     sync.RWMutex // orders try against Close
	closed bool
}

var _ flagstore.Hooks = (*Hooks)(nil)

func New(inner flagstore.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events raised after
// Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) StaleUpdate(ns, k string, stored, attempted int) {
	h.try(func() { h.inner.StaleUpdate(ns, k, stored, attempted) })
}
func (h *Hooks) UpdateConflict(ns, k string, attempt int) {
	h.try(func() { h.inner.UpdateConflict(ns, k, attempt) })
}
func (h *Hooks) StoreError(op string, err error) { h.try(func() { h.inner.StoreError(op, err) }) }
func (h *Hooks) CacheLoadError(ns, k string, err error) {
	h.try(func() { h.inner.CacheLoadError(ns, k, err) })
}
func (h *Hooks) InitCompleted(kinds, items int) { h.try(func() { h.inner.InitCompleted(kinds, items) }) }
