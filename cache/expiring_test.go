package cache

import (
	"sync"
	"testing"
	"time"
)

func TestGetExistingValue(t *testing.T) {
	c := NewExpiringCache[string, string](Config{})
	defer c.Close()

	c.Set("key", "value")
	if got := c.Get("key"); got != "value" {
		t.Fatalf("Get = %q, want %q", got, "value")
	}
	if got, ok := c.TryGet("key"); !ok || got != "value" {
		t.Fatalf("TryGet = (%q,%v), want (value,true)", got, ok)
	}
}

func TestGetMissingValue(t *testing.T) {
	c := NewExpiringCache[string, string](Config{})
	defer c.Close()

	if got := c.Get("key"); got != "" {
		t.Fatalf("Get on missing key = %q, want zero value", got)
	}
	if _, ok := c.TryGet("key"); ok {
		t.Fatalf("TryGet on missing key reported found")
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	c := NewExpiringCache[string, int](Config{})
	defer c.Close()

	c.Set("a", 1)
	c.Delete("a")
	if _, ok := c.TryGet("a"); ok {
		t.Fatalf("deleted key still readable")
	}
}

func TestNoTTLNeverExpiresAndTracksNoOrder(t *testing.T) {
	clk := newFakeClock()
	c := NewExpiringCache[string, int](Config{Clock: clk})
	defer c.Close()

	for i := 0; i < 10; i++ {
		c.Set("k", i)
	}
	clk.Advance(365 * 24 * time.Hour)
	if v, ok := c.TryGet("k"); !ok || v != 9 {
		t.Fatalf("TryGet = (%d,%v), want (9,true)", v, ok)
	}
	if len(c.order) != 0 {
		t.Fatalf("cache without TTL should not queue insertions, queued %d", len(c.order))
	}
	if c.stopCh != nil {
		t.Fatalf("cache without TTL should not start a purge loop")
	}
}

func TestEntryCanExpireBeforePurge(t *testing.T) {
	clk := newFakeClock()
	c := NewExpiringCache[string, string](Config{TTL: 200 * time.Millisecond, Clock: clk})
	defer c.Close()

	c.Set("key", "value")
	clk.Advance(199 * time.Millisecond)
	if _, ok := c.TryGet("key"); !ok {
		t.Fatalf("entry expired early")
	}
	clk.Advance(time.Millisecond)
	if _, ok := c.TryGet("key"); ok {
		t.Fatalf("expired entry returned")
	}
	// still stored until the purge runs
	if n := c.Len(); n != 1 {
		t.Fatalf("Len = %d, want 1 before purge", n)
	}
	if removed := c.purge(); removed != 1 || c.Len() != 0 {
		t.Fatalf("purge removed %d, Len %d; want 1, 0", removed, c.Len())
	}
}

func TestPurgeStopsAtFirstUnexpired(t *testing.T) {
	clk := newFakeClock()
	c := NewExpiringCache[string, int](Config{TTL: 200 * time.Millisecond, Clock: clk})
	defer c.Close()

	c.Set("a", 1)
	clk.Advance(100 * time.Millisecond)
	c.Set("b", 2)
	clk.Advance(150 * time.Millisecond) // a expired at 200, b expires at 300

	if removed := c.purge(); removed != 1 {
		t.Fatalf("purge removed %d, want 1", removed)
	}
	if _, ok := c.TryGet("b"); !ok {
		t.Fatalf("unexpired entry was purged")
	}
	if n := c.Len(); n != 1 {
		t.Fatalf("Len = %d, want 1", n)
	}
}

func TestPurgeSkipsSupersededSlots(t *testing.T) {
	clk := newFakeClock()
	c := NewExpiringCache[string, int](Config{TTL: 200 * time.Millisecond, Clock: clk})
	defer c.Close()

	c.Set("a", 1)
	clk.Advance(150 * time.Millisecond)
	c.Set("a", 2) // restarts a's TTL; the first slot is now stale
	clk.Advance(100 * time.Millisecond)

	if removed := c.purge(); removed != 0 {
		t.Fatalf("purge removed %d live entries, want 0", removed)
	}
	if v, ok := c.TryGet("a"); !ok || v != 2 {
		t.Fatalf("TryGet = (%d,%v), want (2,true)", v, ok)
	}
	if got := len(c.order) - c.head; got != 1 {
		t.Fatalf("queue holds %d slots, want 1 after skipping the stale one", got)
	}
}

func TestPurgeAfterDelete(t *testing.T) {
	clk := newFakeClock()
	c := NewExpiringCache[string, int](Config{TTL: time.Second, Clock: clk})
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	clk.Advance(2 * time.Second)

	if removed := c.purge(); removed != 1 {
		t.Fatalf("purge removed %d, want 1 (only b was live)", removed)
	}
	if len(c.order) != 0 || c.head != 0 {
		t.Fatalf("queue not compacted: len=%d head=%d", len(c.order), c.head)
	}
}

func TestPurgeLoopRunsOnTick(t *testing.T) {
	clk := newFakeClock()
	c := NewExpiringCache[string, int](Config{TTL: time.Second, PurgeInterval: time.Second, Clock: clk})
	defer c.Close()

	c.Set("a", 1)
	clk.Advance(2 * time.Second)
	clk.tick() // received by the loop
	clk.tick() // the second send only lands once the first purge returned

	if n := c.Len(); n != 0 {
		t.Fatalf("Len = %d after purge ticks, want 0", n)
	}
}

func TestBackgroundPurgeWithSystemClock(t *testing.T) {
	c := NewExpiringCache[string, int](Config{TTL: 20 * time.Millisecond, PurgeInterval: 5 * time.Millisecond})
	defer c.Close()

	c.Set("a", 1)
	deadline := time.Now().Add(2 * time.Second)
	for c.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("background purge never removed the expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCloseDoesNotDeadlockWithConcurrentAccess(t *testing.T) {
	c := NewExpiringCache[int, int](Config{TTL: time.Millisecond, PurgeInterval: time.Millisecond})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				c.Set(g*1000+i%1000, i)
				c.TryGet(g*1000 + i%1000)
			}
		}(g)
	}

	time.Sleep(20 * time.Millisecond)
	done := make(chan struct{})
	go func() {
		_ = c.Close()
		_ = c.Close() // idempotent
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Close blocked")
	}
	close(stop)
	wg.Wait()

	// still usable after Close, just no longer purged in the background
	c.Set(-1, -1)
	if v, ok := c.TryGet(-1); !ok || v != -1 {
		t.Fatalf("Set/TryGet after Close = (%d,%v)", v, ok)
	}
}

func TestClearDropsEntriesAndQueue(t *testing.T) {
	clk := newFakeClock()
	c := NewExpiringCache[string, int](Config{TTL: time.Second, Clock: clk})
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()
	if c.Len() != 0 || len(c.order) != 0 {
		t.Fatalf("Clear left %d entries, %d queued", c.Len(), len(c.order))
	}
	c.Set("a", 3)
	if v, ok := c.TryGet("a"); !ok || v != 3 {
		t.Fatalf("TryGet after Clear = (%d,%v)", v, ok)
	}
}
