package ristretto

import (
	"context"
	"testing"

	"github.com/unkn0wn-root/flagstore/cache"
)

type recordKey struct{ ns, key string }

func keyString(k recordKey) string { return k.ns + ":" + k.key }

func TestSetGetDelete(t *testing.T) {
	s, err := New[recordKey, int](Config{MaxCost: 100}, keyString)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	k := recordKey{"features", "flag"}
	s.Set(k, 7)
	if v, ok := s.TryGet(k); !ok || v != 7 {
		t.Fatalf("TryGet = (%d,%v), want (7,true)", v, ok)
	}
	s.Delete(k)
	if _, ok := s.TryGet(k); ok {
		t.Fatalf("deleted key still readable")
	}
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New[recordKey, int](Config{MaxCost: 10}, nil); err == nil {
		t.Fatalf("expected error without key function")
	}
	if _, err := New[recordKey, int](Config{}, keyString); err == nil {
		t.Fatalf("expected error without MaxCost")
	}
}

func TestBacksLoadingCache(t *testing.T) {
	s, err := New[recordKey, string](Config{MaxCost: 100}, keyString)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	calls := 0
	lc := cache.NewLoadingCacheWithStorage[recordKey, string](func(_ context.Context, k recordKey) (string, error) {
		calls++
		return k.key, nil
	}, s)
	defer lc.Close()

	ctx := context.Background()
	k := recordKey{"segments", "seg"}
	for i := 0; i < 3; i++ {
		if v, err := lc.Get(ctx, k); err != nil || v != "seg" {
			t.Fatalf("Get = (%q,%v)", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("loader called %d times, want 1", calls)
	}
}

func TestClear(t *testing.T) {
	s, err := New[recordKey, int](Config{MaxCost: 100}, keyString)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	k := recordKey{"features", "flag"}
	s.Set(k, 1)
	s.Clear()
	if _, ok := s.TryGet(k); ok {
		t.Fatalf("entry survived Clear")
	}
}
