// Package memory is an in-process provider.KeyedStore and provider.SetStore.
//
// It is what tests run against and is enough for a single process that does
// not need the data to outlive it. Values are copied in and out so callers
// can never alias stored bytes.
package memory

import (
	"bytes"
	"context"
	"errors"
	"sync"

	pr "github.com/unkn0wn-root/flagstore/provider"
)

var ErrClosed = errors.New("memory provider: closed")

type Store struct {
	mu      sync.RWMutex
	hashes  map[string]map[string][]byte
	strings map[string]string
	sets    map[string]map[string]struct{}
	closed  bool
}

var (
	_ pr.KeyedStore = (*Store)(nil)
	_ pr.SetStore   = (*Store)(nil)
)

func New() *Store {
	return &Store{
		hashes:  make(map[string]map[string][]byte),
		strings: make(map[string]string),
		sets:    make(map[string]map[string]struct{}),
	}
}

func (s *Store) Get(_ context.Context, hashKey, field string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	v, ok := s.hashes[hashKey][field]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

func (s *Store) GetAll(_ context.Context, hashKey string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	h := s.hashes[hashKey]
	out := make(map[string][]byte, len(h))
	for k, v := range h {
		out[k] = bytes.Clone(v)
	}
	return out, nil
}

func (s *Store) ConditionalPut(_ context.Context, hashKey, field string, old, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	h := s.hashes[hashKey]
	cur, ok := h[field]
	if old == nil {
		if ok {
			return false, nil
		}
	} else if !ok || !bytes.Equal(cur, old) {
		return false, nil
	}
	if h == nil {
		h = make(map[string][]byte)
		s.hashes[hashKey] = h
	}
	h[field] = bytes.Clone(value)
	return true, nil
}

func (s *Store) ReplaceAll(_ context.Context, collections map[string]map[string][]byte, markerKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for hk, items := range collections {
		h := make(map[string][]byte, len(items))
		for field, v := range items {
			h[field] = bytes.Clone(v)
		}
		s.hashes[hk] = h
	}
	s.strings[markerKey] = ""
	return nil
}

// Exists covers plain keys and sets. Hashes are addressed through Get.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrClosed
	}
	if _, ok := s.strings[key]; ok {
		return true, nil
	}
	_, ok := s.sets[key]
	return ok, nil
}

func (s *Store) Members(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	set := s.sets[key]
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) GetString(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}
	v, ok := s.strings[key]
	return v, ok, nil
}

// AddMembers adds to a set. It stands in for the external synchronizer that
// populates big segment data.
func (s *Store) AddMembers(key string, members ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.sets[key]
	if set == nil {
		set = make(map[string]struct{}, len(members))
		s.sets[key] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
}

func (s *Store) SetString(key, value string) {
	s.mu.Lock()
	s.strings[key] = value
	s.mu.Unlock()
}

// DeleteKey removes a plain key or set.
func (s *Store) DeleteKey(key string) {
	s.mu.Lock()
	delete(s.strings, key)
	delete(s.sets, key)
	s.mu.Unlock()
}

// Close makes every later call fail with ErrClosed.
func (s *Store) Close(context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
