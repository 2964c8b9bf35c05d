package sloghooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/flagstore"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	StaleEvery    uint64
	ConflictEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	staleCtr    atomic.Uint64
	conflictCtr atomic.Uint64
}

var _ flagstore.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) StaleUpdate(ns, key string, stored, attempted int) {
	if h.l == nil || !sample(h.opts.StaleEvery, &h.staleCtr) {
		return
	}
	h.l.Debug("flagstore.stale_update",
		"ns", ns,
		"key", h.redact(key),
		"stored", stored,
		"attempted", attempted)
}

// UpdateConflict logs at Warn once a single update needed several rounds.
func (h *Hooks) UpdateConflict(ns, key string, attempt int) {
	if h.l == nil || !sample(h.opts.ConflictEvery, &h.conflictCtr) {
		return
	}
	level := slog.LevelDebug
	if attempt >= 5 {
		level = slog.LevelWarn
	}
	h.l.Log(context.Background(), level, "flagstore.update_conflict",
		"ns", ns,
		"key", h.redact(key),
		"attempt", attempt)
}

func (h *Hooks) StoreError(op string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("flagstore.store_error",
		"op", op,
		"err", err)
}

func (h *Hooks) CacheLoadError(ns, key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("flagstore.cache_load_error",
		"ns", ns,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) InitCompleted(kinds, items int) {
	if h.l == nil {
		return
	}
	h.l.Info("flagstore.init_completed",
		"kinds", kinds,
		"items", items)
}
