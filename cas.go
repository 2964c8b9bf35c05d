package flagstore

import (
	"context"

	"github.com/unkn0wn-root/flagstore/internal/util"
	pr "github.com/unkn0wn-root/flagstore/provider"
)

// absentVersion stands for "no record stored" so any real version wins.
const absentVersion = -1

// lookup is the outcome of reading one record: found == false means the key
// is absent. It is also what the record cache holds, so misses are cached.
type lookup struct {
	item  ItemDescriptor
	found bool
}

// live reports a record callers may see; tombstones are hidden.
func (l lookup) live() bool { return l.found && !l.item.Deleted }

// supersedes reports whether l may replace cur in the record cache. Cached
// versions only move forward.
func (l lookup) supersedes(cur lookup, cached bool) bool {
	if !cached || !cur.found {
		return true
	}
	return l.found && l.item.Version > cur.item.Version
}

// versionedStore applies writes to a KeyedStore only when they carry a newer
// version than what is stored. It holds no locks: concurrent writers,
// in-process or not, are ordered by the store's conditional write.
type versionedStore struct {
	store  pr.KeyedStore
	prefix string
	log    Logger
	hooks  Hooks

	// updateHook runs before every conditional write.
	updateHook func(kind DataKind, key string)
}

func (s *versionedStore) itemsKey(kind DataKind) string {
	return util.ItemsKey(s.prefix, kind.GetName())
}

func (s *versionedStore) get(ctx context.Context, kind DataKind, key string) (lookup, error) {
	raw, ok, err := s.store.Get(ctx, s.itemsKey(kind), key)
	if err != nil {
		s.hooks.StoreError("get", err)
		return lookup{}, err
	}
	if !ok {
		return lookup{}, nil
	}
	item, err := kind.Deserialize(raw)
	if err != nil {
		return lookup{}, &DecodeError{Namespace: kind.GetName(), Key: key, Err: err}
	}
	return lookup{item: item, found: true}, nil
}

// getAll returns every record of kind, tombstones included.
func (s *versionedStore) getAll(ctx context.Context, kind DataKind) (map[string]ItemDescriptor, error) {
	raw, err := s.store.GetAll(ctx, s.itemsKey(kind))
	if err != nil {
		s.hooks.StoreError("get_all", err)
		return nil, err
	}
	out := make(map[string]ItemDescriptor, len(raw))
	for key, b := range raw {
		item, err := kind.Deserialize(b)
		if err != nil {
			return nil, &DecodeError{Namespace: kind.GetName(), Key: key, Err: err}
		}
		out[key] = item
	}
	return out, nil
}

func (s *versionedStore) init(ctx context.Context, data FullDataSet) (items int, err error) {
	collections := make(map[string]map[string][]byte, len(data))
	for _, coll := range data {
		fields := make(map[string][]byte, len(coll.Items))
		for _, ki := range coll.Items {
			b, err := coll.Kind.Serialize(ki.Item)
			if err != nil {
				return 0, err
			}
			fields[ki.Key] = b
		}
		collections[s.itemsKey(coll.Kind)] = fields
		items += len(fields)
	}
	if err := s.store.ReplaceAll(ctx, collections, util.InitedKey(s.prefix)); err != nil {
		s.hooks.StoreError("init", err)
		return 0, err
	}
	return items, nil
}

func (s *versionedStore) initialized(ctx context.Context) (bool, error) {
	ok, err := s.store.Exists(ctx, util.InitedKey(s.prefix))
	if err != nil {
		s.hooks.StoreError("initialized", err)
	}
	return ok, err
}

// upsert writes item unless the stored version is equal or newer.
//
// It returns whether item was written and the record that is now current,
// which is what the caller should cache. current is nil when that record is
// unknown because the re-read after a stale write failed.
//
// A rejected conditional write means another writer got in between the read
// and the write; the loop then re-reads and tries again. There is no retry
// limit. Each round either writes, or sees a version at least as new as
// item and stops, so the loop only spins while competitors keep landing
// older versions. UpdateConflict reports every round.
func (s *versionedStore) upsert(ctx context.Context, kind DataKind, key string, item ItemDescriptor) (applied bool, current *lookup, err error) {
	ns := kind.GetName()
	hashKey := s.itemsKey(kind)

	value, err := kind.Serialize(item)
	if err != nil {
		return false, nil, err
	}

	for attempt := 1; ; attempt++ {
		if attempt > 1 {
			if err := ctx.Err(); err != nil {
				return false, nil, &UpdateError{Namespace: ns, Key: key, Attempts: attempt - 1, Err: err}
			}
		}

		old, found, err := s.store.Get(ctx, hashKey, key)
		if err != nil {
			s.hooks.StoreError("get", err)
			s.log.Error("update read failed", recordFields(ns, key).with("attempt", attempt).with("err", err))
			return false, nil, &UpdateError{Namespace: ns, Key: key, Attempts: attempt, Err: err}
		}

		oldVersion := absentVersion
		if found {
			// stores hand back raw bytes, so the version has to be decoded
			oldVersion, _, err = SerializedItemDescriptor{SerializedItem: old}.Resolve(kind)
			if err != nil {
				return false, nil, &DecodeError{Namespace: ns, Key: key, Err: err}
			}
		} else {
			old = nil
		}

		if oldVersion >= item.Version {
			s.log.Debug("stale update ignored", recordFields(ns, key).with("stored", oldVersion).with("attempted", item.Version))
			s.hooks.StaleUpdate(ns, key, oldVersion, item.Version)
			cur, err := s.get(ctx, kind, key)
			if err != nil {
				s.log.Warn("re-read after stale update failed", recordFields(ns, key).with("err", err))
				return false, nil, nil
			}
			return false, &cur, nil
		}

		if s.updateHook != nil {
			s.updateHook(kind, key)
		}

		ok, err := s.store.ConditionalPut(ctx, hashKey, key, old, value)
		if err != nil {
			s.hooks.StoreError("put", err)
			s.log.Error("conditional write failed", recordFields(ns, key).with("attempt", attempt).with("err", err))
			return false, nil, &UpdateError{Namespace: ns, Key: key, Attempts: attempt, Err: err}
		}
		if ok {
			return true, &lookup{item: item, found: true}, nil
		}

		s.log.Debug("concurrent update, retrying", recordFields(ns, key).with("attempt", attempt))
		s.hooks.UpdateConflict(ns, key, attempt)
	}
}
