// Package flagstore persists versioned feature-flag data in an external
// key/value store and keeps a local read-through cache in front of it.
//
// Every record carries a version. Writes go through a compare-and-swap loop
// (versionedStore) so the stored version for a key never decreases, even
// with several processes writing at once. Deletes are tombstones: they keep
// the version so an older write arriving late still loses.
//
// Components:
//   - provider.KeyedStore: the external store (Redis, or in-memory).
//   - DataKind: a record category with its namespace and payload codec.
//   - Store: Init/Get/GetAll/Upsert/Delete/Initialized over a record cache
//     (cache.LoadingCache) that coalesces concurrent misses per key.
//   - BigSegmentStore: read-only membership lookups for big segments.
//
// Keys:
//
//	<prefix>:<namespace>   - hash of every record of one kind
//	<prefix>:$inited       - set once a full data set was written
//
// Usage:
//
//	st, _ := flagstore.New(flagstore.Options{
//	    Provider: redisProvider,
//	    CacheTTL: flagstore.DefaultCacheTTL,
//	})
//	applied, err := st.Upsert(ctx, flagstore.Features, "my-flag",
//	    flagstore.ItemDescriptor{Version: 7, Item: raw})
package flagstore
