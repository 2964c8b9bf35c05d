// Package provider defines the external key/value store used by flagstore.
//
// Records live in one hash per data kind. Implementations must be
// byte-for-byte transparent: a field read back returns exactly the bytes
// that were written, with no metadata added and no re-encoding. The
// conditional write compares those bytes, so any transform would break it.
package provider

import "context"

// KeyedStore is the persistent side of the store. It must be safe for
// concurrent use, including by other processes writing the same keys.
type KeyedStore interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	// Transport or server failures return a non-nil error.
	Get(ctx context.Context, hashKey, field string) ([]byte, bool, error)

	// GetAll returns every field of a hash. A missing hash is an empty map.
	GetAll(ctx context.Context, hashKey string) (map[string][]byte, error)

	// ConditionalPut writes value iff the field currently holds exactly old.
	// old == nil means the field must be absent. (false, nil) reports that
	// the comparison failed and nothing was written; a non-nil error is an
	// I/O failure and the outcome of the write is unknown.
	ConditionalPut(ctx context.Context, hashKey, field string, old, value []byte) (bool, error)

	// ReplaceAll atomically empties each hash in collections, fills it with
	// the given fields and sets markerKey. Hashes not named are untouched.
	ReplaceAll(ctx context.Context, collections map[string]map[string][]byte, markerKey string) error

	// Exists reports whether a plain key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases resources the store owns.
	Close(ctx context.Context) error
}

// SetStore is the read surface big segment data is kept in. It is written
// by an external synchronizer, never by flagstore.
type SetStore interface {
	// Members returns the members of a set; a missing set is empty.
	Members(ctx context.Context, key string) ([]string, error)

	// GetString returns a plain string value.
	GetString(ctx context.Context, key string) (string, bool, error)

	Close(ctx context.Context) error
}
