package flagstore

import (
	"fmt"
	"math"

	"github.com/unkn0wn-root/flagstore/codec"
	"github.com/unkn0wn-root/flagstore/internal/wire"
)

// DataKind is a category of records sharing a namespace, e.g. flags or
// segments. Kinds are created at startup and never change.
type DataKind interface {
	GetName() string
	Serialize(item ItemDescriptor) ([]byte, error)
	Deserialize(data []byte) (ItemDescriptor, error)
}

// ItemDescriptor is one versioned record. A deleted record is a tombstone:
// Item is nil and only the version matters.
//
// Versions are stored as int64. On 32-bit platforms a stored version that
// does not fit in int is a decode error, never a truncated version.
type ItemDescriptor struct {
	Version int
	Deleted bool
	Item    any
}

func Tombstone(version int) ItemDescriptor {
	return ItemDescriptor{Version: version, Deleted: true}
}

// SerializedItemDescriptor is a record as a store hands it back. Version 0
// means the store could not tell the version without decoding.
type SerializedItemDescriptor struct {
	Version        int
	Deleted        bool
	SerializedItem []byte
}

// Resolve returns the record's version and deleted state, decoding
// SerializedItem only when Version is the unknown sentinel.
func (s SerializedItemDescriptor) Resolve(kind DataKind) (version int, deleted bool, err error) {
	if s.Version != 0 {
		return s.Version, s.Deleted, nil
	}
	item, err := kind.Deserialize(s.SerializedItem)
	if err != nil {
		return 0, false, err
	}
	return item.Version, item.Deleted, nil
}

type KeyedItem struct {
	Key  string
	Item ItemDescriptor
}

type Collection struct {
	Kind  DataKind
	Items []KeyedItem
}

// FullDataSet is everything Init writes. Each listed kind is replaced as a
// whole; kinds not listed are left alone.
type FullDataSet []Collection

// CacheKey addresses one record in the local cache.
type CacheKey struct {
	Namespace string
	Key       string
}

// kind stores records as a wire envelope around the codec's payload, so the
// version and deleted flag never depend on the payload format.
type kind[T any] struct {
	namespace string
	codec     codec.Codec[T]
}

// NewKind builds a DataKind whose live items hold a T.
func NewKind[T any](namespace string, c codec.Codec[T]) DataKind {
	return &kind[T]{namespace: namespace, codec: c}
}

var (
	// Features holds flags as opaque bytes.
	Features = NewKind[[]byte]("features", codec.Bytes{})
	// Segments holds segments as opaque bytes.
	Segments = NewKind[[]byte]("segments", codec.Bytes{})
)

func (k *kind[T]) GetName() string { return k.namespace }

func (k *kind[T]) String() string { return k.namespace }

func (k *kind[T]) Serialize(item ItemDescriptor) ([]byte, error) {
	if item.Deleted {
		return wire.EncodeRecord(int64(item.Version), true, nil), nil
	}
	var v T
	if item.Item != nil {
		var ok bool
		if v, ok = item.Item.(T); !ok {
			return nil, fmt.Errorf("flagstore: %s item is %T, want %T", k.namespace, item.Item, v)
		}
	}
	payload, err := k.codec.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("flagstore: encode %s item: %w", k.namespace, err)
	}
	return wire.EncodeRecord(int64(item.Version), false, payload), nil
}

func (k *kind[T]) Deserialize(data []byte) (ItemDescriptor, error) {
	wv, deleted, payload, err := wire.DecodeRecord(data)
	if err != nil {
		return ItemDescriptor{}, err
	}
	ver, err := versionFromWire(wv)
	if err != nil {
		return ItemDescriptor{}, err
	}
	if deleted {
		return Tombstone(ver), nil
	}
	v, err := k.codec.Decode(payload)
	if err != nil {
		return ItemDescriptor{}, err
	}
	return ItemDescriptor{Version: ver, Item: v}, nil
}

func versionFromWire(v int64) (int, error) {
	if v < math.MinInt || v > math.MaxInt {
		return 0, fmt.Errorf("flagstore: version %d overflows int", v)
	}
	return int(v), nil
}
