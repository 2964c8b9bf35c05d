// Package codec turns record payloads into bytes and back.
//
// A codec only sees the payload of a live record. Version and deletion state
// travel in the record envelope written by flagstore.NewKind, so codecs never
// have to model tombstones.
package codec

// Codec encodes/decodes payloads of type V.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
