package codec

import (
	"errors"

	"google.golang.org/protobuf/proto"
)

var errNoProtoCtor = errors.New("codec: protobuf codec has no message constructor")

// Protobuf encodes payloads that are protobuf messages.
// Deterministic marshaling is on so equal messages produce equal bytes.
type Protobuf[T proto.Message] struct {
	new func() T // e.g. func() *flagpb.Flag { return &flagpb.Flag{} }
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	if c.new == nil {
		var zero T
		return zero, errNoProtoCtor
	}
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}
