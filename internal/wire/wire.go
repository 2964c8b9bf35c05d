package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version     byte = 1
	flagDeleted byte = 1 << 0

	headerLen = 4 + 1 + 1 + 8 + 4
)

var (
	ErrCorrupt = errors.New("flagstore: corrupt record")
	magic4     = [...]byte{'L', 'D', 'F', 'S'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Record: magic(4) | ver(1) | flags(1) | version(i64 be) | vlen(u32 be) | payload(vlen)
//
// Tombstones are written with flagDeleted set and an empty payload.
func EncodeRecord(itemVersion int64, deleted bool, payload []byte) []byte {
	if deleted {
		payload = nil
	}
	var buf bytes.Buffer
	buf.Grow(headerLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var flags byte
	if deleted {
		flags |= flagDeleted
	}
	buf.WriteByte(flags)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], uint64(itemVersion))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// DecodeRecord returns a zero-copy payload slice into b.
func DecodeRecord(b []byte) (itemVersion int64, deleted bool, payload []byte, err error) {
	if len(b) < headerLen || !hasMagic(b) || b[4] != version {
		return 0, false, nil, ErrCorrupt
	}
	flags := b[5]
	if flags&^flagDeleted != 0 {
		return 0, false, nil, ErrCorrupt
	}

	off := 6
	itemVersion = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // trailing bytes are corruption too
		return 0, false, nil, ErrCorrupt
	}
	deleted = flags&flagDeleted != 0
	if deleted && vlen != 0 {
		return 0, false, nil, ErrCorrupt
	}
	return itemVersion, deleted, b[off : off+vlen], nil
}
