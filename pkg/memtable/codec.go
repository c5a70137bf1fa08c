package memtable

import (
	"encoding/binary"
	"fmt"

	"github.com/driftdb/drift/pkg/arena"
)

// ValueType represents the kind of a stored entry
type ValueType uint8

const (
	// TypeDeletion marks a tombstone: the key is deleted as of the
	// entry's sequence number and the value portion is empty
	TypeDeletion ValueType = 0

	// TypeValue marks a regular key-value entry
	TypeValue ValueType = 1
)

const (
	// tagSize is the fixed width of the packed (sequence, type) tag
	tagSize = 8

	// maxVarint32Len bounds a varint32 length prefix to 5 bytes
	maxVarint32Len = 5
)

// MaxSequenceNumber is the largest usable sequence number (56 bits);
// the low byte of the tag carries the value type.
const MaxSequenceNumber uint64 = (1 << 56) - 1

// typeForSeek is the value type embedded in lookup targets. Tags sort
// descending for equal user keys, and TypeValue is the highest type, so a
// target built with it lands on the newest visible entry.
const typeForSeek = TypeValue

// packTag combines a sequence number and value type into one fixed64.
func packTag(seq uint64, t ValueType) uint64 {
	return seq<<8 | uint64(t)
}

// unpackTag splits a fixed64 tag back into sequence number and value type.
func unpackTag(tag uint64) (uint64, ValueType) {
	return tag >> 8, ValueType(tag & 0xff)
}

// varint32Len returns the encoded size of v as a varint32.
func varint32Len(v uint32) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// encodeEntry builds one immutable entry in arena memory:
//
//	klen     varint32 of len(key)+8
//	key      len(key) bytes
//	tag      fixed64, (seq<<8)|type, little endian
//	vlen     varint32 of len(value)
//	value    len(value) bytes
//
// The buffer is allocated at exactly the computed length and never
// resized afterwards.
func encodeEntry(a *arena.Arena, seq uint64, t ValueType, key, value []byte) []byte {
	if seq > MaxSequenceNumber {
		panic(fmt.Sprintf("memtable: sequence number %d exceeds 56 bits", seq))
	}

	internalKeySize := len(key) + tagSize
	encodedLen := varint32Len(uint32(internalKeySize)) + internalKeySize +
		varint32Len(uint32(len(value))) + len(value)

	buf := a.Allocate(encodedLen)
	n := binary.PutUvarint(buf, uint64(internalKeySize))
	n += copy(buf[n:], key)
	binary.LittleEndian.PutUint64(buf[n:], packTag(seq, t))
	n += tagSize
	n += binary.PutUvarint(buf[n:], uint64(len(value)))
	n += copy(buf[n:], value)
	if n != encodedLen {
		panic("memtable: encoded entry length mismatch")
	}
	return buf
}

// getLengthPrefixed decodes a varint32 length prefix and returns the
// payload it delimits along with the total bytes consumed. A prefix that
// is malformed or reads past the buffer indicates a corrupted in-memory
// structure and panics.
func getLengthPrefixed(b []byte) ([]byte, int) {
	l, n := binary.Uvarint(b)
	if n <= 0 || n > maxVarint32Len || l > uint64(len(b)-n) {
		panic("memtable: corrupt length prefix")
	}
	return b[n : n+int(l)], n + int(l)
}

// entryKey returns the internal key portion (user key ++ tag) of an
// encoded entry.
func entryKey(entry []byte) []byte {
	key, _ := getLengthPrefixed(entry)
	return key
}

// entryValue returns the value portion of an encoded entry.
func entryValue(entry []byte) []byte {
	_, n := getLengthPrefixed(entry)
	value, _ := getLengthPrefixed(entry[n:])
	return value
}

// ParseInternalKey splits an internal key into its user key, sequence
// number, and value type. Panics if ikey is shorter than a tag.
func ParseInternalKey(ikey []byte) ([]byte, uint64, ValueType) {
	if len(ikey) < tagSize {
		panic(fmt.Sprintf("memtable: internal key of length %d has no tag", len(ikey)))
	}
	tag := binary.LittleEndian.Uint64(ikey[len(ikey)-tagSize:])
	seq, t := unpackTag(tag)
	return ikey[:len(ikey)-tagSize], seq, t
}
