package memtable

import (
	"encoding/binary"
	"fmt"
)

// LookupKey is the seek target for a point lookup: the same
// [klen][user_key ++ tag] prefix a stored entry carries, with no value
// suffix. The embedded sequence number is the upper bound of versions
// visible to the lookup. A LookupKey is only ever compared against
// entries, never inserted.
type LookupKey struct {
	buf      []byte
	keyStart int
}

// NewLookupKey builds a lookup target for userKey at the given visibility
// bound.
func NewLookupKey(userKey []byte, maxSeq uint64) *LookupKey {
	if maxSeq > MaxSequenceNumber {
		panic(fmt.Sprintf("memtable: sequence number %d exceeds 56 bits", maxSeq))
	}

	internalKeySize := len(userKey) + tagSize
	buf := make([]byte, varint32Len(uint32(internalKeySize))+internalKeySize)
	n := binary.PutUvarint(buf, uint64(internalKeySize))
	keyStart := n
	n += copy(buf[n:], userKey)
	binary.LittleEndian.PutUint64(buf[n:], packTag(maxSeq, typeForSeek))
	return &LookupKey{buf: buf, keyStart: keyStart}
}

// MemtableKey returns the full length-prefixed target, comparable against
// stored entries by the entry comparator.
func (lk *LookupKey) MemtableKey() []byte {
	return lk.buf
}

// InternalKey returns the user key plus tag, without the length prefix.
func (lk *LookupKey) InternalKey() []byte {
	return lk.buf[lk.keyStart:]
}

// UserKey returns the bare user key.
func (lk *LookupKey) UserKey() []byte {
	return lk.buf[lk.keyStart : len(lk.buf)-tagSize]
}
