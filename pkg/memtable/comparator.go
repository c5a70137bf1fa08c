package memtable

import (
	"bytes"
	"encoding/binary"
)

// Comparer defines a total order over raw user keys. It must be a pure
// function and remain fixed for the table's entire lifetime; the index
// relies on it as a stable total order.
type Comparer func(a, b []byte) int

// DefaultComparer orders user keys bytewise.
var DefaultComparer Comparer = bytes.Compare

// keyComparator wraps a user-key Comparer into the orderings the table
// needs: internal keys sort by user key ascending, then by tag
// descending, so the newest write for a key is always first among its
// versions.
type keyComparator struct {
	user Comparer
}

// compareInternal orders two internal keys (user key ++ tag).
func (c keyComparator) compareInternal(a, b []byte) int {
	r := c.user(a[:len(a)-tagSize], b[:len(b)-tagSize])
	if r != 0 {
		return r
	}
	atag := binary.LittleEndian.Uint64(a[len(a)-tagSize:])
	btag := binary.LittleEndian.Uint64(b[len(b)-tagSize:])
	switch {
	case atag > btag:
		return -1
	case atag < btag:
		return 1
	default:
		return 0
	}
}

// compareEntries orders two length-prefixed encoded entries by decoding
// only their key portions. This is the comparator handed to the index.
func (c keyComparator) compareEntries(a, b []byte) int {
	ak, _ := getLengthPrefixed(a)
	bk, _ := getLengthPrefixed(b)
	return c.compareInternal(ak, bk)
}
