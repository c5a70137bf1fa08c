package memtable

import (
	"encoding/binary"

	"github.com/driftdb/drift/pkg/skiplist"
)

// Iterator streams the table's entries in the total order of the index:
// user key ascending, then newest version first. The caller must hold a
// reference on the table for the iterator's entire lifetime, and must
// check Valid before calling Key, Value, Next, or Prev.
//
// All operations are synchronous and non-blocking, and the iterator never
// carries an error: entries were validated when they were inserted.
type Iterator struct {
	iter    *skiplist.Iterator
	scratch []byte
}

// NewIterator returns an unpositioned iterator over the table.
func (m *MemTable) NewIterator() *Iterator {
	m.checkAlive()
	return &Iterator{iter: m.table.NewIterator()}
}

// Valid returns true if the iterator is positioned at an entry.
func (it *Iterator) Valid() bool {
	return it.iter.Valid()
}

// Seek positions the iterator at the first entry whose internal key is
// >= ikey. The target is wrapped in a length prefix so it compares
// against stored entries like any other.
func (it *Iterator) Seek(ikey []byte) {
	need := varint32Len(uint32(len(ikey))) + len(ikey)
	if cap(it.scratch) < need {
		it.scratch = make([]byte, need)
	}
	it.scratch = it.scratch[:need]
	n := binary.PutUvarint(it.scratch, uint64(len(ikey)))
	copy(it.scratch[n:], ikey)
	it.iter.Seek(it.scratch)
}

// SeekToFirst positions the iterator at the first entry.
func (it *Iterator) SeekToFirst() {
	it.iter.SeekToFirst()
}

// SeekToLast positions the iterator at the last entry.
func (it *Iterator) SeekToLast() {
	it.iter.SeekToLast()
}

// Next advances to the following entry.
func (it *Iterator) Next() {
	it.iter.Next()
}

// Prev retreats to the preceding entry.
func (it *Iterator) Prev() {
	it.iter.Prev()
}

// Key returns the internal key (user key ++ tag) of the current entry.
// Callers needing the sequence number or value type decode the tag with
// ParseInternalKey.
func (it *Iterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return entryKey(it.iter.Key())
}

// Value returns the value of the current entry; empty for a tombstone.
func (it *Iterator) Value() []byte {
	if !it.Valid() {
		return nil
	}
	return entryValue(it.iter.Key())
}
