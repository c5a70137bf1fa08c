package memtable

import (
	"github.com/driftdb/drift/pkg/common/iterator"
)

var _ iterator.Iterator = (*IteratorAdapter)(nil)

// IteratorAdapter exposes a memtable Iterator through the shared
// iterator.Iterator interface: user-level keys with the tag stripped, nil
// values for tombstones. The surrounding engine drives it when merging
// the write buffer with other sources or building an on-disk table.
type IteratorAdapter struct {
	iter *Iterator
}

// NewIteratorAdapter creates a new adapter for a memtable iterator.
func NewIteratorAdapter(iter *Iterator) *IteratorAdapter {
	return &IteratorAdapter{iter: iter}
}

// SeekToFirst positions the iterator at the first key
func (a *IteratorAdapter) SeekToFirst() {
	a.iter.SeekToFirst()
}

// SeekToLast positions the iterator at the last key
func (a *IteratorAdapter) SeekToLast() {
	a.iter.SeekToLast()
}

// Seek positions the iterator at the first entry whose user key is
// >= target, landing on the newest version of that key.
func (a *IteratorAdapter) Seek(target []byte) bool {
	lk := NewLookupKey(target, MaxSequenceNumber)
	a.iter.Seek(lk.InternalKey())
	return a.iter.Valid()
}

// Next advances the iterator and reports whether it remains valid. Note
// that successive positions may carry the same user key with decreasing
// sequence numbers; compaction relies on seeing every version.
func (a *IteratorAdapter) Next() bool {
	if !a.Valid() {
		return false
	}
	a.iter.Next()
	return a.iter.Valid()
}

// Prev retreats the iterator and reports whether it remains valid.
func (a *IteratorAdapter) Prev() bool {
	if !a.Valid() {
		return false
	}
	a.iter.Prev()
	return a.iter.Valid()
}

// Key returns the user key of the current entry.
func (a *IteratorAdapter) Key() []byte {
	if !a.Valid() {
		return nil
	}
	userKey, _, _ := ParseInternalKey(a.iter.Key())
	return userKey
}

// Value returns the current value, nil for a tombstone.
func (a *IteratorAdapter) Value() []byte {
	if !a.Valid() || a.IsTombstone() {
		return nil
	}
	return a.iter.Value()
}

// Valid returns true if the iterator is positioned at an entry.
func (a *IteratorAdapter) Valid() bool {
	return a.iter != nil && a.iter.Valid()
}

// IsTombstone returns true if the current entry is a deletion marker.
func (a *IteratorAdapter) IsTombstone() bool {
	if !a.Valid() {
		return false
	}
	_, _, t := ParseInternalKey(a.iter.Key())
	return t == TypeDeletion
}

// SequenceNumber returns the sequence number of the current entry.
func (a *IteratorAdapter) SequenceNumber() uint64 {
	if !a.Valid() {
		return 0
	}
	_, seq, _ := ParseInternalKey(a.iter.Key())
	return seq
}
