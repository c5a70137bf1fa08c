// Package iterator defines the traversal contract shared by drift storage
// components, so an engine can walk a write buffer the same way it walks
// any other ordered source.
package iterator

// Iterator provides positioned access to an ordered sequence of key-value
// pairs. Implementations are not safe for concurrent use; create one
// iterator per goroutine.
type Iterator interface {
	// SeekToFirst positions the iterator at the first key
	SeekToFirst()

	// SeekToLast positions the iterator at the last key
	SeekToLast()

	// Seek positions the iterator at the first key >= target and reports
	// whether such a key exists
	Seek(target []byte) bool

	// Next advances the iterator and reports whether it remains valid
	Next() bool

	// Prev retreats the iterator and reports whether it remains valid
	Prev() bool

	// Key returns the current key
	Key() []byte

	// Value returns the current value; nil for a deletion marker
	Value() []byte

	// Valid returns true if the iterator is positioned at an entry
	Valid() bool

	// IsTombstone returns true if the current entry is a deletion marker.
	// Compaction needs this to tell a tombstone from a plain nil value.
	IsTombstone() bool
}
