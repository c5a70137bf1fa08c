// Package skiplist implements the ordered index backing the memtable: an
// insert-only skip list over opaque byte-string keys with a caller-supplied
// total-order comparator. It supports a single writer and any number of
// concurrent lock-free readers.
package skiplist

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
)

const (
	// MaxHeight is the maximum height of the skip list
	MaxHeight = 12

	// BranchingFactor determines the probability of increasing the height
	BranchingFactor = 4
)

// Comparator defines a total order over opaque byte-string keys.
// It must be a pure function and remain fixed for the list's lifetime.
type Comparator func(a, b []byte) int

// node is a single skip list node. Nodes are never removed once linked in.
type node struct {
	key    []byte
	height int32
	// next holds the successor at each level, maintained with atomic
	// pointer operations so readers never observe a half-linked node
	next [MaxHeight]unsafe.Pointer
}

func newNode(key []byte, height int) *node {
	return &node{
		key:    key,
		height: int32(height),
	}
}

func (n *node) getNext(level int) *node {
	return (*node)(atomic.LoadPointer(&n.next[level]))
}

func (n *node) setNext(level int, next *node) {
	atomic.StorePointer(&n.next[level], unsafe.Pointer(next))
}

// SkipList is an insert-only ordered index over byte-string keys.
// At most one goroutine may call Insert at a time; readers may search and
// iterate concurrently with an in-flight insert.
type SkipList struct {
	head      *node
	cmp       Comparator
	maxHeight int32
	rnd       *rand.Rand
	rndMtx    sync.Mutex
	count     atomic.Int64
}

// New creates an empty skip list ordered by cmp.
func New(cmp Comparator) *SkipList {
	if cmp == nil {
		panic("skiplist: nil comparator")
	}
	return &SkipList{
		head:      newNode(nil, MaxHeight),
		cmp:       cmp,
		maxHeight: 1,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// randomHeight generates a random height for a new node
func (s *SkipList) randomHeight() int {
	s.rndMtx.Lock()
	defer s.rndMtx.Unlock()

	height := 1
	for height < MaxHeight && s.rnd.Intn(BranchingFactor) == 0 {
		height++
	}
	return height
}

func (s *SkipList) getCurrentHeight() int {
	return int(atomic.LoadInt32(&s.maxHeight))
}

// Insert links key into the list. Keys equal under the comparator are all
// kept; their relative order is unspecified. The list never takes a copy
// of key, so the caller must not mutate it afterwards.
func (s *SkipList) Insert(key []byte) {
	height := s.randomHeight()
	var prev [MaxHeight]*node
	n := newNode(key, height)

	currHeight := s.getCurrentHeight()
	if height > currHeight {
		if atomic.CompareAndSwapInt32(&s.maxHeight, int32(currHeight), int32(height)) {
			currHeight = height
		}
	}

	// Locate the insertion point at every level, recording predecessors.
	current := s.head
	for level := currHeight - 1; level >= 0; level-- {
		for next := current.getNext(level); next != nil; next = current.getNext(level) {
			if s.cmp(next.key, key) >= 0 {
				break
			}
			current = next
		}
		prev[level] = current
	}
	for level := currHeight; level < height; level++ {
		prev[level] = s.head
	}

	// Link bottom-up so a reader that sees the node at any level also
	// sees it fully formed at level 0.
	for level := 0; level < height; level++ {
		n.setNext(level, prev[level].getNext(level))
		prev[level].setNext(level, n)
	}

	s.count.Add(1)
}

// Len returns the number of inserted keys.
func (s *SkipList) Len() int64 {
	return s.count.Load()
}

// findGreaterOrEqual returns the first node whose key is >= key, or nil.
func (s *SkipList) findGreaterOrEqual(key []byte) *node {
	current := s.head
	for level := s.getCurrentHeight() - 1; level >= 0; level-- {
		for next := current.getNext(level); next != nil; next = current.getNext(level) {
			if s.cmp(next.key, key) >= 0 {
				break
			}
			current = next
		}
	}
	return current.getNext(0)
}

// findLessThan returns the last node whose key is < key, or the head.
func (s *SkipList) findLessThan(key []byte) *node {
	current := s.head
	for level := s.getCurrentHeight() - 1; level >= 0; level-- {
		for next := current.getNext(level); next != nil; next = current.getNext(level) {
			if s.cmp(next.key, key) >= 0 {
				break
			}
			current = next
		}
	}
	return current
}

// findLast returns the last node in the list, or the head when empty.
func (s *SkipList) findLast() *node {
	current := s.head
	for level := s.getCurrentHeight() - 1; level >= 0; level-- {
		for next := current.getNext(level); next != nil; next = current.getNext(level) {
			current = next
		}
	}
	return current
}

// Iterator provides positioned access to the list in key order.
// An Iterator is not safe for concurrent use, but independent iterators
// may run concurrently with each other and with a single writer.
type Iterator struct {
	list    *SkipList
	current *node
}

// NewIterator returns an unpositioned iterator; call one of the Seek
// methods before using it.
func (s *SkipList) NewIterator() *Iterator {
	return &Iterator{list: s}
}

// Valid returns true if the iterator is positioned at a key.
func (it *Iterator) Valid() bool {
	return it.current != nil && it.current != it.list.head
}

// Key returns the key at the current position. Requires Valid.
func (it *Iterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return it.current.key
}

// Next advances to the following key. Requires Valid.
func (it *Iterator) Next() {
	if !it.Valid() {
		return
	}
	it.current = it.current.getNext(0)
}

// Prev retreats to the preceding key, becoming invalid at the front.
// Requires Valid. The list keeps no back pointers, so this searches from
// the head in O(log n) like a seek.
func (it *Iterator) Prev() {
	if !it.Valid() {
		return
	}
	prev := it.list.findLessThan(it.current.key)
	if prev == it.list.head {
		it.current = nil
		return
	}
	it.current = prev
}

// Seek positions the iterator at the first key >= target.
func (it *Iterator) Seek(target []byte) {
	it.current = it.list.findGreaterOrEqual(target)
}

// SeekToFirst positions the iterator at the first key.
func (it *Iterator) SeekToFirst() {
	it.current = it.list.head.getNext(0)
}

// SeekToLast positions the iterator at the last key, invalid when empty.
func (it *Iterator) SeekToLast() {
	last := it.list.findLast()
	if last == it.list.head {
		it.current = nil
		return
	}
	it.current = last
}
