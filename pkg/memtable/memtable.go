// Package memtable implements the in-memory write buffer of an LSM-tree
// storage engine: a mutable, ordered, reference-counted table that absorbs
// recent writes before they are flushed to immutable on-disk tables.
//
// Entries are encoded into arena memory and ordered by a skip list; the
// table supports a single writer and any number of concurrent readers.
package memtable

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/driftdb/drift/pkg/arena"
	"github.com/driftdb/drift/pkg/common/log"
	"github.com/driftdb/drift/pkg/skiplist"
)

// LookupResult is the three-way outcome of a point lookup.
type LookupResult int

const (
	// NotFound means no entry for the user key is visible at the lookup's
	// sequence bound
	NotFound LookupResult = iota

	// Found means the newest visible entry is a regular value
	Found

	// Deleted means the newest visible entry is a tombstone. Callers must
	// not continue searching older data sources for this key.
	Deleted
)

// String returns the string representation of the lookup result
func (r LookupResult) String() string {
	switch r {
	case NotFound:
		return "not_found"
	case Found:
		return "found"
	case Deleted:
		return "deleted"
	default:
		return fmt.Sprintf("RESULT(%d)", int(r))
	}
}

// MemTable is a reference-counted, ordered in-memory table. It owns an
// arena and a skip list; both grow monotonically and are reclaimed as a
// unit when the last reference is released.
//
// A MemTable is created with a reference count of zero: every holder must
// call Ref before use and Unref when done, and the table is destroyed
// exactly when the count returns to zero. At most one goroutine may call
// Add at a time; Get, iterators, and ApproximateMemoryUsage are safe to
// use concurrently with an in-flight Add.
type MemTable struct {
	cmp     keyComparator
	arena   *arena.Arena
	table   *skiplist.SkipList
	filter  *bloomFilter
	logger  log.Logger
	metrics MemTableMetrics

	refs       atomic.Int32
	destroyed  atomic.Bool
	immutable  atomic.Bool
	nextSeqNum atomic.Uint64

	creationTime time.Time

	// filter sizing requested via options, applied at construction
	filterExpectedKeys int
}

// Option configures a MemTable at construction.
type Option func(*MemTable)

// WithComparer sets the user-key comparator. It must define a total order
// and stay fixed for the table's lifetime.
func WithComparer(cmp Comparer) Option {
	return func(m *MemTable) {
		if cmp == nil {
			panic("memtable: nil comparer")
		}
		m.cmp = keyComparator{user: cmp}
	}
}

// WithLogger sets the logger for lifecycle events.
func WithLogger(logger log.Logger) Option {
	return func(m *MemTable) {
		m.logger = logger
	}
}

// WithMetrics sets the instrumentation sink.
func WithMetrics(metrics MemTableMetrics) Option {
	return func(m *MemTable) {
		m.metrics = metrics
	}
}

// WithBloomFilter attaches a filter over user keys sized for the given
// expected key count, letting point lookups skip the index on a miss.
func WithBloomFilter(expectedKeys int) Option {
	return func(m *MemTable) {
		m.filterExpectedKeys = expectedKeys
	}
}

// NewMemTable creates an empty table with a reference count of zero; the
// caller must Ref it at least once before use.
func NewMemTable(opts ...Option) *MemTable {
	m := &MemTable{
		cmp:     keyComparator{user: DefaultComparer},
		logger:  log.GetDefaultLogger(),
		metrics: NewNoopMemTableMetrics(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.arena = arena.New()
	m.table = skiplist.New(m.cmp.compareEntries)
	if m.filterExpectedKeys > 0 {
		m.filter = newBloomFilter(m.filterExpectedKeys)
	}
	m.creationTime = time.Now()
	m.logger.Debug("memtable created: bloom_keys=%d", m.filterExpectedKeys)
	return m
}

// Ref increments the reference count.
func (m *MemTable) Ref() {
	m.checkAlive()
	m.refs.Add(1)
}

// Unref decrements the reference count and destroys the table when it
// reaches zero. Calling Unref without a matching Ref is a programming
// error and panics.
func (m *MemTable) Unref() {
	n := m.refs.Add(-1)
	if n < 0 {
		panic("memtable: Unref without matching Ref")
	}
	if n == 0 {
		m.destroy()
	}
}

// destroy marks the table dead. The arena and skip list become
// unreachable together once callers drop the table itself.
func (m *MemTable) destroy() {
	m.destroyed.Store(true)
	m.logger.Debug("memtable destroyed, releasing %d bytes", m.arena.MemoryUsage())
	m.metrics.Close()
}

func (m *MemTable) checkAlive() {
	if m.destroyed.Load() {
		panic("memtable: use after final Unref")
	}
}

// Add encodes an entry and inserts it into the index. seq must fit in 56
// bits; for a TypeDeletion entry value should be empty. Add never fails.
// Entries are never mutated or removed afterwards; a newer version of the
// same user key simply coexists with, and sorts before, the older ones.
func (m *MemTable) Add(seq uint64, t ValueType, key, value []byte) {
	m.checkAlive()
	if m.IsImmutable() {
		panic("memtable: Add on immutable table")
	}
	start := time.Now()

	entry := encodeEntry(m.arena, seq, t, key, value)
	sizeBefore := m.arena.MemoryUsage()
	m.table.Insert(entry)
	if m.filter != nil {
		m.filter.Add(key)
	}

	// Track the highest sequence seen, for recovery handoff.
	for {
		next := m.nextSeqNum.Load()
		if seq < next || m.nextSeqNum.CompareAndSwap(next, seq+1) {
			break
		}
	}

	ctx := context.Background()
	m.metrics.RecordOperation(ctx, "add", time.Since(start))
	m.metrics.RecordSizeChange(ctx, m.arena.MemoryUsage(), m.arena.MemoryUsage()-sizeBefore)
}

// Get looks up the newest version of userKey visible at maxSeq. It
// returns the value and Found for a regular entry, nil and Deleted for a
// tombstone, or nil and NotFound when no visible version exists. A Found
// value aliases arena memory and stays valid while the caller holds its
// table reference.
func (m *MemTable) Get(userKey []byte, maxSeq uint64) ([]byte, LookupResult) {
	m.checkAlive()
	start := time.Now()

	value, res := m.get(userKey, maxSeq)

	ctx := context.Background()
	m.metrics.RecordOperation(ctx, "get", time.Since(start))
	m.metrics.RecordLookupOutcome(ctx, res)
	return value, res
}

func (m *MemTable) get(userKey []byte, maxSeq uint64) ([]byte, LookupResult) {
	if m.filter != nil && !m.filter.MayContain(userKey) {
		return nil, NotFound
	}

	lk := NewLookupKey(userKey, maxSeq)
	it := m.table.NewIterator()
	it.Seek(lk.MemtableKey())
	if !it.Valid() {
		return nil, NotFound
	}

	// The seek landed on the first entry >= the target. Entries with a
	// larger sequence than the bound were skipped by the tag ordering, so
	// only the user key needs validating: a mismatch means the target key
	// has no visible version at all.
	entry := it.Key()
	ikey, keyEnd := getLengthPrefixed(entry)
	if m.cmp.user(ikey[:len(ikey)-tagSize], userKey) != 0 {
		return nil, NotFound
	}

	_, _, t := ParseInternalKey(ikey)
	switch t {
	case TypeValue:
		value, _ := getLengthPrefixed(entry[keyEnd:])
		return value, Found
	case TypeDeletion:
		return nil, Deleted
	default:
		panic(fmt.Sprintf("memtable: corrupt value type %d", t))
	}
}

// ApproximateMemoryUsage returns the bytes reserved by the table's arena.
// Safe to call concurrently with ongoing Add calls.
func (m *MemTable) ApproximateMemoryUsage() int64 {
	return m.arena.MemoryUsage()
}

// Len returns the number of entries in the table, counting every version
// of every key.
func (m *MemTable) Len() int64 {
	return m.table.Len()
}

// SetImmutable marks the table frozen; any further Add panics. Rotation
// uses this when swapping in a fresh writable table.
func (m *MemTable) SetImmutable() {
	m.immutable.Store(true)
}

// IsImmutable returns whether the table has been frozen.
func (m *MemTable) IsImmutable() bool {
	return m.immutable.Load()
}

// Age returns the seconds elapsed since the table was created.
func (m *MemTable) Age() float64 {
	return time.Since(m.creationTime).Seconds()
}

// GetNextSequenceNumber returns one past the highest sequence number
// added so far.
func (m *MemTable) GetNextSequenceNumber() uint64 {
	return m.nextSeqNum.Load()
}
