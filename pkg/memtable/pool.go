package memtable

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/driftdb/drift/pkg/common/log"
)

// PoolConfig controls table rotation in a MemTablePool.
type PoolConfig struct {
	// MaxTableSize is the arena size at which the active table is marked
	// for rotation
	MaxTableSize int64

	// MaxTables caps how many tables (active plus immutable) the pool
	// expects to hold before flushing falls behind
	MaxTables int

	// MaxTableAge rotates the active table once it has been writable this
	// long; zero disables the age trigger
	MaxTableAge time.Duration

	// TableOptions are applied to every table the pool creates
	TableOptions []Option
}

// DefaultPoolConfig returns a configuration with sensible defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxTableSize: 4 << 20,
		MaxTables:    4,
	}
}

// MemTablePool manages the write buffers of an engine: one active table
// absorbing writes and a queue of immutable tables awaiting flush. The
// pool holds one reference on every table it owns; that reference is
// transferred to the caller when tables are handed off for flushing and
// released by Close.
type MemTablePool struct {
	cfg          PoolConfig
	active       *MemTable
	immutables   []*MemTable
	flushPending atomic.Bool
	logger       log.Logger
	metrics      MemTableMetrics
	mu           sync.RWMutex
}

// NewMemTablePool creates a pool with a fresh active table.
func NewMemTablePool(cfg PoolConfig) *MemTablePool {
	p := &MemTablePool{
		cfg:        cfg,
		logger:     log.GetDefaultLogger(),
		metrics:    NewNoopMemTableMetrics(),
		immutables: make([]*MemTable, 0, cfg.MaxTables),
	}
	p.active = p.newOwnedTable()
	return p
}

// SetLogger replaces the pool's logger.
func (p *MemTablePool) SetLogger(logger log.Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger = logger
}

// SetMetrics replaces the pool's instrumentation sink.
func (p *MemTablePool) SetMetrics(metrics MemTableMetrics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = metrics
}

func (p *MemTablePool) newOwnedTable() *MemTable {
	t := NewMemTable(p.cfg.TableOptions...)
	t.Ref()
	return t
}

// Put adds a key-value pair to the active table.
func (p *MemTablePool) Put(key, value []byte, seq uint64) {
	p.mu.RLock()
	p.active.Add(seq, TypeValue, key, value)
	p.mu.RUnlock()

	p.checkFlushConditions()
}

// Delete adds a tombstone for key to the active table.
func (p *MemTablePool) Delete(key []byte, seq uint64) {
	p.mu.RLock()
	p.active.Add(seq, TypeDeletion, key, nil)
	p.mu.RUnlock()

	p.checkFlushConditions()
}

// Get looks key up across all tables, newest first: the active table,
// then the immutables in reverse rotation order. The search stops at the
// first table that has any visible version, so a tombstone in a newer
// table shadows values in older ones.
func (p *MemTablePool) Get(key []byte, maxSeq uint64) ([]byte, LookupResult) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if value, res := p.active.Get(key, maxSeq); res != NotFound {
		return value, res
	}
	for i := len(p.immutables) - 1; i >= 0; i-- {
		if value, res := p.immutables[i].Get(key, maxSeq); res != NotFound {
			return value, res
		}
	}
	return nil, NotFound
}

// checkFlushConditions marks the active table for rotation once a size or
// age threshold is crossed.
func (p *MemTablePool) checkFlushConditions() {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.flushPending.Load() {
		return
	}

	sizeTriggered := p.active.ApproximateMemoryUsage() >= p.cfg.MaxTableSize
	ageTriggered := p.cfg.MaxTableAge > 0 && p.active.Age() > p.cfg.MaxTableAge.Seconds()
	if !sizeTriggered && !ageTriggered {
		return
	}

	if p.flushPending.CompareAndSwap(false, true) {
		reason := flushReasonName(sizeTriggered, ageTriggered)
		p.logger.Debug("memtable flush triggered: reason=%s size=%d age=%.1fs",
			reason, p.active.ApproximateMemoryUsage(), p.active.Age())
		p.metrics.RecordFlushTrigger(context.Background(), reason,
			p.active.ApproximateMemoryUsage(), p.active.Age())
	}
}

// IsFlushNeeded returns true once a rotation has been triggered and not
// yet performed.
func (p *MemTablePool) IsFlushNeeded() bool {
	return p.flushPending.Load()
}

// SwitchToNewMemTable freezes the active table, queues it for flushing,
// and installs a fresh writable one. It returns the frozen table; the
// pool still owns its reference until GetImmutablesForFlush hands it off.
func (p *MemTablePool) SwitchToNewMemTable() *MemTable {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.flushPending.Store(false)

	old := p.active
	old.SetImmutable()
	p.active = p.newOwnedTable()
	p.immutables = append(p.immutables, old)

	p.logger.Debug("memtable rotated: frozen_size=%d immutables=%d",
		old.ApproximateMemoryUsage(), len(p.immutables))

	p.metrics.RecordPoolState(context.Background(),
		p.active.ApproximateMemoryUsage(), len(p.immutables), p.totalSizeLocked())
	return old
}

// GetImmutablesForFlush removes all immutable tables from the pool and
// transfers their references to the caller, which must Unref each table
// once it has been flushed.
func (p *MemTablePool) GetImmutablesForFlush() []*MemTable {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := p.immutables
	p.immutables = make([]*MemTable, 0, p.cfg.MaxTables)
	return result
}

// ImmutableCount returns the number of immutable tables awaiting flush.
func (p *MemTablePool) ImmutableCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.immutables)
}

// GetMemTables returns all tables, active first, then immutables oldest
// first. The caller must not outlive the pool's references; readers
// needing a stable snapshot should Ref the tables themselves.
func (p *MemTablePool) GetMemTables() []*MemTable {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*MemTable, 0, len(p.immutables)+1)
	result = append(result, p.active)
	result = append(result, p.immutables...)
	return result
}

// TotalSize returns the combined arena usage of all tables in the pool.
func (p *MemTablePool) TotalSize() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalSizeLocked()
}

func (p *MemTablePool) totalSizeLocked() int64 {
	total := p.active.ApproximateMemoryUsage()
	for _, t := range p.immutables {
		total += t.ApproximateMemoryUsage()
	}
	return total
}

// GetNextSequenceNumber returns one past the highest sequence number
// written to the active table.
func (p *MemTablePool) GetNextSequenceNumber() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active.GetNextSequenceNumber()
}

// Close releases the pool's references on every table it still owns.
// Tables already handed off via GetImmutablesForFlush are the caller's
// responsibility.
func (p *MemTablePool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active.Unref()
	p.active = nil
	for _, t := range p.immutables {
		t.Unref()
	}
	p.immutables = nil
}
