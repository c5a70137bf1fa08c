// Package arena provides a bump-pointer allocator for memtable entries.
// Buffers handed out by an Arena are never moved, resized, or individually
// freed; all memory is released at once when the owning table drops its
// last reference and the Arena becomes unreachable.
package arena

import (
	"sync/atomic"
)

const (
	// blockSize is the size of each allocation block
	blockSize = 4096

	// largeAllocThreshold is the size above which an allocation gets its
	// own dedicated block instead of consuming the current one
	largeAllocThreshold = blockSize / 4

	// blockOverhead approximates the slice header and allocator metadata
	// attributed to each block in the usage counter
	blockOverhead = 24
)

// Arena allocates byte buffers from a chain of fixed-size blocks.
// It is single-writer: only one goroutine may call Allocate at a time.
// MemoryUsage may be called concurrently with ongoing allocations.
type Arena struct {
	// current block with remaining free space
	cur []byte
	// all blocks ever allocated, kept so their memory stays reachable
	blocks [][]byte
	// total bytes reserved, updated atomically for concurrent readers
	usage atomic.Int64
}

// New creates an empty arena. No block is allocated until the first
// Allocate call.
func New() *Arena {
	return &Arena{}
}

// Allocate returns a zeroed buffer of exactly n bytes. The buffer's
// backing memory is stable for the arena's entire lifetime. Allocate
// never fails; n must be non-negative.
func (a *Arena) Allocate(n int) []byte {
	if n < 0 {
		panic("arena: negative allocation size")
	}
	if n > len(a.cur) {
		if n > largeAllocThreshold {
			// Oversized requests get a dedicated block so the current
			// block's remainder is not wasted.
			return a.allocateBlock(n)
		}
		a.cur = a.allocateBlock(blockSize)
	}
	buf := a.cur[:n:n]
	a.cur = a.cur[n:]
	return buf
}

// allocateBlock reserves a fresh block of the given size and records it.
func (a *Arena) allocateBlock(n int) []byte {
	block := make([]byte, n)
	a.blocks = append(a.blocks, block)
	a.usage.Add(int64(n + blockOverhead))
	return block
}

// MemoryUsage returns the total number of bytes reserved by the arena.
// The counter is monotonic and safe to read while Allocate is in flight.
func (a *Arena) MemoryUsage() int64 {
	return a.usage.Load()
}
