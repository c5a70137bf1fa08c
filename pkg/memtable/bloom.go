package memtable

import (
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

const (
	// bloomBitsPerKey sizes the filter relative to the expected key count
	bloomBitsPerKey = 10

	// bloomNumProbes is the probe count paired with bloomBitsPerKey
	bloomNumProbes = 6

	// bloomMinBits keeps tiny tables from degenerating into an all-set
	// filter
	bloomMinBits = 512
)

// bloomFilter is an optional per-table filter over user keys used to
// short-circuit point-lookup misses. It is sized once at table creation
// and never grows. Bits are set with atomic word operations so readers
// may probe concurrently with the single writer; it never reports a
// false negative. Tombstone inserts are added like any other key, since
// a tombstone must still be found.
type bloomFilter struct {
	words     []atomic.Uint32
	numBits   uint32
	numProbes int
}

func newBloomFilter(expectedKeys int) *bloomFilter {
	bits := expectedKeys * bloomBitsPerKey
	if bits < bloomMinBits {
		bits = bloomMinBits
	}
	numBits := (uint32(bits) + 31) &^ 31
	return &bloomFilter{
		words:     make([]atomic.Uint32, numBits/32),
		numBits:   numBits,
		numProbes: bloomNumProbes,
	}
}

// probe derives the i-th bit position by double hashing.
func (f *bloomFilter) probe(h uint64, i int) uint32 {
	h1 := uint32(h)
	h2 := uint32(h >> 32)
	return (h1 + uint32(i)*h2) % f.numBits
}

// Add marks key as present.
func (f *bloomFilter) Add(key []byte) {
	h := xxhash.Sum64(key)
	for i := 0; i < f.numProbes; i++ {
		bit := f.probe(h, i)
		f.words[bit/32].Or(1 << (bit % 32))
	}
}

// MayContain reports whether key may have been added. False means
// definitely absent.
func (f *bloomFilter) MayContain(key []byte) bool {
	h := xxhash.Sum64(key)
	for i := 0; i < f.numProbes; i++ {
		bit := f.probe(h, i)
		if f.words[bit/32].Load()&(1<<(bit%32)) == 0 {
			return false
		}
	}
	return true
}
