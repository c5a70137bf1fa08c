package memtable

import (
	"fmt"
	"testing"
)

func benchKeys(n int) [][]byte {
	keys := make([][]byte, n)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("key-%08d", i))
	}
	return keys
}

func BenchmarkMemTableAdd(b *testing.B) {
	mt := NewMemTable()
	mt.Ref()
	defer mt.Unref()

	keys := benchKeys(b.N)
	value := []byte("benchmark-value-benchmark-value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mt.Add(uint64(i+1), TypeValue, keys[i], value)
	}
}

func BenchmarkMemTableGet(b *testing.B) {
	mt := NewMemTable()
	mt.Ref()
	defer mt.Unref()

	const numKeys = 100000
	keys := benchKeys(numKeys)
	value := []byte("benchmark-value-benchmark-value")
	for i, key := range keys {
		mt.Add(uint64(i+1), TypeValue, key, value)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mt.Get(keys[i%numKeys], MaxSequenceNumber)
	}
}

func BenchmarkMemTableGetMiss(b *testing.B) {
	for _, bloom := range []bool{false, true} {
		name := "NoFilter"
		var opts []Option
		if bloom {
			name = "BloomFilter"
			opts = append(opts, WithBloomFilter(100000))
		}
		b.Run(name, func(b *testing.B) {
			mt := NewMemTable(opts...)
			mt.Ref()
			defer mt.Unref()

			keys := benchKeys(100000)
			for i, key := range keys {
				mt.Add(uint64(i+1), TypeValue, key, []byte("v"))
			}
			missing := make([][]byte, 1024)
			for i := range missing {
				missing[i] = []byte(fmt.Sprintf("absent-%08d", i))
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				mt.Get(missing[i%len(missing)], MaxSequenceNumber)
			}
		})
	}
}

func BenchmarkMemTableScan(b *testing.B) {
	mt := NewMemTable()
	mt.Ref()
	defer mt.Unref()

	keys := benchKeys(100000)
	for i, key := range keys {
		mt.Add(uint64(i+1), TypeValue, key, []byte("v"))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		it := mt.NewIterator()
		count := 0
		for it.SeekToFirst(); it.Valid(); it.Next() {
			count++
		}
		if count != len(keys) {
			b.Fatalf("scan visited %d entries, want %d", count, len(keys))
		}
	}
}

func BenchmarkPoolPut(b *testing.B) {
	cfg := DefaultPoolConfig()
	cfg.MaxTableSize = 1 << 62
	pool := NewMemTablePool(cfg)
	defer pool.Close()

	keys := benchKeys(b.N)
	value := []byte("benchmark-value-benchmark-value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pool.Put(keys[i], value, uint64(i+1))
	}
}
