package skiplist

import (
	"bytes"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
)

func newByteList() *SkipList {
	return New(bytes.Compare)
}

func TestSkipListInsertAndSeek(t *testing.T) {
	sl := newByteList()

	keys := []string{"banana", "apple", "cherry", "date", "elderberry"}
	for _, k := range keys {
		sl.Insert([]byte(k))
	}

	if sl.Len() != int64(len(keys)) {
		t.Errorf("expected %d keys, got %d", len(keys), sl.Len())
	}

	it := sl.NewIterator()

	// Exact seek
	it.Seek([]byte("cherry"))
	if !it.Valid() || string(it.Key()) != "cherry" {
		t.Errorf("Seek(cherry) landed on %q", it.Key())
	}

	// Seek between keys lands on the next one
	it.Seek([]byte("bb"))
	if !it.Valid() || string(it.Key()) != "cherry" {
		t.Errorf("Seek(bb) landed on %q, want cherry", it.Key())
	}

	// Seek past the end is invalid
	it.Seek([]byte("zzz"))
	if it.Valid() {
		t.Errorf("Seek past the end should be invalid, got %q", it.Key())
	}
}

func TestSkipListOrderedIteration(t *testing.T) {
	sl := newByteList()

	const numKeys = 1000
	inserted := make([]string, 0, numKeys)
	rnd := rand.New(rand.NewSource(42))
	perm := rnd.Perm(numKeys)
	for _, i := range perm {
		k := fmt.Sprintf("key-%05d", i)
		inserted = append(inserted, k)
		sl.Insert([]byte(k))
	}
	sort.Strings(inserted)

	// Forward scan visits every key once, in order.
	it := sl.NewIterator()
	i := 0
	for it.SeekToFirst(); it.Valid(); it.Next() {
		if string(it.Key()) != inserted[i] {
			t.Fatalf("forward position %d: got %q, want %q", i, it.Key(), inserted[i])
		}
		i++
	}
	if i != numKeys {
		t.Errorf("forward scan visited %d keys, want %d", i, numKeys)
	}

	// Backward scan visits every key once, in reverse order.
	i = numKeys - 1
	for it.SeekToLast(); it.Valid(); it.Prev() {
		if string(it.Key()) != inserted[i] {
			t.Fatalf("backward position %d: got %q, want %q", i, it.Key(), inserted[i])
		}
		i--
	}
	if i != -1 {
		t.Errorf("backward scan stopped at index %d", i)
	}
}

func TestSkipListCustomComparator(t *testing.T) {
	// Reverse lexicographic order.
	sl := New(func(a, b []byte) int {
		return -bytes.Compare(a, b)
	})

	for _, k := range []string{"a", "c", "b"} {
		sl.Insert([]byte(k))
	}

	it := sl.NewIterator()
	want := []string{"c", "b", "a"}
	i := 0
	for it.SeekToFirst(); it.Valid(); it.Next() {
		if string(it.Key()) != want[i] {
			t.Errorf("position %d: got %q, want %q", i, it.Key(), want[i])
		}
		i++
	}
}

func TestSkipListEmpty(t *testing.T) {
	sl := newByteList()
	it := sl.NewIterator()

	if it.Valid() {
		t.Errorf("unpositioned iterator should be invalid")
	}
	it.SeekToFirst()
	if it.Valid() {
		t.Errorf("SeekToFirst on empty list should be invalid")
	}
	it.SeekToLast()
	if it.Valid() {
		t.Errorf("SeekToLast on empty list should be invalid")
	}
	it.Seek([]byte("anything"))
	if it.Valid() {
		t.Errorf("Seek on empty list should be invalid")
	}
}

func TestSkipListPrevFromFirst(t *testing.T) {
	sl := newByteList()
	sl.Insert([]byte("only"))

	it := sl.NewIterator()
	it.SeekToFirst()
	if !it.Valid() {
		t.Fatalf("expected valid iterator")
	}
	it.Prev()
	if it.Valid() {
		t.Errorf("Prev from the first key should be invalid")
	}
}

func TestSkipListDuplicateKeys(t *testing.T) {
	sl := newByteList()

	sl.Insert([]byte("dup"))
	sl.Insert([]byte("dup"))
	sl.Insert([]byte("dup"))

	it := sl.NewIterator()
	count := 0
	for it.SeekToFirst(); it.Valid(); it.Next() {
		if string(it.Key()) != "dup" {
			t.Errorf("unexpected key %q", it.Key())
		}
		count++
	}
	if count != 3 {
		t.Errorf("expected 3 entries for duplicate key, got %d", count)
	}
}

func TestSkipListConcurrentReadsDuringWrites(t *testing.T) {
	sl := newByteList()

	// Seed some data.
	const initialKeys = 500
	for i := 0; i < initialKeys; i++ {
		sl.Insert([]byte(fmt.Sprintf("initial-%05d", i)))
	}

	done := make(chan struct{})
	var wg sync.WaitGroup

	// Readers continuously scan while a single writer inserts.
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				it := sl.NewIterator()
				prev := []byte(nil)
				for it.SeekToFirst(); it.Valid(); it.Next() {
					if prev != nil && bytes.Compare(prev, it.Key()) > 0 {
						t.Errorf("reader %d observed out-of-order keys %q > %q", id, prev, it.Key())
						return
					}
					prev = it.Key()
				}
			}
		}(r)
	}

	for i := 0; i < 5000; i++ {
		sl.Insert([]byte(fmt.Sprintf("writer-%05d", i)))
	}
	close(done)
	wg.Wait()

	if sl.Len() != initialKeys+5000 {
		t.Errorf("expected %d keys, got %d", initialKeys+5000, sl.Len())
	}
}
