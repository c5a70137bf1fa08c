package memtable

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
)

// newTestTable returns a referenced table and a cleanup releasing it.
func newTestTable(t *testing.T, opts ...Option) *MemTable {
	t.Helper()
	mt := NewMemTable(opts...)
	mt.Ref()
	t.Cleanup(mt.Unref)
	return mt
}

func TestMemTableBasicOperations(t *testing.T) {
	mt := newTestTable(t)

	mt.Add(1, TypeValue, []byte("key1"), []byte("value1"))
	mt.Add(2, TypeValue, []byte("key2"), []byte("value2"))

	value, res := mt.Get([]byte("key1"), MaxSequenceNumber)
	if res != Found || !bytes.Equal(value, []byte("value1")) {
		t.Errorf("Get(key1) = (%q, %v), want (value1, Found)", value, res)
	}

	if _, res := mt.Get([]byte("missing"), MaxSequenceNumber); res != NotFound {
		t.Errorf("Get(missing) = %v, want NotFound", res)
	}

	if got := mt.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestMemTableLookupVisibility(t *testing.T) {
	mt := newTestTable(t)

	mt.Add(5, TypeValue, []byte("a"), []byte("x"))
	mt.Add(7, TypeValue, []byte("a"), []byte("y"))

	cases := []struct {
		maxSeq uint64
		want   LookupResult
		value  string
	}{
		{4, NotFound, ""},
		{5, Found, "x"},
		{6, Found, "x"},
		{7, Found, "y"},
		{10, Found, "y"},
		{MaxSequenceNumber, Found, "y"},
	}
	for _, c := range cases {
		value, res := mt.Get([]byte("a"), c.maxSeq)
		if res != c.want {
			t.Errorf("Get(a, %d) = %v, want %v", c.maxSeq, res, c.want)
			continue
		}
		if res == Found && string(value) != c.value {
			t.Errorf("Get(a, %d) = %q, want %q", c.maxSeq, value, c.value)
		}
	}
}

func TestMemTableTombstoneShadowing(t *testing.T) {
	mt := newTestTable(t)

	mt.Add(5, TypeValue, []byte("k"), []byte("v"))
	mt.Add(7, TypeDeletion, []byte("k"), nil)

	if value, res := mt.Get([]byte("k"), 10); res != Deleted || value != nil {
		t.Errorf("Get(k, 10) = (%q, %v), want (nil, Deleted)", value, res)
	}

	// Below the tombstone's sequence the older value is still visible.
	if value, res := mt.Get([]byte("k"), 6); res != Found || !bytes.Equal(value, []byte("v")) {
		t.Errorf("Get(k, 6) = (%q, %v), want (v, Found)", value, res)
	}
}

func TestMemTableTombstoneThenRewrite(t *testing.T) {
	mt := newTestTable(t)

	mt.Add(1, TypeValue, []byte("k"), []byte("old"))
	mt.Add(2, TypeDeletion, []byte("k"), nil)
	mt.Add(3, TypeValue, []byte("k"), []byte("new"))

	if value, res := mt.Get([]byte("k"), MaxSequenceNumber); res != Found || !bytes.Equal(value, []byte("new")) {
		t.Errorf("Get(k) = (%q, %v), want (new, Found)", value, res)
	}
	if _, res := mt.Get([]byte("k"), 2); res != Deleted {
		t.Errorf("Get(k, 2) = %v, want Deleted", res)
	}
}

func TestMemTableNeighborKeysDoNotLeak(t *testing.T) {
	mt := newTestTable(t)

	mt.Add(1, TypeValue, []byte("aa"), []byte("1"))
	mt.Add(2, TypeValue, []byte("ac"), []byte("2"))

	// "ab" sorts between the stored keys; the seek lands on "ac" and the
	// user key check must reject it.
	if _, res := mt.Get([]byte("ab"), MaxSequenceNumber); res != NotFound {
		t.Errorf("Get(ab) = %v, want NotFound", res)
	}
}

func TestMemTableEmptyKeyAndValue(t *testing.T) {
	mt := newTestTable(t)

	mt.Add(1, TypeValue, nil, nil)

	value, res := mt.Get(nil, MaxSequenceNumber)
	if res != Found || len(value) != 0 {
		t.Errorf("Get(empty) = (%q, %v), want empty Found", value, res)
	}
}

func TestMemTableCustomComparer(t *testing.T) {
	reverse := func(a, b []byte) int { return -bytes.Compare(a, b) }
	mt := newTestTable(t, WithComparer(reverse))

	mt.Add(1, TypeValue, []byte("a"), []byte("1"))
	mt.Add(2, TypeValue, []byte("b"), []byte("2"))
	mt.Add(3, TypeValue, []byte("c"), []byte("3"))

	it := mt.NewIterator()
	it.SeekToFirst()
	var keys []string
	for ; it.Valid(); it.Next() {
		userKey, _, _ := ParseInternalKey(it.Key())
		keys = append(keys, string(userKey))
	}
	want := []string{"c", "b", "a"}
	if len(keys) != len(want) {
		t.Fatalf("iterated %d keys, want %d", len(keys), len(want))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("position %d: got %q, want %q", i, keys[i], want[i])
		}
	}

	// Lookups work under the same ordering.
	if value, res := mt.Get([]byte("b"), MaxSequenceNumber); res != Found || !bytes.Equal(value, []byte("2")) {
		t.Errorf("Get(b) = (%q, %v), want (2, Found)", value, res)
	}
}

func TestMemTableRefCountLifecycle(t *testing.T) {
	mt := NewMemTable()

	mt.Ref()
	mt.Ref()
	mt.Add(1, TypeValue, []byte("k"), []byte("v"))

	mt.Unref()
	// One reference remains; the table must still be usable.
	if _, res := mt.Get([]byte("k"), MaxSequenceNumber); res != Found {
		t.Fatalf("Get after partial Unref = %v, want Found", res)
	}

	mt.Unref()

	// The table is destroyed; any further use panics.
	func() {
		defer func() {
			if recover() == nil {
				t.Errorf("expected panic on Get after final Unref")
			}
		}()
		mt.Get([]byte("k"), MaxSequenceNumber)
	}()

	func() {
		defer func() {
			if recover() == nil {
				t.Errorf("expected panic on Unref below zero")
			}
		}()
		mt.Unref()
	}()
}

func TestMemTableAddAfterFreezePanics(t *testing.T) {
	mt := newTestTable(t)
	mt.Add(1, TypeValue, []byte("k"), []byte("v"))
	mt.SetImmutable()

	if !mt.IsImmutable() {
		t.Fatalf("IsImmutable() = false after SetImmutable")
	}

	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on Add to immutable table")
		}
	}()
	mt.Add(2, TypeValue, []byte("k2"), []byte("v2"))
}

func TestMemTableFrozenTableStillReadable(t *testing.T) {
	mt := newTestTable(t)
	mt.Add(1, TypeValue, []byte("k"), []byte("v"))
	mt.SetImmutable()

	if value, res := mt.Get([]byte("k"), MaxSequenceNumber); res != Found || !bytes.Equal(value, []byte("v")) {
		t.Errorf("Get on frozen table = (%q, %v), want (v, Found)", value, res)
	}
	it := mt.NewIterator()
	it.SeekToFirst()
	if !it.Valid() {
		t.Errorf("iterator on frozen table is invalid")
	}
}

func TestMemTableNextSequenceNumber(t *testing.T) {
	mt := newTestTable(t)

	if got := mt.GetNextSequenceNumber(); got != 0 {
		t.Errorf("empty table next seq = %d, want 0", got)
	}

	mt.Add(5, TypeValue, []byte("a"), []byte("1"))
	if got := mt.GetNextSequenceNumber(); got != 6 {
		t.Errorf("next seq = %d, want 6", got)
	}

	// A lower sequence must not move the watermark backwards.
	mt.Add(3, TypeValue, []byte("b"), []byte("2"))
	if got := mt.GetNextSequenceNumber(); got != 6 {
		t.Errorf("next seq after lower write = %d, want 6", got)
	}
}

func TestMemTableApproximateMemoryUsage(t *testing.T) {
	mt := newTestTable(t)

	if mt.ApproximateMemoryUsage() < 0 {
		t.Fatalf("negative memory usage")
	}

	prev := mt.ApproximateMemoryUsage()
	for i := 0; i < 100; i++ {
		mt.Add(uint64(i+1), TypeValue, []byte(fmt.Sprintf("key-%03d", i)), bytes.Repeat([]byte{'v'}, 100))
		cur := mt.ApproximateMemoryUsage()
		if cur < prev {
			t.Fatalf("memory usage decreased from %d to %d", prev, cur)
		}
		prev = cur
	}
	if prev < 100*100 {
		t.Errorf("memory usage %d below the bytes written", prev)
	}
}

func TestMemTableWithBloomFilter(t *testing.T) {
	mt := newTestTable(t, WithBloomFilter(1000))

	for i := 0; i < 500; i++ {
		key := []byte(fmt.Sprintf("key-%03d", i))
		mt.Add(uint64(i+1), TypeValue, key, []byte("v"))
	}

	for i := 0; i < 500; i++ {
		key := []byte(fmt.Sprintf("key-%03d", i))
		if _, res := mt.Get(key, MaxSequenceNumber); res != Found {
			t.Fatalf("Get(%s) = %v, want Found", key, res)
		}
	}
	if _, res := mt.Get([]byte("never-written"), MaxSequenceNumber); res != NotFound {
		t.Errorf("Get(absent) = %v, want NotFound", res)
	}
}

func TestMemTableConcurrentReadWrite(t *testing.T) {
	mt := newTestTable(t)

	const numKeys = 2000
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < numKeys; i++ {
			key := []byte(fmt.Sprintf("key-%05d", i))
			value := []byte(fmt.Sprintf("value-%05d", i))
			mt.Add(uint64(i+1), TypeValue, key, value)
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < numKeys; i++ {
				key := []byte(fmt.Sprintf("key-%05d", i))
				value, res := mt.Get(key, MaxSequenceNumber)
				switch res {
				case NotFound:
					// Not written yet.
				case Found:
					want := fmt.Sprintf("value-%05d", i)
					if string(value) != want {
						t.Errorf("Get(%s) = %q, want %q", key, value, want)
						return
					}
				default:
					t.Errorf("Get(%s) = %v", key, res)
					return
				}
			}
		}()
	}

	wg.Wait()

	for i := 0; i < numKeys; i++ {
		key := []byte(fmt.Sprintf("key-%05d", i))
		if _, res := mt.Get(key, MaxSequenceNumber); res != Found {
			t.Fatalf("Get(%s) after writer finished = %v, want Found", key, res)
		}
	}
}

func TestLookupResultString(t *testing.T) {
	cases := map[LookupResult]string{
		NotFound:        "not_found",
		Found:           "found",
		Deleted:         "deleted",
		LookupResult(9): "RESULT(9)",
	}
	for res, want := range cases {
		if got := res.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(res), got, want)
		}
	}
}

func TestNewLookupKeyRejectsOverflow(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic for sequence number above 56 bits")
		}
	}()
	NewLookupKey([]byte("k"), MaxSequenceNumber+1)
}
