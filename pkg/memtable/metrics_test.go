package memtable

import (
	"context"
	"testing"
	"time"

	"github.com/driftdb/drift/pkg/telemetry"
)

func TestNewMemTableMetricsNilBackend(t *testing.T) {
	m := NewMemTableMetrics(nil)
	if m == nil {
		t.Fatalf("NewMemTableMetrics(nil) returned nil")
	}
	// Must behave as a safe no-op.
	exerciseMetrics(m)
}

func TestNoopMemTableMetrics(t *testing.T) {
	exerciseMetrics(NewNoopMemTableMetrics())
}

func TestTelemetryBackedMetrics(t *testing.T) {
	m := NewMemTableMetrics(telemetry.NewNoop())
	exerciseMetrics(m)
}

func exerciseMetrics(m MemTableMetrics) {
	ctx := context.Background()
	m.RecordOperation(ctx, "add", time.Millisecond)
	m.RecordOperation(ctx, "get", time.Microsecond)
	m.RecordLookupOutcome(ctx, Found)
	m.RecordLookupOutcome(ctx, NotFound)
	m.RecordLookupOutcome(ctx, Deleted)
	m.RecordSizeChange(ctx, 4096, 128)
	m.RecordFlushTrigger(ctx, "size", 1<<20, 30.5)
	m.RecordPoolState(ctx, 1<<20, 2, 3<<20)
	if err := m.Close(); err != nil {
		panic(err)
	}
}

func TestFlushReasonName(t *testing.T) {
	cases := []struct {
		size, age bool
		want      string
	}{
		{true, true, "size_and_age"},
		{true, false, "size"},
		{false, true, "age"},
		{false, false, "manual"},
	}
	for _, c := range cases {
		if got := flushReasonName(c.size, c.age); got != c.want {
			t.Errorf("flushReasonName(%v, %v) = %q, want %q", c.size, c.age, got, c.want)
		}
	}
}

func TestMemTableWithMetricsOption(t *testing.T) {
	mt := newTestTable(t, WithMetrics(NewMemTableMetrics(telemetry.NewNoop())))

	mt.Add(1, TypeValue, []byte("k"), []byte("v"))
	if _, res := mt.Get([]byte("k"), MaxSequenceNumber); res != Found {
		t.Errorf("Get with metrics attached = %v, want Found", res)
	}
}
