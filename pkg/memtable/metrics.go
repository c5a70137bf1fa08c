package memtable

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/driftdb/drift/pkg/telemetry"
)

// MemTableMetrics defines the instrumentation hooks for write-buffer
// operations. All methods are optional; implementations may be no-op.
type MemTableMetrics interface {
	telemetry.ComponentMetrics

	// RecordOperation records one Add/Get/iterator operation and its duration.
	RecordOperation(ctx context.Context, opType string, duration time.Duration)

	// RecordLookupOutcome records the three-way result of a point lookup.
	RecordLookupOutcome(ctx context.Context, outcome LookupResult)

	// RecordSizeChange records arena growth for monitoring table size.
	RecordSizeChange(ctx context.Context, newSize int64, delta int64)

	// RecordFlushTrigger records when a table rotation is triggered and why.
	RecordFlushTrigger(ctx context.Context, reason string, tableSize int64, tableAge float64)

	// RecordPoolState records the state of a MemTablePool.
	RecordPoolState(ctx context.Context, activeSize int64, immutableCount int, totalSize int64)
}

// memTableMetrics implements MemTableMetrics over a telemetry backend.
type memTableMetrics struct {
	tel telemetry.Telemetry
}

// NewMemTableMetrics creates a telemetry-backed metrics implementation.
// If tel is nil, returns a no-op implementation.
func NewMemTableMetrics(tel telemetry.Telemetry) MemTableMetrics {
	if tel == nil {
		return &noopMemTableMetrics{}
	}
	return &memTableMetrics{tel: tel}
}

// NewNoopMemTableMetrics creates a no-op metrics implementation.
func NewNoopMemTableMetrics() MemTableMetrics {
	return &noopMemTableMetrics{}
}

func (m *memTableMetrics) RecordOperation(ctx context.Context, opType string, duration time.Duration) {
	m.tel.RecordHistogram(ctx, "drift.memtable.operation.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
		attribute.String(telemetry.AttrOperationType, opType),
	)
	m.tel.RecordCounter(ctx, "drift.memtable.operations.total", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
		attribute.String(telemetry.AttrOperationType, opType),
		attribute.String(telemetry.AttrStatus, telemetry.StatusSuccess),
	)
}

func (m *memTableMetrics) RecordLookupOutcome(ctx context.Context, outcome LookupResult) {
	m.tel.RecordCounter(ctx, "drift.memtable.lookups.total", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
		attribute.String("lookup.outcome", outcome.String()),
	)
}

func (m *memTableMetrics) RecordSizeChange(ctx context.Context, newSize int64, delta int64) {
	m.tel.RecordHistogram(ctx, "drift.memtable.size.bytes", float64(newSize),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
	)
	m.tel.RecordHistogram(ctx, "drift.memtable.size.delta", float64(delta),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
	)
}

func (m *memTableMetrics) RecordFlushTrigger(ctx context.Context, reason string, tableSize int64, tableAge float64) {
	m.tel.RecordCounter(ctx, "drift.memtable.flush.trigger.total", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
		attribute.String(telemetry.AttrReason, reason),
	)
	m.tel.RecordHistogram(ctx, "drift.memtable.flush.trigger.size", float64(tableSize),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
		attribute.String(telemetry.AttrReason, reason),
	)
	m.tel.RecordHistogram(ctx, "drift.memtable.flush.trigger.age", tableAge,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
		attribute.String(telemetry.AttrReason, reason),
	)
}

func (m *memTableMetrics) RecordPoolState(ctx context.Context, activeSize int64, immutableCount int, totalSize int64) {
	m.tel.RecordHistogram(ctx, "drift.memtable.pool.active.size", float64(activeSize),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentPool),
	)
	m.tel.RecordHistogram(ctx, "drift.memtable.pool.immutable.count", float64(immutableCount),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentPool),
	)
	m.tel.RecordHistogram(ctx, "drift.memtable.pool.total.size", float64(totalSize),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentPool),
	)
}

// Close releases any resources held by the metrics implementation.
func (m *memTableMetrics) Close() error {
	return nil
}

// noopMemTableMetrics discards all recordings.
type noopMemTableMetrics struct{}

func (n *noopMemTableMetrics) RecordOperation(ctx context.Context, opType string, duration time.Duration) {
}

func (n *noopMemTableMetrics) RecordLookupOutcome(ctx context.Context, outcome LookupResult) {
}

func (n *noopMemTableMetrics) RecordSizeChange(ctx context.Context, newSize int64, delta int64) {
}

func (n *noopMemTableMetrics) RecordFlushTrigger(ctx context.Context, reason string, tableSize int64, tableAge float64) {
}

func (n *noopMemTableMetrics) RecordPoolState(ctx context.Context, activeSize int64, immutableCount int, totalSize int64) {
}

func (n *noopMemTableMetrics) Close() error {
	return nil
}

// flushReasonName converts flush trigger conditions to a metric label.
func flushReasonName(sizeTriggered, ageTriggered bool) string {
	switch {
	case sizeTriggered && ageTriggered:
		return "size_and_age"
	case sizeTriggered:
		return "size"
	case ageTriggered:
		return "age"
	default:
		return "manual"
	}
}
