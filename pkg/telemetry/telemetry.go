// Package telemetry provides the instrumentation abstraction drift
// components record metrics and spans through, backed by OpenTelemetry.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry is the recording interface handed to components. Using it
// instead of OpenTelemetry directly keeps the hot paths oblivious to
// provider configuration and lets tests substitute a no-op.
type Telemetry interface {
	// RecordHistogram records a histogram value with optional attributes.
	RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue)

	// RecordCounter records a counter increment with optional attributes.
	RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue)

	// StartSpan creates a new tracing span with the given name and attributes.
	StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)

	// Shutdown flushes and stops all providers.
	Shutdown(ctx context.Context) error
}

// ComponentMetrics is a marker interface for component-specific metrics
// interfaces; each component defines its own extension of it.
type ComponentMetrics interface {
	// Close releases any resources held by the metrics implementation.
	Close() error
}

// NoopTelemetry discards everything recorded through it.
type NoopTelemetry struct{}

// NewNoop creates a no-operation telemetry instance.
func NewNoop() Telemetry {
	return &NoopTelemetry{}
}

// RecordHistogram is a no-op.
func (n *NoopTelemetry) RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
}

// RecordCounter is a no-op.
func (n *NoopTelemetry) RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue) {
}

// StartSpan returns the original context and a no-op span.
func (n *NoopTelemetry) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

// Shutdown is a no-op.
func (n *NoopTelemetry) Shutdown(ctx context.Context) error {
	return nil
}

// RecordDuration records the time since start in a histogram.
func RecordDuration(ctx context.Context, tel Telemetry, name string, start time.Time, attrs ...attribute.KeyValue) {
	duration := time.Since(start).Seconds()
	tel.RecordHistogram(ctx, name, duration, attrs...)
}

// RecordBytes records a byte count in a counter.
func RecordBytes(ctx context.Context, tel Telemetry, name string, bytes int64, attrs ...attribute.KeyValue) {
	tel.RecordCounter(ctx, name, bytes, attrs...)
}

// Common attribute keys for consistent naming across components
const (
	// Operation type attributes
	AttrOperationType = "operation.type"
	AttrOperationName = "operation.name"

	// Component attributes
	AttrComponent = "component"

	// Status attributes
	AttrStatus    = "status"
	AttrErrorType = "error.type"

	// Resource attributes
	AttrTableID = "table.id"
	AttrReason  = "reason"
)

// Common attribute values
const (
	// Operation types
	OpTypeAdd    = "add"
	OpTypeGet    = "get"
	OpTypeScan   = "scan"
	OpTypeRotate = "rotate"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Component names
	ComponentMemTable = "memtable"
	ComponentArena    = "arena"
	ComponentSkipList = "skiplist"
	ComponentPool     = "pool"
)
