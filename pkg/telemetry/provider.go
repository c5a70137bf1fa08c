package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Provider implements Telemetry on top of the OpenTelemetry SDK.
// Instruments are created lazily on first use and cached by name.
type Provider struct {
	config         Config
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          metric.Meter
	tracer         oteltrace.Tracer

	mu         sync.Mutex
	histograms map[string]metric.Float64Histogram
	counters   map[string]metric.Int64Counter
}

// New creates a Provider with the given configuration. When the config is
// disabled a no-op implementation is returned instead.
func New(cfg Config) (Telemetry, error) {
	if !cfg.Enabled {
		return NewNoop(), nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	res := sdkresource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	metricExporters, err := createMetricExporters(cfg)
	if err != nil {
		return nil, err
	}
	meterOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, exporter := range metricExporters {
		meterOpts = append(meterOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter,
				sdkmetric.WithInterval(cfg.BatchTimeout),
			),
		))
	}
	meterProvider := sdkmetric.NewMeterProvider(meterOpts...)

	traceExporters, err := createTraceExporters(cfg)
	if err != nil {
		return nil, err
	}
	tracerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	}
	for _, exporter := range traceExporters {
		tracerOpts = append(tracerOpts, sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(cfg.BatchTimeout),
			sdktrace.WithExportTimeout(cfg.ExportTimeout),
			sdktrace.WithMaxQueueSize(cfg.MaxQueueSize),
			sdktrace.WithMaxExportBatchSize(cfg.MaxExportBatchSize),
		))
	}
	tracerProvider := sdktrace.NewTracerProvider(tracerOpts...)

	return &Provider{
		config:         cfg,
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		meter:          meterProvider.Meter(cfg.ServiceName),
		tracer:         tracerProvider.Tracer(cfg.ServiceName),
		histograms:     make(map[string]metric.Float64Histogram),
		counters:       make(map[string]metric.Int64Counter),
	}, nil
}

// RecordHistogram records a histogram value with optional attributes.
func (p *Provider) RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
	h, err := p.histogram(name)
	if err != nil {
		return
	}
	h.Record(ctx, value, metric.WithAttributes(attrs...))
}

// RecordCounter records a counter increment with optional attributes.
func (p *Provider) RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue) {
	c, err := p.counter(name)
	if err != nil {
		return
	}
	c.Add(ctx, value, metric.WithAttributes(attrs...))
}

// StartSpan creates a new tracing span with the given name and attributes.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	return p.tracer.Start(ctx, name, oteltrace.WithAttributes(attrs...))
}

// Shutdown flushes and stops the meter and tracer providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	return errors.Join(
		p.meterProvider.Shutdown(ctx),
		p.tracerProvider.Shutdown(ctx),
	)
}

func (p *Provider) histogram(name string) (metric.Float64Histogram, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h, ok := p.histograms[name]; ok {
		return h, nil
	}
	h, err := p.meter.Float64Histogram(name)
	if err != nil {
		return nil, err
	}
	p.histograms[name] = h
	return h, nil
}

func (p *Provider) counter(name string) (metric.Int64Counter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.counters[name]; ok {
		return c, nil
	}
	c, err := p.meter.Int64Counter(name)
	if err != nil {
		return nil, err
	}
	p.counters[name] = c
	return c, nil
}
