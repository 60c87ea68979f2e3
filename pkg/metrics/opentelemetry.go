package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OpenTelemetryExporter implements the Exporter interface for OpenTelemetry metrics
type OpenTelemetryExporter struct {
	config *Config
	meter  metric.Meter
	ctx    context.Context
	attrs  []attribute.KeyValue

	// Standard metrics instruments
	hitsCounter               metric.Int64Counter
	missesCounter             metric.Int64Counter
	constructionsCounter      metric.Int64Counter
	constructionErrorsCounter metric.Int64Counter
	joinsCounter              metric.Int64Counter
	rejectedCounter           metric.Int64Counter
	reclaimedCounter          metric.Int64Counter
	operationsCounter         metric.Int64Counter

	operationDuration metric.Float64Histogram

	liveEntriesGauge metric.Int64Gauge
	inFlightGauge    metric.Int64Gauge
	hitRateGauge     metric.Float64Gauge

	// last exported counter values per cache name
	last   map[string]counterSnapshot
	lastMu sync.Mutex

	// Custom metrics (for IncrementCounter, etc.)
	customCounters   map[string]metric.Int64Counter
	customHistograms map[string]metric.Float64Histogram
	customGauges     map[string]metric.Float64Gauge
	mu               sync.Mutex
}

// OpenTelemetryConfig holds OpenTelemetry-specific configuration
type OpenTelemetryConfig struct {
	// Meter is the OpenTelemetry meter to use
	Meter metric.Meter

	// Context is the context to use for metric operations
	Context context.Context

	// DefaultAttributes are applied to all metrics
	DefaultAttributes []attribute.KeyValue
}

var (
	errOTelConfigRequired = errors.New("OpenTelemetry configuration is required")
	errOTelMeterRequired  = errors.New("OpenTelemetry meter is required")
)

// NewOpenTelemetryExporter creates a new OpenTelemetry metrics exporter
func NewOpenTelemetryExporter(config *Config, otelConfig *OpenTelemetryConfig) (*OpenTelemetryExporter, error) {
	if config == nil {
		config = NewDefaultConfig()
	}

	if otelConfig == nil {
		return nil, errOTelConfigRequired
	}

	if otelConfig.Meter == nil {
		return nil, errOTelMeterRequired
	}

	ctx := otelConfig.Context
	if ctx == nil {
		ctx = context.Background()
	}

	exporter := &OpenTelemetryExporter{
		config:           config,
		meter:            otelConfig.Meter,
		ctx:              ctx,
		attrs:            otelConfig.DefaultAttributes,
		last:             make(map[string]counterSnapshot),
		customCounters:   make(map[string]metric.Int64Counter),
		customHistograms: make(map[string]metric.Float64Histogram),
		customGauges:     make(map[string]metric.Float64Gauge),
	}

	if err := exporter.createStandardMetrics(); err != nil {
		return nil, fmt.Errorf("failed to create standard metrics: %w", err)
	}

	return exporter, nil
}

// createStandardMetrics creates all the standard cache metrics
func (o *OpenTelemetryExporter) createStandardMetrics() error {
	var err error
	names := o.config.MetricNames

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&o.hitsCounter, names.CacheHitsTotal, "Total number of lookups served by a live instance"},
		{&o.missesCounter, names.CacheMissesTotal, "Total number of lookups that found no live instance"},
		{&o.constructionsCounter, names.CacheConstructionsTotal, "Total number of successful factory calls"},
		{&o.constructionErrorsCounter, names.CacheConstructionErrorsTotal, "Total number of failed factory calls"},
		{&o.joinsCounter, names.CacheJoinsTotal, "Total number of callers that joined an in-flight construction"},
		{&o.rejectedCounter, names.CacheRejectedTotal, "Total number of calls rejected for unsupported arguments"},
		{&o.reclaimedCounter, names.CacheReclaimedTotal, "Total number of slots removed after their instance was reclaimed"},
		{&o.operationsCounter, names.CacheOperationsTotal, "Total number of cache operations"},
	}
	for _, c := range counters {
		*c.dst, err = o.meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit("1"))
		if err != nil {
			return fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
	}

	if o.config.IncludeDetailedTimings {
		o.operationDuration, err = o.meter.Float64Histogram(
			names.CacheOperationDuration,
			metric.WithDescription("Cache operation duration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			return fmt.Errorf("failed to create operation duration histogram: %w", err)
		}
	}

	o.liveEntriesGauge, err = o.meter.Int64Gauge(
		names.CacheLiveEntries,
		metric.WithDescription("Current number of live instances"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create live entries gauge: %w", err)
	}

	o.inFlightGauge, err = o.meter.Int64Gauge(
		names.CacheInFlightRequests,
		metric.WithDescription("Current number of constructions in progress"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create in-flight gauge: %w", err)
	}

	o.hitRateGauge, err = o.meter.Float64Gauge(
		names.CacheHitRate,
		metric.WithDescription("Cache hit rate as a percentage"),
		metric.WithUnit("%"),
	)
	if err != nil {
		return fmt.Errorf("failed to create hit rate gauge: %w", err)
	}

	return nil
}

// ExportStats exports the current cache statistics to OpenTelemetry.
// Counters advance by the change since the previous export for the same cache name.
func (o *OpenTelemetryExporter) ExportStats(stats Stats, labels Labels) error {
	attrs := metric.WithAttributes(o.convertLabels(labels)...)

	cur := snapshotOf(stats)
	name := labels[LabelCacheName]
	o.lastMu.Lock()
	d := cur.delta(o.last[name])
	o.last[name] = cur
	o.lastMu.Unlock()

	o.hitsCounter.Add(o.ctx, d.hits, attrs)
	o.missesCounter.Add(o.ctx, d.misses, attrs)
	o.constructionsCounter.Add(o.ctx, d.constructions, attrs)
	o.constructionErrorsCounter.Add(o.ctx, d.constructionErrors, attrs)
	o.joinsCounter.Add(o.ctx, d.joins, attrs)
	o.rejectedCounter.Add(o.ctx, d.rejected, attrs)
	o.reclaimedCounter.Add(o.ctx, d.reclaimed, o.withReason(labels, ReasonCollected))
	o.reclaimedCounter.Add(o.ctx, d.purged, o.withReason(labels, ReasonPurged))

	o.liveEntriesGauge.Record(o.ctx, stats.LiveEntries(), attrs)
	o.inFlightGauge.Record(o.ctx, stats.InFlight(), attrs)
	o.hitRateGauge.Record(o.ctx, stats.HitRate(), attrs)

	return nil
}

// RecordCacheOperation records a cache operation with timing
func (o *OpenTelemetryExporter) RecordCacheOperation(operation Operation, duration time.Duration, labels Labels) error {
	opAttrs := append(o.convertLabels(labels), attribute.String("operation", string(operation)))

	o.operationsCounter.Add(o.ctx, 1, metric.WithAttributes(opAttrs...))
	if o.operationDuration != nil {
		o.operationDuration.Record(o.ctx, duration.Seconds(), metric.WithAttributes(opAttrs...))
	}

	return nil
}

// IncrementCounter increments a custom counter
func (o *OpenTelemetryExporter) IncrementCounter(name string, labels Labels) error {
	counter, err := instrumentFor(&o.mu, o.customCounters, name, func() (metric.Int64Counter, error) {
		return o.meter.Int64Counter(name, metric.WithDescription("Custom counter: "+name), metric.WithUnit("1"))
	})
	if err != nil {
		return fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	counter.Add(o.ctx, 1, metric.WithAttributes(o.convertLabels(labels)...))
	return nil
}

// RecordHistogram records a value in a custom histogram
func (o *OpenTelemetryExporter) RecordHistogram(name string, value float64, labels Labels) error {
	histogram, err := instrumentFor(&o.mu, o.customHistograms, name, func() (metric.Float64Histogram, error) {
		return o.meter.Float64Histogram(name, metric.WithDescription("Custom histogram: "+name), metric.WithUnit("1"))
	})
	if err != nil {
		return fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	histogram.Record(o.ctx, value, metric.WithAttributes(o.convertLabels(labels)...))
	return nil
}

// SetGauge sets a custom gauge value
func (o *OpenTelemetryExporter) SetGauge(name string, value float64, labels Labels) error {
	gauge, err := instrumentFor(&o.mu, o.customGauges, name, func() (metric.Float64Gauge, error) {
		return o.meter.Float64Gauge(name, metric.WithDescription("Custom gauge: "+name), metric.WithUnit("1"))
	})
	if err != nil {
		return fmt.Errorf("failed to create gauge %s: %w", name, err)
	}
	gauge.Record(o.ctx, value, metric.WithAttributes(o.convertLabels(labels)...))
	return nil
}

// Close is a no-op; the meter provider owns flushing.
func (o *OpenTelemetryExporter) Close() error {
	return nil
}

func (o *OpenTelemetryExporter) convertLabels(labels Labels) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(o.attrs)+len(labels)+len(o.config.Labels))
	attrs = append(attrs, o.attrs...)

	for k, v := range o.config.Labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}

	return attrs
}

func (o *OpenTelemetryExporter) withReason(labels Labels, reason string) metric.AddOption {
	return metric.WithAttributes(append(o.convertLabels(labels), attribute.String("reason", reason))...)
}

var _ Exporter = (*OpenTelemetryExporter)(nil)
