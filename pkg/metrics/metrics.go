package metrics

import (
	"maps"
	"sync"
	"time"
)

// Exporter defines the interface for flyweight cache metrics exporters
// This abstraction allows supporting multiple observability systems
type Exporter interface {
	// ExportStats exports the current cache statistics
	ExportStats(stats Stats, labels Labels) error

	// RecordCacheOperation records individual cache operations with timing
	RecordCacheOperation(operation Operation, duration time.Duration, labels Labels) error

	// IncrementCounter increments a named counter with labels
	IncrementCounter(name string, labels Labels) error

	// RecordHistogram records a value in a named histogram
	RecordHistogram(name string, value float64, labels Labels) error

	// SetGauge sets a gauge value
	SetGauge(name string, value float64, labels Labels) error

	// Close shuts down the exporter and flushes any pending metrics
	Close() error
}

// Labels represents key-value pairs for metric labels/tags
type Labels map[string]string

// LabelCacheName identifies the partition a metric belongs to
const LabelCacheName = "cache_name"

// Stats interface defines the cache statistics that can be exported
// Counters are cumulative; LiveEntries and InFlight are point-in-time values
type Stats interface {
	Hits() int64
	Misses() int64
	Constructions() int64
	ConstructionErrors() int64
	Joins() int64
	Rejected() int64
	Reclaimed() int64
	Purged() int64
	LiveEntries() int64
	InFlight() int64
	HitRate() float64
}

// Operation represents different cache operations for metrics
type Operation string

const (
	OperationGetOrCreate    Operation = "get_or_create"
	OperationTryGetOrCreate Operation = "try_get_or_create"
	OperationPeek           Operation = "peek"
	OperationPurge          Operation = "purge"
	OperationConstruct      Operation = "construct"
)

// Reclaim reasons used as the "reason" label
const (
	ReasonCollected = "collected"
	ReasonPurged    = "purged"
)

// MetricNames defines standard metric names used across exporters
type MetricNames struct {
	// Counters
	CacheHitsTotal               string
	CacheMissesTotal             string
	CacheConstructionsTotal      string
	CacheConstructionErrorsTotal string
	CacheJoinsTotal              string
	CacheRejectedTotal           string
	CacheReclaimedTotal          string
	CacheOperationsTotal         string

	// Histograms
	CacheOperationDuration string

	// Gauges
	CacheLiveEntries      string
	CacheInFlightRequests string
	CacheHitRate          string
}

// DefaultMetricNames returns the default metric names with proper namespacing
func DefaultMetricNames() MetricNames {
	return MetricNames{
		CacheHitsTotal:               "flyweight_hits_total",
		CacheMissesTotal:             "flyweight_misses_total",
		CacheConstructionsTotal:      "flyweight_constructions_total",
		CacheConstructionErrorsTotal: "flyweight_construction_errors_total",
		CacheJoinsTotal:              "flyweight_joins_total",
		CacheRejectedTotal:           "flyweight_rejected_total",
		CacheReclaimedTotal:          "flyweight_reclaimed_total",
		CacheOperationsTotal:         "flyweight_operations_total",
		CacheOperationDuration:       "flyweight_operation_duration_seconds",
		CacheLiveEntries:             "flyweight_live_entries",
		CacheInFlightRequests:        "flyweight_inflight_constructions",
		CacheHitRate:                 "flyweight_hit_rate",
	}
}

// Config holds configuration for metrics exporters
type Config struct {
	// Enabled determines whether metrics collection is enabled
	Enabled bool

	// Namespace is prepended to all metric names
	Namespace string

	// Labels are default labels applied to all metrics
	Labels Labels

	// MetricNames allows customizing metric names
	MetricNames MetricNames

	// ReportingInterval determines how often to export stats (for push-based systems)
	ReportingInterval time.Duration

	// IncludeDetailedTimings enables detailed operation timing metrics
	IncludeDetailedTimings bool
}

// NewDefaultConfig creates a default metrics configuration
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:                true,
		Namespace:              "flyweight",
		Labels:                 make(Labels),
		MetricNames:            DefaultMetricNames(),
		ReportingInterval:      30 * time.Second,
		IncludeDetailedTimings: false,
	}
}

// WithNamespace sets the metrics namespace
func (c *Config) WithNamespace(namespace string) *Config {
	c.Namespace = namespace
	return c
}

// WithLabels adds default labels to all metrics
func (c *Config) WithLabels(labels Labels) *Config {
	if c.Labels == nil {
		c.Labels = make(Labels)
	}
	maps.Copy(c.Labels, labels)
	return c
}

// WithReportingInterval sets the reporting interval for push-based systems
func (c *Config) WithReportingInterval(interval time.Duration) *Config {
	c.ReportingInterval = interval
	return c
}

// WithDetailedTimings enables detailed operation timing metrics
func (c *Config) WithDetailedTimings(enabled bool) *Config {
	c.IncludeDetailedTimings = enabled
	return c
}

// MultiExporter allows using multiple exporters simultaneously
type MultiExporter struct {
	exporters []Exporter
}

// NewMultiExporter creates an exporter that writes to multiple backends
func NewMultiExporter(exporters ...Exporter) *MultiExporter {
	return &MultiExporter{
		exporters: exporters,
	}
}

// each calls fn on every exporter in order and stops at the first error.
func (m *MultiExporter) each(fn func(Exporter) error) error {
	for _, exporter := range m.exporters {
		if err := fn(exporter); err != nil {
			return err
		}
	}
	return nil
}

// ExportStats exports to all configured exporters
func (m *MultiExporter) ExportStats(stats Stats, labels Labels) error {
	return m.each(func(e Exporter) error { return e.ExportStats(stats, labels) })
}

// RecordCacheOperation records to all configured exporters
func (m *MultiExporter) RecordCacheOperation(operation Operation, duration time.Duration, labels Labels) error {
	return m.each(func(e Exporter) error { return e.RecordCacheOperation(operation, duration, labels) })
}

// IncrementCounter increments on all configured exporters
func (m *MultiExporter) IncrementCounter(name string, labels Labels) error {
	return m.each(func(e Exporter) error { return e.IncrementCounter(name, labels) })
}

// RecordHistogram records to all configured exporters
func (m *MultiExporter) RecordHistogram(name string, value float64, labels Labels) error {
	return m.each(func(e Exporter) error { return e.RecordHistogram(name, value, labels) })
}

// SetGauge sets on all configured exporters
func (m *MultiExporter) SetGauge(name string, value float64, labels Labels) error {
	return m.each(func(e Exporter) error { return e.SetGauge(name, value, labels) })
}

// Close closes all configured exporters
func (m *MultiExporter) Close() error {
	return m.each(Exporter.Close)
}

// NoOpExporter provides a no-op implementation for when metrics are disabled
type NoOpExporter struct{}

// NewNoOpExporter creates a no-op exporter
func NewNoOpExporter() *NoOpExporter {
	return &NoOpExporter{}
}

// ExportStats does nothing
func (n *NoOpExporter) ExportStats(Stats, Labels) error { return nil }

// RecordCacheOperation does nothing
func (n *NoOpExporter) RecordCacheOperation(Operation, time.Duration, Labels) error { return nil }

// IncrementCounter does nothing
func (n *NoOpExporter) IncrementCounter(string, Labels) error { return nil }

// RecordHistogram does nothing
func (n *NoOpExporter) RecordHistogram(string, float64, Labels) error { return nil }

// SetGauge does nothing
func (n *NoOpExporter) SetGauge(string, float64, Labels) error { return nil }

// Close does nothing
func (n *NoOpExporter) Close() error { return nil }

// counterSnapshot holds the cumulative counter values last exported for one
// cache, so exporters can push deltas into monotonic counters.
type counterSnapshot struct {
	hits, misses, constructions, constructionErrors int64
	joins, rejected, reclaimed, purged              int64
}

func snapshotOf(s Stats) counterSnapshot {
	return counterSnapshot{
		hits:               s.Hits(),
		misses:             s.Misses(),
		constructions:      s.Constructions(),
		constructionErrors: s.ConstructionErrors(),
		joins:              s.Joins(),
		rejected:           s.Rejected(),
		reclaimed:          s.Reclaimed(),
		purged:             s.Purged(),
	}
}

// delta returns cur minus prev. A counter that went backwards was reset,
// so its full current value is the delta.
func (cur counterSnapshot) delta(prev counterSnapshot) counterSnapshot {
	d := func(c, p int64) int64 {
		if c < p {
			return c
		}
		return c - p
	}
	return counterSnapshot{
		hits:               d(cur.hits, prev.hits),
		misses:             d(cur.misses, prev.misses),
		constructions:      d(cur.constructions, prev.constructions),
		constructionErrors: d(cur.constructionErrors, prev.constructionErrors),
		joins:              d(cur.joins, prev.joins),
		rejected:           d(cur.rejected, prev.rejected),
		reclaimed:          d(cur.reclaimed, prev.reclaimed),
		purged:             d(cur.purged, prev.purged),
	}
}

// Ensure interfaces are implemented
var (
	_ Exporter = (*MultiExporter)(nil)
	_ Exporter = (*NoOpExporter)(nil)
)

// instrumentFor returns the named instrument from set, creating it on first
// use. mu guards set.
func instrumentFor[V any](mu *sync.Mutex, set map[string]V, name string, create func() (V, error)) (V, error) {
	mu.Lock()
	defer mu.Unlock()

	if v, ok := set[name]; ok {
		return v, nil
	}
	v, err := create()
	if err != nil {
		return v, err
	}
	set[name] = v
	return v, nil
}
