package flyweight

import (
	"fmt"
	"maps"
	"time"

	"github.com/vnykmshr/flyweight-go/internal/store/memory"
	"github.com/vnykmshr/flyweight-go/pkg/metrics"
)

const (
	// DefaultJournalSize is the number of recent constructions kept per cache
	DefaultJournalSize = 64

	// DefaultReportingInterval is how often stats are exported when metrics are enabled
	DefaultReportingInterval = 30 * time.Second
)

// MetricsConfig holds metrics exporter configuration
type MetricsConfig struct {
	// Exporter is the metrics exporter to use
	Exporter metrics.Exporter

	// Enabled determines whether metrics collection is enabled
	Enabled bool

	// CacheName is the name label applied to all metrics for this cache instance
	// Registry partitions default it to their type id
	CacheName string

	// ReportingInterval determines how often to export stats automatically
	// Set to 0 to disable automatic reporting
	ReportingInterval time.Duration

	// Labels are additional labels applied to all metrics
	Labels metrics.Labels
}

// Config defines the configuration options for a Cache instance
type Config struct {
	// ShardCount sets the number of lock shards in the slot table
	// Rounded up to a power of two
	// Default: 32
	ShardCount int

	// ReclaimCleanup registers a runtime cleanup per instance that removes
	// its slot as soon as the instance is collected. When false, expired
	// slots are only removed by lookups and Purge.
	// Default: true
	ReclaimCleanup bool

	// JournalSize is the number of recent constructions kept for debugging
	// Set to 0 to disable the journal
	// Default: 64
	JournalSize int

	// Hooks defines event callbacks for cache operations
	Hooks *Hooks

	// Logger receives the cache's own log lines
	// Default: NoOpLogger
	Logger Logger

	// Metrics holds metrics exporter configuration
	// If nil, no metrics will be exported
	Metrics *MetricsConfig
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		ShardCount:     memory.DefaultShardCount,
		ReclaimCleanup: true,
		JournalSize:    DefaultJournalSize,
		Hooks:          &Hooks{},
		Logger:         NewNoOpLogger(),
	}
}

// WithShardCount sets the number of lock shards
func (c *Config) WithShardCount(shards int) *Config {
	c.ShardCount = shards
	return c
}

// WithReclaimCleanup enables or disables eager slot removal on collection
func (c *Config) WithReclaimCleanup(enabled bool) *Config {
	c.ReclaimCleanup = enabled
	return c
}

// WithJournalSize sets how many recent constructions are kept
func (c *Config) WithJournalSize(size int) *Config {
	c.JournalSize = size
	return c
}

// WithHooks sets the event hooks for cache operations
func (c *Config) WithHooks(hooks *Hooks) *Config {
	c.Hooks = hooks
	return c
}

// WithLogger sets the logger used by the cache
func (c *Config) WithLogger(logger Logger) *Config {
	c.Logger = logger
	return c
}

// WithMetrics configures cache metrics export
func (c *Config) WithMetrics(metricsConfig *MetricsConfig) *Config {
	c.Metrics = metricsConfig
	return c
}

// WithMetricsExporter configures metrics with the given exporter
func (c *Config) WithMetricsExporter(exporter metrics.Exporter, cacheName string) *Config {
	c.Metrics = &MetricsConfig{
		Exporter:          exporter,
		Enabled:           true,
		CacheName:         cacheName,
		ReportingInterval: DefaultReportingInterval,
		Labels:            make(metrics.Labels),
	}
	return c
}

// WithMetricsLabels adds labels to metrics configuration
func (c *Config) WithMetricsLabels(labels metrics.Labels) *Config {
	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{
			ReportingInterval: DefaultReportingInterval,
		}
	}
	if c.Metrics.Labels == nil {
		c.Metrics.Labels = make(metrics.Labels, len(labels))
	}
	maps.Copy(c.Metrics.Labels, labels)
	return c
}

// WithMetricsReportingInterval sets the metrics reporting interval
func (c *Config) WithMetricsReportingInterval(interval time.Duration) *Config {
	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{
			Labels:            make(metrics.Labels),
			ReportingInterval: interval,
		}
	} else {
		c.Metrics.ReportingInterval = interval
	}
	return c
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if c.ShardCount < 0 {
		return fmt.Errorf("%w: shard count %d is negative", ErrInvalidConfig, c.ShardCount)
	}
	if c.JournalSize < 0 {
		return fmt.Errorf("%w: journal size %d is negative", ErrInvalidConfig, c.JournalSize)
	}
	if c.Metrics != nil {
		if c.Metrics.ReportingInterval < 0 {
			return fmt.Errorf("%w: reporting interval %s is negative", ErrInvalidConfig, c.Metrics.ReportingInterval)
		}
		if c.Metrics.Enabled && c.Metrics.Exporter == nil {
			return fmt.Errorf("%w: metrics enabled without an exporter", ErrInvalidConfig)
		}
	}
	return nil
}

// clone returns a copy that shares hooks, logger and exporter but owns its
// metrics labels
func (c *Config) clone() *Config {
	cp := *c
	if c.Metrics != nil {
		m := *c.Metrics
		m.Labels = maps.Clone(c.Metrics.Labels)
		cp.Metrics = &m
	}
	return &cp
}
