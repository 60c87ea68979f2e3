package metrics

import (
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusExporter implements the Exporter interface for Prometheus metrics
type PrometheusExporter struct {
	config   *Config
	registry prometheus.Registerer

	// Counters
	hitsTotal               *prometheus.CounterVec
	missesTotal             *prometheus.CounterVec
	constructionsTotal      *prometheus.CounterVec
	constructionErrorsTotal *prometheus.CounterVec
	joinsTotal              *prometheus.CounterVec
	rejectedTotal           *prometheus.CounterVec
	reclaimedTotal          *prometheus.CounterVec
	operationsTotal         *prometheus.CounterVec

	// Histograms
	operationDuration *prometheus.HistogramVec

	// Gauges
	liveEntries      *prometheus.GaugeVec
	inFlightRequests *prometheus.GaugeVec
	hitRate          *prometheus.GaugeVec

	// last exported counter values per cache name
	last   map[string]counterSnapshot
	lastMu sync.Mutex

	// Custom metrics (for IncrementCounter, etc.)
	customCounters   map[string]*prometheus.CounterVec
	customHistograms map[string]*prometheus.HistogramVec
	customGauges     map[string]*prometheus.GaugeVec
	mu               sync.Mutex
}

// PrometheusConfig holds Prometheus-specific configuration
type PrometheusConfig struct {
	// Registry is the Prometheus registry to use (optional, uses default if nil)
	Registry prometheus.Registerer

	// DefaultLabels are applied to all metrics
	DefaultLabels prometheus.Labels

	// Buckets for histogram metrics
	DurationBuckets []float64
}

// NewPrometheusExporter creates a new Prometheus metrics exporter
func NewPrometheusExporter(config *Config, promConfig *PrometheusConfig) (*PrometheusExporter, error) {
	if config == nil {
		config = NewDefaultConfig()
	}

	if promConfig == nil {
		promConfig = &PrometheusConfig{}
	}

	registry := promConfig.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	// Construction and lookup latencies sit well below the default buckets
	durationBuckets := promConfig.DurationBuckets
	if durationBuckets == nil {
		durationBuckets = []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1, .5, 1}
	}

	defaultLabels := make(prometheus.Labels)
	maps.Copy(defaultLabels, promConfig.DefaultLabels)
	maps.Copy(defaultLabels, config.Labels)

	exporter := &PrometheusExporter{
		config:           config,
		registry:         registry,
		last:             make(map[string]counterSnapshot),
		customCounters:   make(map[string]*prometheus.CounterVec),
		customHistograms: make(map[string]*prometheus.HistogramVec),
		customGauges:     make(map[string]*prometheus.GaugeVec),
	}

	if err := exporter.createStandardMetrics(defaultLabels, durationBuckets); err != nil {
		return nil, fmt.Errorf("failed to create standard metrics: %w", err)
	}

	return exporter, nil
}

// createStandardMetrics creates all the standard cache metrics
func (p *PrometheusExporter) createStandardMetrics(defaultLabels prometheus.Labels, durationBuckets []float64) error {
	var err error
	names := p.config.MetricNames

	baseLabels := []string{LabelCacheName}
	withLabel := func(extra string) []string {
		return []string{LabelCacheName, extra}
	}

	counters := []struct {
		dst    **prometheus.CounterVec
		name   string
		help   string
		labels []string
	}{
		{&p.hitsTotal, names.CacheHitsTotal, "Total number of lookups served by a live instance", baseLabels},
		{&p.missesTotal, names.CacheMissesTotal, "Total number of lookups that found no live instance", baseLabels},
		{&p.constructionsTotal, names.CacheConstructionsTotal, "Total number of successful factory calls", baseLabels},
		{&p.constructionErrorsTotal, names.CacheConstructionErrorsTotal, "Total number of failed factory calls", baseLabels},
		{&p.joinsTotal, names.CacheJoinsTotal, "Total number of callers that joined an in-flight construction", baseLabels},
		{&p.rejectedTotal, names.CacheRejectedTotal, "Total number of calls rejected for unsupported arguments", baseLabels},
		{&p.reclaimedTotal, names.CacheReclaimedTotal, "Total number of slots removed after their instance was reclaimed", withLabel("reason")},
		{&p.operationsTotal, names.CacheOperationsTotal, "Total number of cache operations", withLabel("operation")},
	}
	for _, c := range counters {
		if *c.dst, err = p.createCounterVec(c.name, c.help, c.labels, defaultLabels); err != nil {
			return err
		}
	}

	if p.config.IncludeDetailedTimings {
		p.operationDuration, err = p.createHistogramVec(names.CacheOperationDuration, "Cache operation duration in seconds", withLabel("operation"), defaultLabels, durationBuckets)
		if err != nil {
			return err
		}
	}

	p.liveEntries, err = p.createGaugeVec(names.CacheLiveEntries, "Current number of live instances", baseLabels, defaultLabels)
	if err != nil {
		return err
	}

	p.inFlightRequests, err = p.createGaugeVec(names.CacheInFlightRequests, "Current number of constructions in progress", baseLabels, defaultLabels)
	if err != nil {
		return err
	}

	p.hitRate, err = p.createGaugeVec(names.CacheHitRate, "Cache hit rate as a percentage", baseLabels, defaultLabels)
	if err != nil {
		return err
	}

	return nil
}

// ExportStats exports the current cache statistics to Prometheus.
// Counters advance by the change since the previous export for the same cache name.
func (p *PrometheusExporter) ExportStats(stats Stats, labels Labels) error {
	base := cacheLabels(labels)
	name := base[LabelCacheName]

	cur := snapshotOf(stats)
	p.lastMu.Lock()
	d := cur.delta(p.last[name])
	p.last[name] = cur
	p.lastMu.Unlock()

	p.hitsTotal.With(base).Add(float64(d.hits))
	p.missesTotal.With(base).Add(float64(d.misses))
	p.constructionsTotal.With(base).Add(float64(d.constructions))
	p.constructionErrorsTotal.With(base).Add(float64(d.constructionErrors))
	p.joinsTotal.With(base).Add(float64(d.joins))
	p.rejectedTotal.With(base).Add(float64(d.rejected))
	p.reclaimedTotal.With(prometheus.Labels{LabelCacheName: name, "reason": ReasonCollected}).Add(float64(d.reclaimed))
	p.reclaimedTotal.With(prometheus.Labels{LabelCacheName: name, "reason": ReasonPurged}).Add(float64(d.purged))

	p.liveEntries.With(base).Set(float64(stats.LiveEntries()))
	p.inFlightRequests.With(base).Set(float64(stats.InFlight()))
	p.hitRate.With(base).Set(stats.HitRate())

	return nil
}

// RecordCacheOperation records a cache operation with timing
func (p *PrometheusExporter) RecordCacheOperation(operation Operation, duration time.Duration, labels Labels) error {
	opLabels := cacheLabels(labels)
	opLabels["operation"] = string(operation)

	p.operationsTotal.With(opLabels).Inc()
	if p.operationDuration != nil {
		p.operationDuration.With(opLabels).Observe(duration.Seconds())
	}

	return nil
}

// IncrementCounter increments a custom counter
func (p *PrometheusExporter) IncrementCounter(name string, labels Labels) error {
	counter, err := instrumentFor(&p.mu, p.customCounters, name, func() (*prometheus.CounterVec, error) {
		return p.createCounterVec(name, "Custom counter: "+name, labelNames(labels), p.constLabels())
	})
	if err != nil {
		return fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	counter.With(prometheus.Labels(labels)).Inc()
	return nil
}

// RecordHistogram records a value in a custom histogram
func (p *PrometheusExporter) RecordHistogram(name string, value float64, labels Labels) error {
	histogram, err := instrumentFor(&p.mu, p.customHistograms, name, func() (*prometheus.HistogramVec, error) {
		return p.createHistogramVec(name, "Custom histogram: "+name, labelNames(labels), p.constLabels(), prometheus.DefBuckets)
	})
	if err != nil {
		return fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	histogram.With(prometheus.Labels(labels)).Observe(value)
	return nil
}

// SetGauge sets a custom gauge value
func (p *PrometheusExporter) SetGauge(name string, value float64, labels Labels) error {
	gauge, err := instrumentFor(&p.mu, p.customGauges, name, func() (*prometheus.GaugeVec, error) {
		return p.createGaugeVec(name, "Custom gauge: "+name, labelNames(labels), p.constLabels())
	})
	if err != nil {
		return fmt.Errorf("failed to create gauge %s: %w", name, err)
	}
	gauge.With(prometheus.Labels(labels)).Set(value)
	return nil
}

// Close is a no-op; collectors stay registered with the registry.
func (p *PrometheusExporter) Close() error {
	return nil
}

func (p *PrometheusExporter) register(c prometheus.Collector) error {
	return p.registry.Register(c)
}

func (p *PrometheusExporter) createCounterVec(name, help string, labelNames []string, constLabels prometheus.Labels) (*prometheus.CounterVec, error) {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help, ConstLabels: constLabels}, labelNames)
	return vec, p.register(vec)
}

func (p *PrometheusExporter) createHistogramVec(name, help string, labelNames []string, constLabels prometheus.Labels, buckets []float64) (*prometheus.HistogramVec, error) {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, ConstLabels: constLabels, Buckets: buckets}, labelNames)
	return vec, p.register(vec)
}

func (p *PrometheusExporter) createGaugeVec(name, help string, labelNames []string, constLabels prometheus.Labels) (*prometheus.GaugeVec, error) {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help, ConstLabels: constLabels}, labelNames)
	return vec, p.register(vec)
}

func (p *PrometheusExporter) constLabels() prometheus.Labels {
	out := make(prometheus.Labels, len(p.config.Labels))
	maps.Copy(out, p.config.Labels)
	return out
}

// cacheLabels returns a fresh label set holding only the cache name
func cacheLabels(labels Labels) prometheus.Labels {
	name := labels[LabelCacheName]
	if name == "" {
		name = "default"
	}
	return prometheus.Labels{LabelCacheName: name}
}

func labelNames(labels Labels) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	return names
}

var _ Exporter = (*PrometheusExporter)(nil)
