package flyweight

import (
	"context"
	"fmt"
	"maps"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vnykmshr/flyweight-go/internal/entry"
	"github.com/vnykmshr/flyweight-go/internal/journal"
	"github.com/vnykmshr/flyweight-go/internal/singleflight"
	"github.com/vnykmshr/flyweight-go/internal/store"
	"github.com/vnykmshr/flyweight-go/internal/store/memory"
	"github.com/vnykmshr/flyweight-go/pkg/argkey"
	"github.com/vnykmshr/flyweight-go/pkg/metrics"
)

// Factory builds the instance for args. It is called at most once per
// construction; every caller joined to that construction receives its result.
type Factory[T any] func(args any) (*T, error)

// Cache is one flyweight partition. It maps canonical argument keys to weak
// slots, so an instance stays shared for as long as some caller holds it and
// becomes reclaimable once nobody does.
type Cache[T any] struct {
	typeID  string
	config  *Config
	store   store.Store[T]
	flights singleflight.Group[string, *T]
	stats   *Stats
	hooks   *Hooks
	logger  Logger
	journal *journal.Journal
	closed  atomic.Bool

	// Metrics
	metricsExporter metrics.Exporter
	metricsLabels   metrics.Labels
	metricsStop     chan struct{}
	metricsWg       sync.WaitGroup
	closeOnce       sync.Once
}

// reclaimTicket is handed to the runtime cleanup of an instance. It must
// never reference the instance itself.
type reclaimTicket[T any] struct {
	key   string
	entry *entry.Entry[T]
}

type waitMode int

const (
	waitBlocking waitMode = iota
	waitContext
	waitNever
)

// New creates a cache partition for typeID
func New[T any](typeID string, config *Config) (*Cache[T], error) {
	if config == nil {
		config = NewDefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = NewNoOpLogger()
	}

	j, err := journal.New(config.JournalSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create construction journal: %w", err)
	}

	c := &Cache[T]{
		typeID:  typeID,
		config:  config,
		store:   memory.New[T](config.ShardCount),
		stats:   &Stats{},
		hooks:   config.Hooks,
		logger:  logger.With(F("type_id", typeID)),
		journal: j,
	}

	c.store.SetCleanupCallback(func(key string) {
		c.stats.incPurged()
		c.hooks.invokeOnReclaim(c.typeID, key, ReclaimReasonPurged)
	})

	c.initializeMetrics()

	return c, nil
}

// TypeID returns the type id this partition was created for
func (c *Cache[T]) TypeID() string {
	return c.typeID
}

// GetOrCreate returns the shared instance for args, constructing it with
// factory when no live instance exists. Concurrent callers with equivalent
// args wait for a single factory call and receive its result.
func (c *Cache[T]) GetOrCreate(args any, factory Factory[T]) (*T, error) {
	return c.getOrCreate(context.Background(), metrics.OperationGetOrCreate, args, factory, waitBlocking)
}

// GetOrCreateContext is like GetOrCreate but stops waiting when ctx is done.
// A construction already started keeps running and its result is still
// stored and delivered to the other callers.
func (c *Cache[T]) GetOrCreateContext(ctx context.Context, args any, factory Factory[T]) (*T, error) {
	return c.getOrCreate(ctx, metrics.OperationGetOrCreate, args, factory, waitContext)
}

// TryGetOrCreate is like GetOrCreate but never waits on another caller.
// It returns ErrConstructionInFlight if the instance for args is being built.
func (c *Cache[T]) TryGetOrCreate(args any, factory Factory[T]) (*T, error) {
	return c.getOrCreate(context.Background(), metrics.OperationTryGetOrCreate, args, factory, waitNever)
}

func (c *Cache[T]) getOrCreate(ctx context.Context, op metrics.Operation, args any, factory Factory[T], mode waitMode) (*T, error) {
	start := time.Now()
	defer func() {
		c.recordCacheOperation(op, time.Since(start))
	}()

	if c.closed.Load() {
		return nil, ErrClosed
	}
	if factory == nil {
		return nil, ErrNilFactory
	}

	key, err := argkey.Encode(args)
	if err != nil {
		c.stats.incRejected()
		return nil, err
	}

	if v := c.lookup(ctx, key); v != nil {
		return v, nil
	}
	c.stats.incMisses()
	c.hooks.invokeOnMiss(ctx, c.typeID, key)

	// led is only written by this caller's own flight
	var led bool
	construct := func() (*T, error) {
		led = true
		return c.construct(key, args, factory)
	}

	var v *T
	switch mode {
	case waitNever:
		var ok bool
		v, err, ok = c.flights.TryDo(key, construct)
		if !ok {
			return nil, ErrConstructionInFlight
		}
	case waitContext:
		v, err, _ = c.flights.DoContext(ctx, key, construct)
		if ctxErr := ctx.Err(); err == ctxErr && ctxErr != nil {
			return nil, err
		}
	default:
		v, err, _ = c.flights.Do(key, construct)
	}

	if !led {
		c.stats.incJoins()
		c.hooks.invokeOnJoin(c.typeID, key)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// lookup returns the live instance for key and records the hit
func (c *Cache[T]) lookup(ctx context.Context, key string) *T {
	e, ok := c.store.Get(key)
	if !ok {
		return nil
	}
	v := e.Value()
	if v == nil {
		return nil
	}
	e.Touch()
	c.stats.incHits()
	c.hooks.invokeOnHit(ctx, c.typeID, key, v)
	return v
}

// construct runs inside the flight for key. The slot is stored before the
// flight ends, so no caller arriving later can start a second construction.
func (c *Cache[T]) construct(key string, args any, factory Factory[T]) (*T, error) {
	if e, ok := c.store.Get(key); ok {
		if v := e.Value(); v != nil {
			return v, nil
		}
	}

	start := time.Now()
	v, err := callFactory(factory, args)
	took := time.Since(start)
	c.journal.Add(key, start, err)
	c.recordCacheOperation(metrics.OperationConstruct, took)

	if err != nil {
		c.stats.incConstructionErrors()
		c.logger.Warn("Construction failed", F("key", key), F("error", err))
		c.hooks.invokeOnConstructError(c.typeID, key, err)
		return nil, err
	}

	e := entry.New(v)
	c.store.Set(key, e)
	if c.closed.Load() {
		// Close cleared the store while the factory ran
		c.store.CompareAndDelete(key, e)
	} else if c.config.ReclaimCleanup {
		runtime.AddCleanup(v, c.reclaim, reclaimTicket[T]{key: key, entry: e})
	}

	c.stats.incConstructions()
	c.hooks.invokeOnConstruct(c.typeID, key, v, took)
	return v, nil
}

// callFactory runs factory, turning a panic into *PanicError and a nil
// instance into ErrNilInstance.
func callFactory[T any](factory Factory[T], args any) (v *T, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, &PanicError{Value: r}
		}
	}()

	v, err = factory(args)
	if err == nil && v == nil {
		err = ErrNilInstance
	}
	return v, err
}

// reclaim runs on the runtime cleanup goroutine after an instance was collected
func (c *Cache[T]) reclaim(t reclaimTicket[T]) {
	if !c.store.CompareAndDelete(t.key, t.entry) {
		return
	}
	c.stats.incReclaimed()
	c.hooks.invokeOnReclaim(c.typeID, t.key, ReclaimReasonCollected)
}

// Peek returns the live instance for args without constructing one.
// Unsupported arguments report false.
func (c *Cache[T]) Peek(args any) (*T, bool) {
	start := time.Now()
	defer func() {
		c.recordCacheOperation(metrics.OperationPeek, time.Since(start))
	}()

	key, err := argkey.Encode(args)
	if err != nil {
		return nil, false
	}
	e, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	v := e.Value()
	return v, v != nil
}

// Key returns the canonical key the cache uses for args
func (c *Cache[T]) Key(args any) (string, error) {
	return argkey.Encode(args)
}

// Len returns the number of live instances
func (c *Cache[T]) Len() int {
	return c.store.Len()
}

// Keys returns the sorted keys of all live instances
func (c *Cache[T]) Keys() []string {
	keys := c.store.Keys()
	slices.Sort(keys)
	return keys
}

// Purge removes every slot whose instance has been reclaimed and returns
// how many were removed
func (c *Cache[T]) Purge() int {
	start := time.Now()
	defer func() {
		c.recordCacheOperation(metrics.OperationPurge, time.Since(start))
	}()

	n := c.store.Cleanup()
	if n > 0 {
		c.logger.Debug("Purged expired slots", F("count", n))
	}
	return n
}

// Stats returns the cache statistics
func (c *Cache[T]) Stats() *Stats {
	c.stats.setLiveEntries(int64(c.store.Len()))
	c.stats.setInFlight(int64(c.flights.InFlight()))
	return c.stats
}

// Close stops metrics reporting and drops all slots. Instances already
// handed out stay valid. The metrics exporter is left open since it may be
// shared with other caches.
func (c *Cache[T]) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.metricsStop != nil {
			close(c.metricsStop)
			c.metricsWg.Wait()
		}
		c.store.Clear()
	})
	return nil
}

// initializeMetrics sets up metrics collection if enabled
func (c *Cache[T]) initializeMetrics() {
	mc := c.config.Metrics
	if mc == nil || !mc.Enabled || mc.Exporter == nil {
		c.metricsExporter = metrics.NewNoOpExporter()
		return
	}

	c.metricsExporter = mc.Exporter

	// Prepare metrics labels with cache name
	c.metricsLabels = make(metrics.Labels, len(mc.Labels)+1)
	maps.Copy(c.metricsLabels, mc.Labels)
	if mc.CacheName != "" {
		c.metricsLabels[metrics.LabelCacheName] = mc.CacheName
	} else {
		c.metricsLabels[metrics.LabelCacheName] = "default"
	}

	// Start automatic stats reporting if interval is configured
	if mc.ReportingInterval > 0 {
		c.metricsStop = make(chan struct{})
		c.metricsWg.Add(1)
		go c.metricsReporter(mc.ReportingInterval)
	}
}

// metricsReporter periodically exports cache statistics
func (c *Cache[T]) metricsReporter(interval time.Duration) {
	defer c.metricsWg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.exportCurrentStats()
		case <-c.metricsStop:
			// Final stats export before shutting down
			c.exportCurrentStats()
			return
		}
	}
}

// exportCurrentStats exports the current statistics to metrics
func (c *Cache[T]) exportCurrentStats() {
	if err := c.metricsExporter.ExportStats(c.Stats(), c.metricsLabels); err != nil {
		c.logger.Warn("Stats export failed", F("error", err))
	}
}

// recordCacheOperation records a cache operation with timing for metrics
func (c *Cache[T]) recordCacheOperation(operation metrics.Operation, duration time.Duration) {
	_ = c.metricsExporter.RecordCacheOperation(operation, duration, c.metricsLabels)
}
