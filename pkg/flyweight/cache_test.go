package flyweight

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/flyweight-go/pkg/argkey"
)

// glyph carries a string so instances are never tiny-allocated
type glyph struct {
	name   string
	weight int
}

var errBoom = errors.New("boom")

func newTestCache(t *testing.T, cfg *Config) *Cache[glyph] {
	t.Helper()
	c, err := New[glyph]("glyph", cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// countingFactory builds a glyph named after args["name"] and counts calls
func countingFactory(calls *atomic.Int32) Factory[glyph] {
	return func(args any) (*glyph, error) {
		calls.Add(1)
		name, _ := args.(map[string]any)["name"].(string)
		return &glyph{name: name}, nil
	}
}

func forceGC(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		runtime.GC()
		return cond()
	}, 5*time.Second, 10*time.Millisecond)
}

func TestGetOrCreateReusesLiveInstance(t *testing.T) {
	c := newTestCache(t, nil)
	var calls atomic.Int32
	factory := countingFactory(&calls)

	a, err := c.GetOrCreate(map[string]any{"name": "a", "size": 12}, factory)
	require.NoError(t, err)
	b, err := c.GetOrCreate(map[string]any{"size": 12.0, "name": "a"}, factory)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(1), c.Stats().Hits())
	assert.Equal(t, int64(1), c.Stats().Misses())
	assert.Equal(t, int64(1), c.Stats().Constructions())
	runtime.KeepAlive(a)
}

func TestGetOrCreateNoPhantomSharing(t *testing.T) {
	c := newTestCache(t, nil)
	var calls atomic.Int32
	factory := countingFactory(&calls)

	args := []any{
		map[string]any{"name": "a", "size": 1},
		map[string]any{"name": "a", "size": 2},
		map[string]any{"name": "a", "size": "1"},
		map[string]any{"name": "a", "size": []any{1}},
	}

	seen := make([]*glyph, 0, len(args))
	for _, a := range args {
		g, err := c.GetOrCreate(a, factory)
		require.NoError(t, err)
		for _, prev := range seen {
			assert.NotSame(t, prev, g)
		}
		seen = append(seen, g)
	}

	assert.Equal(t, int32(len(args)), calls.Load())
	assert.Equal(t, len(args), c.Len())
	runtime.KeepAlive(seen)
}

func TestGetOrCreateReclaimsUnreferencedInstance(t *testing.T) {
	c := newTestCache(t, nil)
	var calls atomic.Int32
	factory := countingFactory(&calls)
	args := map[string]any{"name": "transient"}

	func() {
		g, err := c.GetOrCreate(args, factory)
		require.NoError(t, err)
		require.Equal(t, "transient", g.name)
	}()

	forceGC(t, func() bool { return c.Stats().Reclaimed() == 1 })
	assert.Equal(t, 0, c.Len())
	_, ok := c.Peek(args)
	assert.False(t, ok)

	g, err := c.GetOrCreate(args, factory)
	require.NoError(t, err)
	assert.Equal(t, "transient", g.name)
	assert.Equal(t, int32(2), calls.Load())
	runtime.KeepAlive(g)
}

func TestPurgeRemovesExpiredSlotsWithoutCleanup(t *testing.T) {
	c := newTestCache(t, NewDefaultConfig().WithReclaimCleanup(false))
	var calls atomic.Int32

	func() {
		_, err := c.GetOrCreate(map[string]any{"name": "gone"}, countingFactory(&calls))
		require.NoError(t, err)
	}()

	forceGC(t, func() bool { return c.Len() == 0 })
	assert.Equal(t, 1, c.Purge())
	assert.Equal(t, 0, c.Purge())
	assert.Equal(t, int64(1), c.Stats().Purged())
	assert.Equal(t, int64(0), c.Stats().Reclaimed())
}

func TestGetOrCreateLazilyPurgesOnLookup(t *testing.T) {
	c := newTestCache(t, NewDefaultConfig().WithReclaimCleanup(false))
	var calls atomic.Int32
	factory := countingFactory(&calls)
	args := map[string]any{"name": "lazy"}

	func() {
		_, err := c.GetOrCreate(args, factory)
		require.NoError(t, err)
	}()
	forceGC(t, func() bool { return c.Len() == 0 })

	g, err := c.GetOrCreate(args, factory)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int64(1), c.Stats().Purged())
	runtime.KeepAlive(g)
}

func TestGetOrCreateRejectsUnsupportedArguments(t *testing.T) {
	c := newTestCache(t, nil)
	var calls atomic.Int32

	_, err := c.GetOrCreate(map[string]any{"name": "a", "cb": func() {}}, countingFactory(&calls))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedArgument)

	var uae *UnsupportedArgumentError
	require.ErrorAs(t, err, &uae)
	assert.Equal(t, "$.cb", uae.Path)

	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, int64(1), c.Stats().Rejected())
	assert.Equal(t, int64(0), c.Stats().Misses())
	assert.Equal(t, 0, c.Len())
}

func TestGetOrCreateNilFactoryAndNilInstance(t *testing.T) {
	c := newTestCache(t, nil)

	_, err := c.GetOrCreate(map[string]any{"name": "a"}, nil)
	assert.ErrorIs(t, err, ErrNilFactory)

	_, err = c.GetOrCreate(map[string]any{"name": "a"}, func(any) (*glyph, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrNilInstance)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(1), c.Stats().ConstructionErrors())
}

func TestGetOrCreateDoesNotCacheFailures(t *testing.T) {
	c := newTestCache(t, nil)
	var calls atomic.Int32
	fail := true
	factory := func(any) (*glyph, error) {
		calls.Add(1)
		if fail {
			return nil, errBoom
		}
		return &glyph{name: "ok"}, nil
	}

	_, err := c.GetOrCreate("key", factory)
	assert.Same(t, errBoom, err)
	_, err = c.GetOrCreate("key", factory)
	assert.Same(t, errBoom, err)

	fail = false
	g, err := c.GetOrCreate("key", factory)
	require.NoError(t, err)
	assert.Equal(t, "ok", g.name)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int64(2), c.Stats().ConstructionErrors())
	runtime.KeepAlive(g)
}

func TestGetOrCreateConcurrentSingleConstruction(t *testing.T) {
	c := newTestCache(t, nil)
	var calls atomic.Int32
	release := make(chan struct{})
	factory := func(any) (*glyph, error) {
		calls.Add(1)
		<-release
		return &glyph{name: "shared"}, nil
	}

	const n = 32
	results := make([]*glyph, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.GetOrCreate(map[string]any{"name": "shared"}, factory)
		}()
	}

	require.Eventually(t, func() bool { return c.Stats().InFlight() == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := range n {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Constructions())
	assert.Equal(t, int64(n), stats.Hits()+stats.Misses())
	assert.LessOrEqual(t, stats.Joins(), int64(n-1))
	assert.Equal(t, int64(0), stats.InFlight())
}

func TestGetOrCreateDifferentKeysDoNotBlock(t *testing.T) {
	c := newTestCache(t, nil)
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _ = c.GetOrCreate("slow", func(any) (*glyph, error) {
			close(started)
			<-release
			return &glyph{name: "slow"}, nil
		})
	}()
	<-started
	defer close(release)

	g, err := c.GetOrCreate("fast", func(any) (*glyph, error) { return &glyph{name: "fast"}, nil })
	require.NoError(t, err)
	assert.Equal(t, "fast", g.name)
	runtime.KeepAlive(g)
}

func TestGetOrCreateJoinedCallersShareError(t *testing.T) {
	c := newTestCache(t, nil)
	release := make(chan struct{})
	factory := func(any) (*glyph, error) {
		<-release
		return nil, errBoom
	}

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.GetOrCreate("failing", factory)
		}()
	}

	require.Eventually(t, func() bool { return c.Stats().InFlight() == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.Same(t, errBoom, err)
	}
	assert.Equal(t, 0, c.Len())
}

func TestGetOrCreateContextCancelKeepsConstruction(t *testing.T) {
	c := newTestCache(t, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	factory := func(any) (*glyph, error) {
		once.Do(func() { close(started) })
		<-release
		return &glyph{name: "slow"}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.GetOrCreateContext(ctx, "slow", factory)
		errCh <- err
	}()

	<-started
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, int64(1), c.Stats().InFlight())

	close(release)
	require.Eventually(t, func() bool { return c.Stats().Constructions() == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return c.Stats().InFlight() == 0 }, time.Second, time.Millisecond)
}

func TestGetOrCreateContextAlreadyCancelled(t *testing.T) {
	c := newTestCache(t, nil)
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetOrCreateContext(ctx, map[string]any{"name": "a"}, countingFactory(&calls))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), calls.Load())
}

func TestGetOrCreateContextReturnsInstance(t *testing.T) {
	c := newTestCache(t, nil)
	var calls atomic.Int32

	g, err := c.GetOrCreateContext(context.Background(), map[string]any{"name": "a"}, countingFactory(&calls))
	require.NoError(t, err)
	assert.Equal(t, "a", g.name)

	h, ok := c.Peek(map[string]any{"name": "a"})
	assert.True(t, ok)
	assert.Same(t, g, h)
}

func TestTryGetOrCreateFailsFastWhileInFlight(t *testing.T) {
	c := newTestCache(t, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	factory := func(any) (*glyph, error) {
		close(started)
		<-release
		return &glyph{name: "busy"}, nil
	}

	done := make(chan *glyph, 1)
	go func() {
		g, _ := c.GetOrCreate("busy", factory)
		done <- g
	}()
	<-started

	_, err := c.TryGetOrCreate("busy", factory)
	assert.ErrorIs(t, err, ErrConstructionInFlight)

	close(release)
	leader := <-done
	require.NotNil(t, leader)

	g, err := c.TryGetOrCreate("busy", factory)
	require.NoError(t, err)
	assert.Same(t, leader, g)
}

func TestFactoryPanicBecomesPanicError(t *testing.T) {
	var failures []error
	hooks := &Hooks{}
	hooks.AddOnConstructError(func(_, _ string, err error) {
		failures = append(failures, err)
	})
	c := newTestCache(t, NewDefaultConfig().WithHooks(hooks))

	_, err := c.GetOrCreate("panics", func(any) (*glyph, error) { panic("bad glyph") })
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "bad glyph", pe.Value)
	assert.Equal(t, "flyweight: factory panicked: bad glyph", err.Error())

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.ConstructionErrors())
	assert.Equal(t, int64(0), stats.Constructions())
	assert.Equal(t, int64(0), stats.InFlight())
	assert.Equal(t, 0, c.Len())

	require.Len(t, failures, 1)
	assert.Same(t, pe, failures[0])

	snap := c.debugSnapshot(true)
	require.Len(t, snap.Constructions, 1)
	assert.Equal(t, err.Error(), snap.Constructions[0].Error)
}

func TestPeekNeverConstructs(t *testing.T) {
	c := newTestCache(t, nil)
	var calls atomic.Int32

	_, ok := c.Peek(map[string]any{"name": "a"})
	assert.False(t, ok)
	_, ok = c.Peek(map[string]any{"bad": make(chan int)})
	assert.False(t, ok)

	g, err := c.GetOrCreate(map[string]any{"name": "a"}, countingFactory(&calls))
	require.NoError(t, err)
	p, ok := c.Peek(map[string]any{"name": "a"})
	assert.True(t, ok)
	assert.Same(t, g, p)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(0), c.Stats().Hits())
}

func TestKeyAndKeys(t *testing.T) {
	c := newTestCache(t, nil)
	var calls atomic.Int32
	factory := countingFactory(&calls)

	key, err := c.Key(map[string]any{"name": "b"})
	require.NoError(t, err)
	assert.Equal(t, argkey.MustEncode(map[string]any{"name": "b"}), key)

	_, err = c.Key([]string{"typed"})
	assert.ErrorIs(t, err, ErrUnsupportedArgument)

	a, err := c.GetOrCreate(map[string]any{"name": "a"}, factory)
	require.NoError(t, err)
	b, err := c.GetOrCreate(map[string]any{"name": "b"}, factory)
	require.NoError(t, err)

	assert.Equal(t, []string{`{"name":"a"}`, `{"name":"b"}`}, c.Keys())
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int64(2), c.Stats().LiveEntries())
	runtime.KeepAlive(a)
	runtime.KeepAlive(b)
}

func TestCloseRejectsFurtherCalls(t *testing.T) {
	c := newTestCache(t, nil)
	var calls atomic.Int32

	g, err := c.GetOrCreate(map[string]any{"name": "a"}, countingFactory(&calls))
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.GetOrCreate(map[string]any{"name": "a"}, countingFactory(&calls))
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, "a", g.name)
}

func TestCloseDuringConstructionLeavesNoSlot(t *testing.T) {
	c := newTestCache(t, nil)
	started := make(chan struct{})
	release := make(chan struct{})

	type result struct {
		g   *glyph
		err error
	}
	done := make(chan result, 1)
	go func() {
		g, err := c.GetOrCreate("late", func(any) (*glyph, error) {
			close(started)
			<-release
			return &glyph{name: "late"}, nil
		})
		done <- result{g, err}
	}()

	<-started
	require.NoError(t, c.Close())
	close(release)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "late", res.g.name)
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Keys())
	runtime.KeepAlive(res.g)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New[glyph]("glyph", NewDefaultConfig().WithShardCount(-1))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	c, err := New[glyph]("glyph", nil)
	require.NoError(t, err)
	assert.Equal(t, "glyph", c.TypeID())
	require.NoError(t, c.Close())
}

func TestStatsReset(t *testing.T) {
	c := newTestCache(t, nil)
	var calls atomic.Int32
	g, err := c.GetOrCreate(map[string]any{"name": "a"}, countingFactory(&calls))
	require.NoError(t, err)
	_, err = c.GetOrCreate(map[string]any{"name": "a"}, countingFactory(&calls))
	require.NoError(t, err)

	stats := c.Stats()
	assert.InDelta(t, 50.0, stats.HitRate(), 0.001)
	assert.Equal(t, int64(2), stats.Total())

	stats.Reset()
	assert.Equal(t, int64(0), stats.Total())
	assert.Zero(t, stats.HitRate())
	assert.Equal(t, int64(1), c.Stats().LiveEntries())
	runtime.KeepAlive(g)
}
