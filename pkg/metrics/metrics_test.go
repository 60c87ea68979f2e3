package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStats is a settable Stats implementation
type fakeStats struct {
	hits, misses, constructions, constructionErrors int64
	joins, rejected, reclaimed, purged              int64
	live, inFlight                                  int64
}

func (s *fakeStats) Hits() int64               { return s.hits }
func (s *fakeStats) Misses() int64             { return s.misses }
func (s *fakeStats) Constructions() int64      { return s.constructions }
func (s *fakeStats) ConstructionErrors() int64 { return s.constructionErrors }
func (s *fakeStats) Joins() int64              { return s.joins }
func (s *fakeStats) Rejected() int64           { return s.rejected }
func (s *fakeStats) Reclaimed() int64          { return s.reclaimed }
func (s *fakeStats) Purged() int64             { return s.purged }
func (s *fakeStats) LiveEntries() int64        { return s.live }
func (s *fakeStats) InFlight() int64           { return s.inFlight }

func (s *fakeStats) HitRate() float64 {
	total := s.hits + s.misses
	if total == 0 {
		return 0
	}
	return float64(s.hits) / float64(total) * 100
}

// recordingExporter counts calls and can be told to fail
type recordingExporter struct {
	NoOpExporter
	exports    int
	operations []Operation
	closed     bool
	err        error
}

func (r *recordingExporter) ExportStats(Stats, Labels) error {
	r.exports++
	return r.err
}

func (r *recordingExporter) RecordCacheOperation(op Operation, _ time.Duration, _ Labels) error {
	r.operations = append(r.operations, op)
	return r.err
}

func (r *recordingExporter) Close() error {
	r.closed = true
	return r.err
}

func TestDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "flyweight", cfg.Namespace)
	assert.Equal(t, 30*time.Second, cfg.ReportingInterval)
	assert.False(t, cfg.IncludeDetailedTimings)
	assert.Equal(t, "flyweight_hits_total", cfg.MetricNames.CacheHitsTotal)
	assert.Equal(t, "flyweight_live_entries", cfg.MetricNames.CacheLiveEntries)
}

func TestConfigBuilder(t *testing.T) {
	cfg := NewDefaultConfig().
		WithNamespace("glyphs").
		WithLabels(Labels{"env": "test"}).
		WithLabels(Labels{"region": "eu"}).
		WithReportingInterval(time.Second).
		WithDetailedTimings(true)

	assert.Equal(t, "glyphs", cfg.Namespace)
	assert.Equal(t, Labels{"env": "test", "region": "eu"}, cfg.Labels)
	assert.Equal(t, time.Second, cfg.ReportingInterval)
	assert.True(t, cfg.IncludeDetailedTimings)

	var zero Config
	zero.WithLabels(Labels{"a": "b"})
	assert.Equal(t, Labels{"a": "b"}, zero.Labels)
}

func TestMultiExporterFansOut(t *testing.T) {
	a, b := &recordingExporter{}, &recordingExporter{}
	m := NewMultiExporter(a, b)

	require.NoError(t, m.ExportStats(&fakeStats{}, nil))
	require.NoError(t, m.RecordCacheOperation(OperationPeek, time.Millisecond, nil))
	require.NoError(t, m.IncrementCounter("c", nil))
	require.NoError(t, m.RecordHistogram("h", 1, nil))
	require.NoError(t, m.SetGauge("g", 1, nil))
	require.NoError(t, m.Close())

	for _, r := range []*recordingExporter{a, b} {
		assert.Equal(t, 1, r.exports)
		assert.Equal(t, []Operation{OperationPeek}, r.operations)
		assert.True(t, r.closed)
	}
}

func TestMultiExporterStopsOnError(t *testing.T) {
	boom := errors.New("export failed")
	a, b := &recordingExporter{err: boom}, &recordingExporter{}
	m := NewMultiExporter(a, b)

	assert.ErrorIs(t, m.ExportStats(&fakeStats{}, nil), boom)
	assert.Equal(t, 0, b.exports)
}

func TestNoOpExporter(t *testing.T) {
	n := NewNoOpExporter()

	assert.NoError(t, n.ExportStats(&fakeStats{}, nil))
	assert.NoError(t, n.RecordCacheOperation(OperationGetOrCreate, 0, nil))
	assert.NoError(t, n.IncrementCounter("x", nil))
	assert.NoError(t, n.RecordHistogram("x", 1, nil))
	assert.NoError(t, n.SetGauge("x", 1, nil))
	assert.NoError(t, n.Close())
}

func TestCounterSnapshotDelta(t *testing.T) {
	prev := counterSnapshot{hits: 5, misses: 2, purged: 4}
	cur := counterSnapshot{hits: 8, misses: 2, purged: 1}

	d := cur.delta(prev)
	assert.Equal(t, int64(3), d.hits)
	assert.Equal(t, int64(0), d.misses)
	// A counter below its previous value was reset.
	assert.Equal(t, int64(1), d.purged)
}
