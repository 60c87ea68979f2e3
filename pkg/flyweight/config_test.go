package flyweight

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/flyweight-go/pkg/metrics"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, 32, cfg.ShardCount)
	assert.True(t, cfg.ReclaimCleanup)
	assert.Equal(t, DefaultJournalSize, cfg.JournalSize)
	assert.NotNil(t, cfg.Hooks)
	assert.IsType(t, &NoOpLogger{}, cfg.Logger)
	assert.Nil(t, cfg.Metrics)
	assert.NoError(t, cfg.Validate())
}

func TestConfigBuilder(t *testing.T) {
	hooks := &Hooks{}
	logger := NewNoOpLogger()
	exp := metrics.NewNoOpExporter()

	cfg := NewDefaultConfig().
		WithShardCount(8).
		WithReclaimCleanup(false).
		WithJournalSize(0).
		WithHooks(hooks).
		WithLogger(logger).
		WithMetricsExporter(exp, "glyphs").
		WithMetricsLabels(metrics.Labels{"service": "render"}).
		WithMetricsReportingInterval(time.Second)

	assert.Equal(t, 8, cfg.ShardCount)
	assert.False(t, cfg.ReclaimCleanup)
	assert.Equal(t, 0, cfg.JournalSize)
	assert.Same(t, hooks, cfg.Hooks)
	assert.Same(t, logger, cfg.Logger)
	require.NotNil(t, cfg.Metrics)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "glyphs", cfg.Metrics.CacheName)
	assert.Equal(t, time.Second, cfg.Metrics.ReportingInterval)
	assert.Equal(t, "render", cfg.Metrics.Labels["service"])
	assert.NoError(t, cfg.Validate())
}

func TestConfigMetricsHelpersWithoutExporter(t *testing.T) {
	cfg := NewDefaultConfig().WithMetricsLabels(metrics.Labels{"a": "b"})
	require.NotNil(t, cfg.Metrics)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, DefaultReportingInterval, cfg.Metrics.ReportingInterval)

	cfg = NewDefaultConfig().WithMetricsReportingInterval(5 * time.Second)
	require.NotNil(t, cfg.Metrics)
	assert.Equal(t, 5*time.Second, cfg.Metrics.ReportingInterval)
	assert.NotNil(t, cfg.Metrics.Labels)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"negative shards", NewDefaultConfig().WithShardCount(-1)},
		{"negative journal", NewDefaultConfig().WithJournalSize(-5)},
		{"negative interval", NewDefaultConfig().WithMetricsReportingInterval(-time.Second)},
		{"enabled without exporter", NewDefaultConfig().WithMetrics(&MetricsConfig{Enabled: true})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfigCloneOwnsLabels(t *testing.T) {
	cfg := NewDefaultConfig().WithMetricsLabels(metrics.Labels{"a": "1"})
	cp := cfg.clone()
	cp.Metrics.Labels["a"] = "2"
	cp.Metrics.CacheName = "other"

	assert.Equal(t, "1", cfg.Metrics.Labels["a"])
	assert.Equal(t, "", cfg.Metrics.CacheName)
	assert.Same(t, cfg.Hooks, cp.Hooks)
}

func TestLoadConfigBytesYAML(t *testing.T) {
	data := []byte(`
shard_count: 16
reclaim_cleanup: false
journal_size: 10
log_level: warn
metrics:
  enabled: true
  cache_name: glyphs
  reporting_interval: 15s
  labels:
    service: render
`)

	fc, err := LoadConfigBytes(data, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, 16, fc.ShardCount)
	require.NotNil(t, fc.ReclaimCleanup)
	assert.False(t, *fc.ReclaimCleanup)
	require.NotNil(t, fc.JournalSize)
	assert.Equal(t, 10, *fc.JournalSize)
	assert.Equal(t, "warn", fc.LogLevel)
	assert.True(t, fc.Metrics.Enabled)
	assert.Equal(t, "glyphs", fc.Metrics.CacheName)
	assert.Equal(t, 15*time.Second, fc.Metrics.ReportingInterval)
	assert.Equal(t, map[string]string{"service": "render"}, fc.Metrics.Labels)

	cfg, err := fc.Apply(metrics.NewNoOpExporter())
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.ShardCount)
	assert.False(t, cfg.ReclaimCleanup)
	assert.Equal(t, 10, cfg.JournalSize)
	assert.IsType(t, &DefaultLogger{}, cfg.Logger)
	assert.Equal(t, LogLevelWarn, cfg.Logger.(*DefaultLogger).level)
	assert.Equal(t, "glyphs", cfg.Metrics.CacheName)
	assert.Equal(t, 15*time.Second, cfg.Metrics.ReportingInterval)
	assert.Equal(t, "render", cfg.Metrics.Labels["service"])
}

func TestLoadConfigBytesJSONDefaults(t *testing.T) {
	fc, err := LoadConfigBytes([]byte(`{"shard_count": 4}`), FormatJSON)
	require.NoError(t, err)

	cfg, err := fc.Apply(nil)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.ShardCount)
	assert.True(t, cfg.ReclaimCleanup)
	assert.Equal(t, DefaultJournalSize, cfg.JournalSize)
	assert.Nil(t, cfg.Metrics)
}

func TestLoadConfigBytesEmpty(t *testing.T) {
	fc, err := LoadConfigBytes(nil, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, &FileConfig{}, fc)
}

func TestLoadConfigBytesErrors(t *testing.T) {
	_, err := LoadConfigBytes([]byte("a: 1"), Format("toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = LoadConfigBytes([]byte("{not json"), FormatJSON)
	assert.Error(t, err)

	fc, err := LoadConfigBytes([]byte("log_level: loud"), FormatYAML)
	require.NoError(t, err)
	_, err = fc.Apply(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	fc, err = LoadConfigBytes([]byte("metrics:\n  enabled: true"), FormatYAML)
	require.NoError(t, err)
	_, err = fc.Apply(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	fc, err = LoadConfigBytes([]byte("shard_count: -2"), FormatYAML)
	require.NoError(t, err)
	_, err = fc.Apply(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "flyweight.yml")
	require.NoError(t, os.WriteFile(path, []byte("journal_size: 3\n"), 0o600))
	fc, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, fc.JournalSize)
	assert.Equal(t, 3, *fc.JournalSize)

	_, err = LoadConfig(filepath.Join(dir, "flyweight.ini"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = LoadConfig(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
