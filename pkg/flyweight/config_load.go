package flyweight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/vnykmshr/flyweight-go/pkg/metrics"
)

// Format is a configuration file format
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ErrUnsupportedFormat is returned for configuration files that are neither YAML nor JSON
var ErrUnsupportedFormat = errors.New("flyweight: unsupported config format")

// FileConfig is the file representation of a Config.
// Unset fields keep the defaults of NewDefaultConfig.
type FileConfig struct {
	ShardCount     int               `koanf:"shard_count"`
	ReclaimCleanup *bool             `koanf:"reclaim_cleanup"`
	JournalSize    *int              `koanf:"journal_size"`
	LogLevel       string            `koanf:"log_level"`
	Metrics        FileMetricsConfig `koanf:"metrics"`
}

// FileMetricsConfig is the file representation of a MetricsConfig
type FileMetricsConfig struct {
	Enabled           bool              `koanf:"enabled"`
	CacheName         string            `koanf:"cache_name"`
	ReportingInterval time.Duration     `koanf:"reporting_interval"`
	Labels            map[string]string `koanf:"labels"`
}

// LoadConfig reads a YAML or JSON configuration file.
// The format is chosen by the file extension.
func LoadConfig(path string) (*FileConfig, error) {
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("flyweight: read config: %w", err)
	}
	return LoadConfigBytes(data, format)
}

// LoadConfigBytes parses configuration data in the given format.
// Empty data yields an empty FileConfig.
func LoadConfigBytes(data []byte, format Format) (*FileConfig, error) {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	k := koanf.New(".")
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return nil, fmt.Errorf("flyweight: parse config: %w", err)
		}
	}

	fc := &FileConfig{}
	if err := k.UnmarshalWithConf("", fc, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("flyweight: decode config: %w", err)
	}
	return fc, nil
}

// Apply builds a validated Config from the file settings.
// The exporter is not part of the file and must be supplied when metrics
// are enabled.
func (fc *FileConfig) Apply(exporter metrics.Exporter) (*Config, error) {
	cfg := NewDefaultConfig()
	if fc.ShardCount != 0 {
		cfg.ShardCount = fc.ShardCount
	}
	if fc.ReclaimCleanup != nil {
		cfg.ReclaimCleanup = *fc.ReclaimCleanup
	}
	if fc.JournalSize != nil {
		cfg.JournalSize = *fc.JournalSize
	}

	if fc.LogLevel != "" {
		level, err := ParseLogLevel(fc.LogLevel)
		if err != nil {
			return nil, err
		}
		cfg.Logger = NewDefaultLogger(level)
	}

	if fc.Metrics.Enabled {
		cfg.WithMetricsExporter(exporter, fc.Metrics.CacheName)
		if fc.Metrics.ReportingInterval != 0 {
			cfg.Metrics.ReportingInterval = fc.Metrics.ReportingInterval
		}
		cfg.WithMetricsLabels(fc.Metrics.Labels)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func detectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %s", ErrUnsupportedFormat, ext)
	}
}
