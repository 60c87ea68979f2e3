package flyweight

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel defines the severity level for logging
type LogLevel int

const (
	// LogLevelDebug enables all log messages including detailed debugging
	LogLevelDebug LogLevel = iota

	// LogLevelInfo enables informational messages and above
	LogLevelInfo

	// LogLevelWarn enables warning messages and above
	LogLevelWarn

	// LogLevelError enables only error messages
	LogLevelError

	// LogLevelNone disables all logging
	LogLevelNone
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel converts a level name such as "info" or "WARN" into a LogLevel
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LogLevelDebug, nil
	case "INFO", "":
		return LogLevelInfo, nil
	case "WARN", "WARNING":
		return LogLevelWarn, nil
	case "ERROR":
		return LogLevelError, nil
	case "NONE", "OFF":
		return LogLevelNone, nil
	default:
		return LogLevelNone, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, s)
	}
}

// Logger defines the interface for cache logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// F is a convenience function to create a logging field
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// DefaultLogger implements Logger on top of log/slog
type DefaultLogger struct {
	level  LogLevel
	logger *slog.Logger
}

// NewDefaultLogger creates a text logger on stdout with the specified level
func NewDefaultLogger(level LogLevel) *DefaultLogger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &DefaultLogger{
		level:  level,
		logger: slog.New(handler).With(slog.String("component", "flyweight")),
	}
}

// NewSlogLogger adapts an existing slog.Logger. Level filtering is left to its handler.
func NewSlogLogger(logger *slog.Logger) *DefaultLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultLogger{level: LogLevelDebug, logger: logger}
}

// Debug logs a debug message
func (dl *DefaultLogger) Debug(msg string, fields ...Field) {
	if dl.level <= LogLevelDebug {
		dl.log(slog.LevelDebug, msg, fields)
	}
}

// Info logs an info message
func (dl *DefaultLogger) Info(msg string, fields ...Field) {
	if dl.level <= LogLevelInfo {
		dl.log(slog.LevelInfo, msg, fields)
	}
}

// Warn logs a warning message
func (dl *DefaultLogger) Warn(msg string, fields ...Field) {
	if dl.level <= LogLevelWarn {
		dl.log(slog.LevelWarn, msg, fields)
	}
}

// Error logs an error message
func (dl *DefaultLogger) Error(msg string, fields ...Field) {
	if dl.level <= LogLevelError {
		dl.log(slog.LevelError, msg, fields)
	}
}

// With creates a new logger with additional fields
func (dl *DefaultLogger) With(fields ...Field) Logger {
	return &DefaultLogger{
		level:  dl.level,
		logger: dl.logger.With(attrs(fields)...),
	}
}

func (dl *DefaultLogger) log(level slog.Level, msg string, fields []Field) {
	dl.logger.Log(context.Background(), level, msg, attrs(fields)...)
}

func attrs(fields []Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

// NoOpLogger is a logger that does nothing - useful for disabling logging
type NoOpLogger struct{}

// NewNoOpLogger creates a logger that discards all messages
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (nol *NoOpLogger) Debug(string, ...Field) {}
func (nol *NoOpLogger) Info(string, ...Field)  {}
func (nol *NoOpLogger) Warn(string, ...Field)  {}
func (nol *NoOpLogger) Error(string, ...Field) {}
func (nol *NoOpLogger) With(...Field) Logger   { return nol }

// LoggingConfig defines configuration for cache event logging
type LoggingConfig struct {
	Logger Logger

	// LogHits enables logging of cache hit events
	LogHits bool

	// LogMisses enables logging of cache miss events
	LogMisses bool

	// LogConstructions enables logging of successful constructions
	LogConstructions bool

	// LogConstructionErrors enables logging of failed constructions
	LogConstructionErrors bool

	// LogJoins enables logging of callers joining an in-flight construction
	LogJoins bool

	// LogReclaims enables logging of slot removals
	LogReclaims bool

	// LogSlowConstructions enables warnings for constructions exceeding the threshold
	LogSlowConstructions bool
	SlowConstructionThreshold time.Duration
}

// NewDefaultLoggingConfig creates a logging configuration with sensible defaults
func NewDefaultLoggingConfig(level LogLevel) *LoggingConfig {
	return &LoggingConfig{
		Logger:                    NewDefaultLogger(level),
		LogHits:                   true,
		LogMisses:                 true,
		LogConstructions:          true,
		LogConstructionErrors:     true,
		LogJoins:                  true,
		LogReclaims:               true,
		LogSlowConstructions:      true,
		SlowConstructionThreshold: 100 * time.Millisecond,
	}
}

// CreateLoggingHooks creates a set of hooks that implement cache event logging
func CreateLoggingHooks(config *LoggingConfig) *Hooks {
	if config == nil || config.Logger == nil {
		return &Hooks{}
	}

	hooks := &Hooks{}
	logger := config.Logger

	if config.LogHits {
		hooks.AddOnHitCtx(func(ctx context.Context, typeID, key string, _ any) {
			fields := []Field{F("type_id", typeID), F("key", key), F("event", "hit")}
			if requestID := requestIDFrom(ctx); requestID != nil {
				fields = append(fields, F("request_id", requestID))
			}
			logger.Debug("Cache hit", fields...)
		})
	}

	if config.LogMisses {
		hooks.AddOnMissCtx(func(ctx context.Context, typeID, key string) {
			fields := []Field{F("type_id", typeID), F("key", key), F("event", "miss")}
			if requestID := requestIDFrom(ctx); requestID != nil {
				fields = append(fields, F("request_id", requestID))
			}
			logger.Debug("Cache miss", fields...)
		})
	}

	if config.LogConstructions || config.LogSlowConstructions {
		threshold := config.SlowConstructionThreshold
		hooks.AddOnConstruct(func(typeID, key string, _ any, took time.Duration) {
			fields := []Field{F("type_id", typeID), F("key", key), F("event", "construct"), F("took", took)}
			if config.LogSlowConstructions && threshold > 0 && took >= threshold {
				logger.Warn("Slow construction", fields...)
				return
			}
			if config.LogConstructions {
				logger.Info("Instance constructed", fields...)
			}
		})
	}

	if config.LogConstructionErrors {
		hooks.AddOnConstructError(func(typeID, key string, err error) {
			logger.Error("Construction failed",
				F("type_id", typeID), F("key", key), F("event", "construct_error"), F("error", err))
		})
	}

	if config.LogJoins {
		hooks.AddOnJoin(func(typeID, key string) {
			logger.Debug("Joined construction", F("type_id", typeID), F("key", key), F("event", "join"))
		})
	}

	if config.LogReclaims {
		hooks.AddOnReclaim(func(typeID, key string, reason ReclaimReason) {
			logger.Debug("Slot reclaimed",
				F("type_id", typeID), F("key", key), F("event", "reclaim"), F("reason", reason.String()))
		})
	}

	return hooks
}

type requestIDKey struct{}

// WithRequestID returns a context whose request id is added to hit and miss log lines
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) any {
	if ctx == nil {
		return nil
	}
	return ctx.Value(requestIDKey{})
}

// LoggingHookBuilder provides a fluent interface for creating logging hooks
type LoggingHookBuilder struct {
	config *LoggingConfig
}

// NewLoggingHookBuilder creates a new logging hook builder
func NewLoggingHookBuilder() *LoggingHookBuilder {
	return &LoggingHookBuilder{
		config: &LoggingConfig{
			Logger:                    NewNoOpLogger(),
			SlowConstructionThreshold: 100 * time.Millisecond,
		},
	}
}

// WithLogger sets the logger to use
func (lhb *LoggingHookBuilder) WithLogger(logger Logger) *LoggingHookBuilder {
	lhb.config.Logger = logger
	return lhb
}

// WithLevel sets the logging level (creates a default logger)
func (lhb *LoggingHookBuilder) WithLevel(level LogLevel) *LoggingHookBuilder {
	lhb.config.Logger = NewDefaultLogger(level)
	return lhb
}

// EnableHitLogging enables cache hit logging
func (lhb *LoggingHookBuilder) EnableHitLogging() *LoggingHookBuilder {
	lhb.config.LogHits = true
	return lhb
}

// EnableMissLogging enables cache miss logging
func (lhb *LoggingHookBuilder) EnableMissLogging() *LoggingHookBuilder {
	lhb.config.LogMisses = true
	return lhb
}

// EnableConstructionLogging enables logging of successful and failed constructions
func (lhb *LoggingHookBuilder) EnableConstructionLogging() *LoggingHookBuilder {
	lhb.config.LogConstructions = true
	lhb.config.LogConstructionErrors = true
	return lhb
}

// EnableJoinLogging enables logging of joined constructions
func (lhb *LoggingHookBuilder) EnableJoinLogging() *LoggingHookBuilder {
	lhb.config.LogJoins = true
	return lhb
}

// EnableReclaimLogging enables logging of slot removals
func (lhb *LoggingHookBuilder) EnableReclaimLogging() *LoggingHookBuilder {
	lhb.config.LogReclaims = true
	return lhb
}

// EnableAllLogging enables all types of cache event logging
func (lhb *LoggingHookBuilder) EnableAllLogging() *LoggingHookBuilder {
	lhb.config.LogHits = true
	lhb.config.LogMisses = true
	lhb.config.LogConstructions = true
	lhb.config.LogConstructionErrors = true
	lhb.config.LogJoins = true
	lhb.config.LogReclaims = true
	return lhb
}

// EnableSlowConstructionLogging warns about constructions slower than threshold
func (lhb *LoggingHookBuilder) EnableSlowConstructionLogging(threshold time.Duration) *LoggingHookBuilder {
	lhb.config.LogSlowConstructions = true
	lhb.config.SlowConstructionThreshold = threshold
	return lhb
}

// Build creates the hooks configured by this builder
func (lhb *LoggingHookBuilder) Build() *Hooks {
	return CreateLoggingHooks(lhb.config)
}
