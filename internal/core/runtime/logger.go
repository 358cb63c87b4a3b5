package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity of a log entry.
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// ParseLogLevel maps a case-insensitive level name onto LogLevel, falling
// back to info.
func ParseLogLevel(value string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "DEBUG":
		return LogLevelDebug
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// LogField represents a key-value pair in structured logging.
type LogField struct {
	Key   string
	Value any
}

// Field creates a LogField from a key-value pair.
func Field(key string, value any) LogField {
	return LogField{Key: key, Value: value}
}

// Logger provides structured logging capabilities with context support.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...LogField)
	Info(ctx context.Context, msg string, fields ...LogField)
	Warn(ctx context.Context, msg string, fields ...LogField)
	Error(ctx context.Context, msg string, err error, fields ...LogField)
	WithFields(fields ...LogField) Logger
}

// NoOpLogger is a logger that discards all log entries.
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(_ context.Context, _ string, _ ...LogField)          {}
func (n *NoOpLogger) Info(_ context.Context, _ string, _ ...LogField)           {}
func (n *NoOpLogger) Warn(_ context.Context, _ string, _ ...LogField)           {}
func (n *NoOpLogger) Error(_ context.Context, _ string, _ error, _ ...LogField) {}
func (n *NoOpLogger) WithFields(_ ...LogField) Logger                           { return n }

// ZapLogger writes structured entries through zap. Trace IDs found in the
// context are attached to every entry.
type ZapLogger struct {
	zap    *zap.Logger
	fields []LogField
	// file is owned by the logger returned from NewZapLogger; derived
	// loggers leave it nil.
	file   *os.File
	closed bool
}

// NewZapLogger creates a logger that appends JSON entries to logPath.
// If logPath is empty, logging is disabled.
// If development is true, the development encoder config is used.
func NewZapLogger(logPath string, minLevel LogLevel, development bool) (*ZapLogger, error) {
	if strings.TrimSpace(logPath) == "" {
		return &ZapLogger{zap: zap.NewNop()}, nil
	}

	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("runtime: open log file: %w", err)
	}

	var encoderConfig zapcore.EncoderConfig
	if development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
	}
	encoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(logFile),
		minLevel.zapLevel(),
	)
	return &ZapLogger{zap: zap.New(core), file: logFile}, nil
}

// NewZapLoggerFrom wraps an existing zap logger.
func NewZapLoggerFrom(logger *zap.Logger) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{zap: logger}
}

// Close syncs the logger and closes the log file it opened (should be called
// on shutdown). Calling Close again after the file was closed is a no-op.
func (z *ZapLogger) Close() error {
	if z.closed {
		return nil
	}
	syncErr := z.zap.Sync()
	if z.file == nil {
		return syncErr
	}
	closeErr := z.file.Close()
	z.file = nil
	z.closed = true
	return errors.Join(syncErr, closeErr)
}

func (z *ZapLogger) zapFields(ctx context.Context, err error, fields []LogField) []zap.Field {
	out := make([]zap.Field, 0, len(z.fields)+len(fields)+2)
	for _, f := range z.fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	if traceID := getTraceID(ctx); traceID != "" {
		out = append(out, zap.String("trace_id", traceID))
	}
	if err != nil {
		out = append(out, zap.Error(err))
	}
	return out
}

func (z *ZapLogger) Debug(ctx context.Context, msg string, fields ...LogField) {
	z.zap.Debug(msg, z.zapFields(ctx, nil, fields)...)
}

func (z *ZapLogger) Info(ctx context.Context, msg string, fields ...LogField) {
	z.zap.Info(msg, z.zapFields(ctx, nil, fields)...)
}

func (z *ZapLogger) Warn(ctx context.Context, msg string, fields ...LogField) {
	z.zap.Warn(msg, z.zapFields(ctx, nil, fields)...)
}

func (z *ZapLogger) Error(ctx context.Context, msg string, err error, fields ...LogField) {
	z.zap.Error(msg, z.zapFields(ctx, err, fields)...)
}

func (z *ZapLogger) WithFields(fields ...LogField) Logger {
	merged := make([]LogField, 0, len(z.fields)+len(fields))
	merged = append(merged, z.fields...)
	merged = append(merged, fields...)
	return &ZapLogger{zap: z.zap, fields: merged}
}

// traceIDKey is the context key for trace IDs.
type traceIDKey struct{}

// WithTraceID adds a trace ID to the context for request correlation.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// getTraceID extracts the trace ID from context, if present.
func getTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(traceIDKey{}).(string); ok {
		return id
	}
	return ""
}

// generateTraceID creates a new trace ID for request correlation.
func generateTraceID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
