// Package logger provides the process-wide zap logger used by the verifier
// service and the timing probe.
package logger

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu            sync.RWMutex
	defaultLogger *zap.Logger

	atomicLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// ctxKey is the context key for a request-scoped logger.
type ctxKey struct{}

// correlationIDKey is the context key for correlation ID.
type correlationIDKey struct{}

// CorrelationIDHeader is the header carrying the correlation ID.
const CorrelationIDHeader = "X-Correlation-ID"

// Config holds logger configuration.
type Config struct {
	Level       string `mapstructure:"level" jsonschema:"description=Log level.,enum=debug,enum=info,enum=warn,enum=error,default=info"`
	Format      string `mapstructure:"format" jsonschema:"description=Log output format.,enum=json,enum=console,default=json"`
	Output      string `mapstructure:"output" jsonschema:"description=Log output destination. Can be 'stdout'\\, 'stderr'\\, or a file path.,default=stdout"`
	AddCaller   bool   `mapstructure:"add_caller" jsonschema:"description=Include caller information (file:line) in log entries.,default=true"`
	Stacktrace  bool   `mapstructure:"stacktrace" jsonschema:"description=Include stack trace for error level logs.,default=false"`
	MaskSecrets bool   `mapstructure:"mask_secrets" jsonschema:"description=Mask recovered secrets and tokens before they reach the log.,default=true"`
}

// DefaultConfig returns default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:       "info",
		Format:      "json",
		Output:      "stdout",
		AddCaller:   true,
		Stacktrace:  false,
		MaskSecrets: true,
	}
}

// Init initializes the global logger.
func Init(cfg Config) error {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	atomicLevel.SetLevel(level)

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	var writer zapcore.WriteSyncer
	switch cfg.Output {
	case "", "stdout":
		writer = zapcore.AddSync(os.Stdout)
	case "stderr":
		writer = zapcore.AddSync(os.Stderr)
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		writer = zapcore.AddSync(file)
	}

	core := zapcore.NewCore(encoder, writer, atomicLevel)

	opts := []zap.Option{}
	if cfg.AddCaller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	if cfg.Stacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	InitMasker(SensitiveDataConfig{
		Enabled:   cfg.MaskSecrets,
		MaskValue: "***",
		PartialMask: PartialMaskConfig{
			Enabled:   true,
			ShowFirst: 1,
			ShowLast:  1,
			MinLength: 6,
		},
	})

	SetLogger(zap.New(core, opts...))
	return nil
}

// SetLogger replaces the global logger. Tests use it to install zap.NewNop
// or an observer core.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
}

// L returns the default logger.
func L() *zap.Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger, _ = zap.NewProduction()
	}
	return defaultLogger
}

// WithContext returns the logger stored in ctx or the default logger.
func WithContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return L()
	}
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return L()
}

// With returns ctx carrying the context logger extended with fields. Every
// WithContext(ctx) call downstream includes them.
func With(ctx context.Context, fields ...zap.Field) context.Context {
	return context.WithValue(ctx, ctxKey{}, WithContext(ctx).With(fields...))
}

// WithCorrelationID stores the correlation ID and a logger carrying it.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	ctx = context.WithValue(ctx, correlationIDKey{}, correlationID)
	return With(ctx, zap.String("correlation_id", correlationID))
}

// CorrelationID returns the correlation ID stored in ctx.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// Info logs at info level.
func Info(msg string, fields ...zap.Field) {
	L().Info(msg, fields...)
}

// Debug logs at debug level.
func Debug(msg string, fields ...zap.Field) {
	L().Debug(msg, fields...)
}

// Warn logs at warn level.
func Warn(msg string, fields ...zap.Field) {
	L().Warn(msg, fields...)
}

// Error logs at error level.
func Error(msg string, fields ...zap.Field) {
	L().Error(msg, fields...)
}

// Fatal logs at fatal level and exits.
func Fatal(msg string, fields ...zap.Field) {
	L().Fatal(msg, fields...)
}

// Sync flushes any buffered log entries.
func Sync() error {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l != nil {
		return l.Sync()
	}
	return nil
}

// Field aliases for convenience
var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Float64  = zap.Float64
	Bool     = zap.Bool
	Duration = zap.Duration
	Time     = zap.Time
	Err      = zap.Error
)

// Secret returns a string field whose value passes through the global masker.
func Secret(key, value string) zap.Field {
	return zap.String(key, MaskString(value))
}
