// Package logging provides the structured logger shared by every pdfdesk component.
//
// Loggers are backed by zap. Console output goes to stderr and an optional
// log file is rotated by lumberjack. Components receive the Logger interface
// and label themselves with WithComponent.
package logging

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents the severity level of a log message.
type Level int

const (
	// LevelDebug is for detailed debugging information.
	LevelDebug Level = iota
	// LevelInfo is for general informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a string into a Level. Unknown values map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger is the logging collaborator handed to buses, containers and features.
// Arguments after the message are alternating key/value pairs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)

	// With returns a child logger that adds the given key/value pairs to every entry.
	With(keysAndValues ...any) Logger

	// WithComponent returns a child logger with the component field set.
	WithComponent(component string) Logger
}

// Config configures the logger.
type Config struct {
	// Level is the minimum log level to output.
	Level Level

	// Console enables human-readable output on stderr.
	Console bool

	// JSON switches console output to JSON encoding.
	JSON bool

	// File is an optional log file path. Empty disables file output.
	File string

	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int

	// MaxAgeDays is the number of days to keep rotated files.
	MaxAgeDays int

	// Compress gzips rotated files.
	Compress bool
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Console:    true,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// ZapLogger implements Logger on top of a zap sugared logger.
type ZapLogger struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
}

// New creates a logger from cfg. The returned logger should be synced on shutdown.
func New(cfg Config) *ZapLogger {
	return newWithConsole(cfg, os.Stderr)
}

func newWithConsole(cfg Config, console io.Writer) *ZapLogger {
	level := zap.NewAtomicLevelAt(cfg.Level.zapLevel())

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.TimeKey = "time"

	var cores []zapcore.Core
	if cfg.Console && console != nil {
		consoleCfg := encCfg
		var enc zapcore.Encoder
		if cfg.JSON {
			enc = zapcore.NewJSONEncoder(consoleCfg)
		} else {
			consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder
			enc = zapcore.NewConsoleEncoder(consoleCfg)
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(console)), level))
	}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), level))
	}
	if len(cores) == 0 {
		return FromZap(zap.NewNop())
	}

	return FromZap(zap.New(zapcore.NewTee(cores...)).Named("pdfdesk"))
}

// FromZap wraps an existing zap logger.
func FromZap(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{base: l, sugar: l.Sugar()}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return FromZap(zap.NewNop())
}

// Debug logs a debug message.
func (l *ZapLogger) Debug(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Info logs an info message.
func (l *ZapLogger) Info(msg string, keysAndValues ...any) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warn logs a warning message.
func (l *ZapLogger) Warn(msg string, keysAndValues ...any) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error logs an error message.
func (l *ZapLogger) Error(msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// With returns a child logger with the given fields added.
func (l *ZapLogger) With(keysAndValues ...any) Logger {
	sugar := l.sugar.With(keysAndValues...)
	return &ZapLogger{base: sugar.Desugar(), sugar: sugar}
}

// WithComponent returns a child logger with the component field set.
func (l *ZapLogger) WithComponent(component string) Logger {
	return l.With("component", component)
}

// Zap returns the underlying zap logger.
func (l *ZapLogger) Zap() *zap.Logger {
	return l.base
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.base.Sync()
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}
