// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nowlink

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "ERROR"
	case LogLevelWarn:
		return "WARN"
	case LogLevelInfo:
		return "INFO"
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelTrace:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel converts a level name (case-insensitive) to a LogLevel
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LogLevelError, nil
	case "WARN", "WARNING":
		return LogLevelWarn, nil
	case "", "INFO":
		return LogLevelInfo, nil
	case "DEBUG":
		return LogLevelDebug, nil
	case "TRACE":
		return LogLevelTrace, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger provides structured logging with levels on top of zap
type Logger struct {
	sugar *zap.SugaredLogger
	level LogLevel
}

// NewLogger creates a new Logger writing to stderr with the specified level
func NewLogger(level LogLevel) *Logger {
	return NewLoggerWithWriter(os.Stderr, level)
}

// NewLoggerWithWriter creates a new Logger with custom writer and level
func NewLoggerWithWriter(w io.Writer, level LogLevel) *Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), zapcore.DebugLevel)
	return NewLoggerFromZap(zap.New(core).Named("nowlink"), level)
}

// NewLoggerFromZap wraps an existing zap logger
func NewLoggerFromZap(z *zap.Logger, level LogLevel) *Logger {
	return &Logger{
		sugar: z.Sugar(),
		level: level,
	}
}

// Named returns a child logger with name appended to the logger name
func (l *Logger) Named(name string) *Logger {
	if l == nil {
		return DevNullLogger
	}
	return &Logger{sugar: l.sugar.Named(name), level: l.level}
}

// With returns a child logger carrying the given key/value pairs
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	if l == nil {
		return DevNullLogger
	}
	return &Logger{sugar: l.sugar.With(keysAndValues...), level: l.level}
}

// SetLevel sets the minimum logging level
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// IsEnabled checks if a log level is enabled
func (l *Logger) IsEnabled(level LogLevel) bool {
	return l != nil && level <= l.level
}

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.sugar.Sync()
}

// Error logs at error level (always shown unless disabled entirely)
func (l *Logger) Error(format string, args ...interface{}) {
	if l.IsEnabled(LogLevelError) {
		l.sugar.Errorf(format, args...)
	}
}

// Warn logs at warning level
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.IsEnabled(LogLevelWarn) {
		l.sugar.Warnf(format, args...)
	}
}

// Info logs at info level
func (l *Logger) Info(format string, args ...interface{}) {
	if l.IsEnabled(LogLevelInfo) {
		l.sugar.Infof(format, args...)
	}
}

// Debug logs at debug level
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.IsEnabled(LogLevelDebug) {
		l.sugar.Debugf(format, args...)
	}
}

// Trace logs at trace level (most verbose). zap has no trace level, so
// entries go out at debug with a marker.
func (l *Logger) Trace(format string, args ...interface{}) {
	if l.IsEnabled(LogLevelTrace) {
		l.sugar.Debugf("[TRACE] "+format, args...)
	}
}

// Default loggers for different levels
var (
	// DevNull logger that discards all output
	DevNullLogger = NewLoggerFromZap(zap.NewNop(), LogLevelError)

	// Default logger at info level
	DefaultLogger = NewLogger(LogLevelInfo)

	// Debug logger for development
	DebugLogger = NewLogger(LogLevelDebug)
)
