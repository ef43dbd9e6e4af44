// Package logging provides structured leveled logging for the service.
// Output is JSON (one object per line) or plain text.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"
)

// Level represents the severity of a log message
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	default:
		return "info"
	}
}

// ParseLevel parses a level name; unknown names default to info.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Format represents the output format for logs
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseFormat parses a format name; unknown names default to JSON.
func ParseFormat(s string) Format {
	if s == "text" {
		return FormatText
	}
	return FormatJSON
}

// Logger emits structured log entries. Loggers are immutable: With* methods
// return derived loggers and the original is never modified, so a logger
// can be shared freely between goroutines.
type Logger struct {
	level  Level
	format Format
	out    io.Writer
	mu     *sync.Mutex
	fields map[string]interface{}
}

// New creates a logger writing to stdout.
func New(level Level, format Format) *Logger {
	return &Logger{
		level:  level,
		format: format,
		out:    os.Stdout,
		mu:     &sync.Mutex{},
	}
}

// NewWriter creates a logger writing to w. Used by tests.
func NewWriter(level Level, format Format, w io.Writer) *Logger {
	l := New(level, format)
	l.out = w
	return l
}

// WithField returns a derived logger carrying one extra field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a derived logger carrying extra fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{level: l.level, format: l.format, out: l.out, mu: l.mu, fields: merged}
}

// WithError returns a derived logger carrying the error as a field.
func (l *Logger) WithError(err error) *Logger {
	return l.WithField("error", err.Error())
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) { l.log(LevelDebug, msg) }

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(LevelDebug, fmt.Sprintf(format, args...))
}

// Info logs an info message
func (l *Logger) Info(msg string) { l.log(LevelInfo, msg) }

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) { l.log(LevelWarn, msg) }

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(LevelWarn, fmt.Sprintf(format, args...))
}

// Error logs an error message
func (l *Logger) Error(msg string) { l.log(LevelError, msg) }

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(LevelError, fmt.Sprintf(format, args...))
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string) {
	l.log(LevelFatal, msg)
	os.Exit(1)
}

// Fatalf logs a formatted fatal message and exits
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.log(LevelFatal, fmt.Sprintf(format, args...))
	os.Exit(1)
}

type entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller,omitempty"`
}

func (l *Logger) log(level Level, msg string) {
	if level < l.level {
		return
	}

	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level.String(),
		Message:   msg,
		Fields:    l.fields,
	}
	if level >= LevelError {
		if _, file, line, ok := runtime.Caller(2); ok {
			e.Caller = fmt.Sprintf("%s:%d", file, line)
		}
	}

	var line string
	if l.format == FormatJSON {
		b, _ := json.Marshal(e)
		line = string(b)
	} else {
		line = fmt.Sprintf("[%s] %s: %s", e.Timestamp, e.Level, e.Message)
		if len(e.Fields) > 0 {
			b, _ := json.Marshal(e.Fields)
			line += " fields=" + string(b)
		}
		if e.Caller != "" {
			line += " caller=" + e.Caller
		}
	}

	l.mu.Lock()
	fmt.Fprintln(l.out, line)
	l.mu.Unlock()
}

// Default logger management

var (
	defaultMu     sync.RWMutex
	defaultLogger = New(LevelInfo, FormatJSON)
)

// SetDefault installs the process-wide default logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Default returns the process-wide default logger.
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

type ctxKey struct{}

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the context logger, falling back to the default.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Default()
}
