// Package logging is the structured logger shared by the engine, the API
// and the CLI. Entries are written one JSON object per line.
package logging

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Logger is the interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// With returns a child logger that adds fields to every entry
	With(fields ...Field) Logger
	SetLevel(level Level)
	GetLevel() Level
}

// LogEntry is the JSON shape of one line
type LogEntry struct {
	Time    string         `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"msg"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// sink is the destination a logger and all its children write to
type sink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *sink) write(entry LogEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		data, _ = json.Marshal(LogEntry{
			Time:    entry.Time,
			Level:   entry.Level,
			Message: entry.Message,
			Fields:  map[string]any{"log_error": err.Error()},
		})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Write(append(data, '\n'))
}

// JSONLogger writes entries as JSON lines. Children created by With share
// the parent's writer and level, so SetLevel on any of them applies to all.
type JSONLogger struct {
	out    *sink
	level  *atomic.Int32
	fields []Field
}

// NewJSONLogger creates a logger writing to w
func NewJSONLogger(w io.Writer, level Level) *JSONLogger {
	l := &JSONLogger{out: &sink{w: w}, level: new(atomic.Int32)}
	l.level.Store(int32(level))
	return l
}

func (l *JSONLogger) log(level Level, msg string, fields []Field) {
	if level < l.GetLevel() {
		return
	}
	entry := LogEntry{
		Time:    time.Now().Format(time.RFC3339Nano),
		Level:   level.String(),
		Message: msg,
	}
	if n := len(l.fields) + len(fields); n > 0 {
		entry.Fields = make(map[string]any, n)
		for _, f := range l.fields {
			entry.Fields[f.Key] = f.Value
		}
		for _, f := range fields {
			entry.Fields[f.Key] = f.Value
		}
	}
	l.out.write(entry)
}

func (l *JSONLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }
func (l *JSONLogger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields) }
func (l *JSONLogger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields) }
func (l *JSONLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }

func (l *JSONLogger) With(fields ...Field) Logger {
	child := *l
	child.fields = append(append(make([]Field, 0, len(l.fields)+len(fields)), l.fields...), fields...)
	return &child
}

func (l *JSONLogger) SetLevel(level Level) { l.level.Store(int32(level)) }

func (l *JSONLogger) GetLevel() Level { return Level(l.level.Load()) }

// NopLogger discards everything
type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (n NopLogger) With(...Field) Logger { return n }
func (NopLogger) SetLevel(Level)         {}
func (NopLogger) GetLevel() Level        { return InfoLevel }

// NewNopLogger returns a logger that discards all output
func NewNopLogger() Logger { return NopLogger{} }

var (
	defaultMu     sync.Mutex
	defaultLogger Logger
)

// DefaultLogger returns the process logger. Until SetDefaultLogger is
// called it writes to stderr at the level named by LOG_LEVEL.
func DefaultLogger() Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewJSONLogger(os.Stderr, ParseLevel(os.Getenv("LOG_LEVEL")))
	}
	return defaultLogger
}

// SetDefaultLogger replaces the process logger; nil restores the stderr one
func SetDefaultLogger(logger Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = logger
}
