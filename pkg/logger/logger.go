package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// Level represents log level
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Config holds logger configuration
type Config struct {
	Level  string
	Format string // "text" (default) or "json"
	Output io.Writer
}

// Logger represents a structured logger
type Logger struct {
	level     Level
	format    string
	component string
	logger    *log.Logger
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value interface{}
}

// New creates a new logger
func New(cfg Config) *Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	level := parseLevel(cfg.Level)

	return &Logger{
		level:  level,
		format: cfg.Format,
		logger: log.New(output, "", 0),
	}
}

// WithComponent creates a child logger tagging every line with component,
// carried as a structured field under JSON output or a bracketed prefix
// under text output.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		level:     l.level,
		format:    l.format,
		component: component,
		logger:    log.New(l.logger.Writer(), "", 0),
	}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...Field) {
	if l.level <= DebugLevel {
		l.log(DebugLevel, msg, fields...)
	}
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...Field) {
	if l.level <= InfoLevel {
		l.log(InfoLevel, msg, fields...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...Field) {
	if l.level <= WarnLevel {
		l.log(WarnLevel, msg, fields...)
	}
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...Field) {
	if l.level <= ErrorLevel {
		l.log(ErrorLevel, msg, fields...)
	}
}

func (l *Logger) log(level Level, msg string, fields ...Field) {
	ts := time.Now().UTC().Format(time.RFC3339)
	if l.format == "json" {
		l.logJSON(ts, level, msg, fields)
		return
	}
	l.logText(ts, level, msg, fields)
}

func (l *Logger) logText(ts string, level Level, msg string, fields []Field) {
	var b strings.Builder
	if l.component != "" {
		fmt.Fprintf(&b, "[%s] ", l.component)
	}
	b.WriteString(ts)
	b.WriteByte(' ')
	b.WriteString(level.String())
	b.WriteByte(' ')
	b.WriteString(msg)
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	l.logger.Print(b.String())
}

func (l *Logger) logJSON(ts string, level Level, msg string, fields []Field) {
	entry := make(map[string]interface{}, len(fields)+4)
	entry["ts"] = ts
	entry["level"] = level.String()
	entry["msg"] = msg
	if l.component != "" {
		entry["component"] = l.component
	}
	for _, f := range fields {
		entry[f.Key] = f.Value
	}
	out, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf(`{"ts":%q,"level":"ERROR","msg":"failed to marshal log entry"}`, ts)
		return
	}
	l.logger.Print(string(out))
}

func parseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Field constructors

// String creates a string field
func String(key, val string) Field {
	return Field{Key: key, Value: val}
}

// Int creates an int field
func Int(key string, val int) Field {
	return Field{Key: key, Value: val}
}

// Int64 creates an int64 field
func Int64(key string, val int64) Field {
	return Field{Key: key, Value: val}
}

// Uint64 creates a uint64 field
func Uint64(key string, val uint64) Field {
	return Field{Key: key, Value: val}
}

// Bool creates a bool field
func Bool(key string, val bool) Field {
	return Field{Key: key, Value: val}
}

// Uint creates a uint field
func Uint(key string, val uint) Field {
	return Field{Key: key, Value: val}
}

// Uint32 creates a uint32 field
func Uint32(key string, val uint32) Field {
	return Field{Key: key, Value: val}
}

// Float64 creates a float64 field
func Float64(key string, val float64) Field {
	return Field{Key: key, Value: val}
}

// Error creates an error field
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "nil"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Duration creates a millisecond-valued duration field, for TxDelay/CSMA/
// PTT timing logs.
func Duration(key string, d time.Duration) Field {
	return Field{Key: key, Value: d.Milliseconds()}
}

// Callsign creates a field for an M17 address rendered as its callsign
// or numeric form, whichever the caller already decoded.
func Callsign(key, val string) Field {
	return Field{Key: key, Value: val}
}

// Any creates a field with any value
func Any(key string, val interface{}) Field {
	return Field{Key: key, Value: val}
}
