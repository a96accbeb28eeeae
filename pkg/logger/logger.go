/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// Level represents the severity level of log messages
type Level int

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case TraceLevel:
		return "TRACE"
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps trace|debug|info|warn|error (any case) to a Level.
// Unknown names yield InfoLevel and false.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return TraceLevel, true
	case "debug":
		return DebugLevel, true
	case "info":
		return InfoLevel, true
	case "warn", "warning":
		return WarnLevel, true
	case "error":
		return ErrorLevel, true
	default:
		return InfoLevel, false
	}
}

// Config holds the logger configuration
type Config struct {
	Level     Level
	UseColor  bool
	JSON      bool
	Component string
}

// Logger writes leveled entries to a single destination
type Logger struct {
	config Config
	logger *log.Logger
}

var (
	mu sync.RWMutex
	// defaultLogger stays nil until Initialize; library code then logs nothing.
	defaultLogger *Logger
)

// Initialize sets up the default logger writing to stderr
func Initialize(config Config) error {
	if config.Component == "" {
		config.Component = "cratemeta"
	}
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = &Logger{
		config: config,
		logger: log.New(os.Stderr, "", 0),
	}
	return nil
}

// Reset discards the default logger, silencing all package-level functions
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = nil
}

// Enabled reports whether the default logger would emit at level
func Enabled(level Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger != nil && level >= defaultLogger.config.Level
}

// Log writes a log message
func (l *Logger) Log(level Level, message string, fields ...Field) {
	l.log(2, level, message, fields)
}

func (l *Logger) log(skip int, level Level, message string, fields []Field) {
	if level < l.config.Level {
		return
	}

	entry := LogEntry{
		Time:      time.Now(),
		Level:     level.String(),
		Message:   message,
		Component: l.config.Component,
	}

	if level <= DebugLevel {
		if _, file, line, ok := runtime.Caller(skip); ok {
			entry.File = file
			entry.Line = line
		}
	}

	if len(fields) > 0 {
		entry.Fields = make(map[string]interface{}, len(fields))
		for _, field := range fields {
			entry.Fields[field.Key] = field.Value
		}
	}

	var output string
	if l.config.JSON {
		jsonBytes, err := json.Marshal(entry)
		if err != nil {
			output = fmt.Sprintf(`{"level":"ERROR","message":"unencodable log entry: %v"}`, err)
		} else {
			output = string(jsonBytes)
		}
	} else {
		output = l.formatPretty(entry)
	}

	l.logger.Print(output)
}

// formatPretty renders an entry on one line; fields are sorted by key
func (l *Logger) formatPretty(entry LogEntry) string {
	var builder strings.Builder

	builder.WriteString(entry.Time.Format("2006-01-02 15:04:05"))

	level := entry.Level
	if l.config.UseColor {
		if color, ok := levelColors[entry.Level]; ok {
			level = color + entry.Level + "\033[0m"
		}
	}
	builder.WriteString(fmt.Sprintf(" [%s]", level))

	if entry.Component != "" {
		builder.WriteString(fmt.Sprintf(" %s:", entry.Component))
	}

	builder.WriteString(" ")
	builder.WriteString(entry.Message)

	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		builder.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				builder.WriteString(", ")
			}
			builder.WriteString(fmt.Sprintf("%s=%v", k, entry.Fields[k]))
		}
		builder.WriteString("}")
	}

	if entry.File != "" {
		builder.WriteString(fmt.Sprintf(" (%s:%d)", entry.File, entry.Line))
	}

	return builder.String()
}

var levelColors = map[string]string{
	"TRACE": "\033[37m",
	"DEBUG": "\033[36m",
	"INFO":  "\033[32m",
	"WARN":  "\033[33m",
	"ERROR": "\033[31m",
}

// Field represents a structured field in a log entry
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Strings creates a string slice field
func Strings(key string, values []string) Field {
	return Field{Key: key, Value: values}
}

// Int creates an int field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field rendered as a string
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Err creates an error field
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "<nil>"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// LogEntry represents a log entry
type LogEntry struct {
	Time      time.Time              `json:"time"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Component string                 `json:"component,omitempty"`
	File      string                 `json:"file,omitempty"`
	Line      int                    `json:"line,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func logDefault(level Level, message string, fields []Field) {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l != nil {
		l.log(3, level, message, fields)
	}
}

// Convenience functions for default logger. All are no-ops before Initialize.
func Trace(message string, fields ...Field) { logDefault(TraceLevel, message, fields) }

func Debug(message string, fields ...Field) { logDefault(DebugLevel, message, fields) }

func Info(message string, fields ...Field) { logDefault(InfoLevel, message, fields) }

func Warn(message string, fields ...Field) { logDefault(WarnLevel, message, fields) }

func Error(message string, fields ...Field) { logDefault(ErrorLevel, message, fields) }

// SetOutput sets the output writer for the logger
func SetOutput(w io.Writer) {
	mu.RLock()
	defer mu.RUnlock()
	if defaultLogger != nil {
		defaultLogger.logger.SetOutput(w)
	}
}
