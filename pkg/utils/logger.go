// Package utils holds the logging and timing helpers shared across heapql.
package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

// String returns the upper-case level name.
func (l LogLevel) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// Logger is the printf-style logging interface used throughout heapql.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// DefaultLogger writes timestamped lines with sorted key=value fields.
type DefaultLogger struct {
	mu     *sync.Mutex
	level  LogLevel
	output io.Writer
	fields map[string]interface{}
}

// NewDefaultLogger creates a logger writing to output, or stdout when
// output is nil.
func NewDefaultLogger(level LogLevel, output io.Writer) *DefaultLogger {
	if output == nil {
		output = os.Stdout
	}
	return &DefaultLogger{
		mu:     &sync.Mutex{},
		level:  level,
		output: output,
		fields: map[string]interface{}{},
	}
}

// NewFileLogger creates a logger appending to logPath.
func NewFileLogger(level LogLevel, logPath string) (*DefaultLogger, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return NewDefaultLogger(level, file), nil
}

// NewLogger builds a logger from a level name and an output path. An empty
// path or "stdout" logs to stdout, "stderr" to stderr.
func NewLogger(level, outputPath string) (Logger, error) {
	lvl := ParseLogLevel(level)
	switch outputPath {
	case "", "stdout":
		return NewDefaultLogger(lvl, os.Stdout), nil
	case "stderr":
		return NewDefaultLogger(lvl, os.Stderr), nil
	}
	return NewFileLogger(lvl, outputPath)
}

// SetLevel sets the minimum level written. Loggers derived with WithField
// keep the level they were created with.
func (l *DefaultLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *DefaultLogger) Debug(msg string, args ...interface{}) { l.log(LevelDebug, msg, args...) }
func (l *DefaultLogger) Info(msg string, args ...interface{})  { l.log(LevelInfo, msg, args...) }
func (l *DefaultLogger) Warn(msg string, args ...interface{})  { l.log(LevelWarn, msg, args...) }
func (l *DefaultLogger) Error(msg string, args ...interface{}) { l.log(LevelError, msg, args...) }

// WithField returns a logger that adds key=value to every line.
func (l *DefaultLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a logger that adds fields to every line. The derived
// logger shares the output and its lock.
func (l *DefaultLogger) WithFields(fields map[string]interface{}) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &DefaultLogger{mu: l.mu, level: l.level, output: l.output, fields: merged}
}

func (l *DefaultLogger) log(level LogLevel, msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(time.Now().Format("2006-01-02 15:04:05.000"))
	sb.WriteString("] [")
	sb.WriteString(level.String())
	sb.WriteString("]")

	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, l.fields[k])
	}

	sb.WriteString(" ")
	if len(args) > 0 {
		fmt.Fprintf(&sb, msg, args...)
	} else {
		sb.WriteString(msg)
	}
	sb.WriteString("\n")
	_, _ = io.WriteString(l.output, sb.String())
}

// ParseLogLevel parses a level name case-insensitively, defaulting to info.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	}
	return LevelInfo
}

var (
	globalMu     sync.RWMutex
	globalLogger Logger = NewDefaultLogger(LevelInfo, os.Stdout)
)

// SetGlobalLogger sets the process-wide logger.
func SetGlobalLogger(logger Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// GetGlobalLogger returns the process-wide logger.
func GetGlobalLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// NullLogger discards everything.
type NullLogger struct{}

func (*NullLogger) Debug(string, ...interface{}) {}
func (*NullLogger) Info(string, ...interface{})  {}
func (*NullLogger) Warn(string, ...interface{})  {}
func (*NullLogger) Error(string, ...interface{}) {}

func (l *NullLogger) WithField(string, interface{}) Logger     { return l }
func (l *NullLogger) WithFields(map[string]interface{}) Logger { return l }
