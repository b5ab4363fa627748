// Package logging provides the leveled file logger shared by the graph
// executor and the scheduler daemon.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level is the severity of a log line.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// DebugLogger writes timestamped, leveled lines to a file.
// A zero-value or nil logger is a no-op, so components can log
// unconditionally.
type DebugLogger struct {
	mu   sync.Mutex
	file *os.File
}

// New creates a logger writing to the specified path.
// If the path is empty, returns a no-op logger.
// Creates parent directories if they don't exist.
func New(logPath string) (*DebugLogger, error) {
	if logPath == "" {
		return &DebugLogger{}, nil
	}

	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	logger := &DebugLogger{file: f}
	logger.Log(LevelInfo, "=== Log started at %s ===", time.Now().Format(time.RFC3339))
	return logger, nil
}

// Nop returns a no-op logger for testing or when logging is disabled.
func Nop() *DebugLogger {
	return &DebugLogger{}
}

// Log writes a timestamped leveled message.
// If the logger is nil or has no file, this is a no-op.
func (l *DebugLogger) Log(level Level, format string, args ...interface{}) {
	if l == nil || l.file == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(l.file, "[%s] %-5s %s\n", timestamp, level, msg)
	l.file.Sync()
}

// Debugf logs at debug level.
func (l *DebugLogger) Debugf(format string, args ...interface{}) {
	l.Log(LevelDebug, format, args...)
}

// Infof logs at info level.
func (l *DebugLogger) Infof(format string, args ...interface{}) {
	l.Log(LevelInfo, format, args...)
}

// Warnf logs at warn level.
func (l *DebugLogger) Warnf(format string, args ...interface{}) {
	l.Log(LevelWarn, format, args...)
}

// Errorf logs at error level.
func (l *DebugLogger) Errorf(format string, args ...interface{}) {
	l.Log(LevelError, format, args...)
}

// Close closes the underlying file, if any.
func (l *DebugLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
