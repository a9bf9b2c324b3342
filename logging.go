// logging.go: Pluggable logging system with adapter support
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package godecisions

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger defines the pluggable logging interface for the go-decisions library.
//
// This interface lets users integrate any logging framework without the
// library taking a hard dependency on their choice. A logrus adapter ships in
// the box; zap, zerolog, or custom loggers plug in the same way.
//
// Design principles:
//   - Level-based: standard log levels (Debug, Info, Warn, Error)
//   - Structured args: key-value pairs for structured logging
//   - Contextual logging: With() for persistent context
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, args ...any)

	// Info logs an info message with optional key-value pairs
	Info(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs
	Warn(msg string, args ...any)

	// Error logs an error message with optional key-value pairs
	Error(msg string, args ...any)

	// With returns a new logger with persistent context key-value pairs
	With(args ...any) Logger
}

// NewLogger creates a Logger from supported logger types.
//
// Supported types:
//   - Logger interface: used directly
//   - *logrus.Logger: wrapped in a LogrusAdapter
//   - nil: returns NoOpLogger for silent operation
func NewLogger(logger any) Logger {
	switch l := logger.(type) {
	case Logger:
		return l
	case *logrus.Logger:
		return NewLogrusAdapter(l)
	case nil:
		return NewNoOpLogger()
	default:
		panic("unsupported logger type: expected Logger interface, *logrus.Logger, or nil")
	}
}

// DefaultLogger returns the logger used when none is configured.
func DefaultLogger() Logger {
	return NewNoOpLogger()
}

// LogrusAdapter adapts a *logrus.Logger to the Logger interface.
type LogrusAdapter struct {
	entry *logrus.Entry
}

// NewLogrusAdapter wraps a logrus logger. A nil logger wraps the logrus
// standard logger.
func NewLogrusAdapter(logger *logrus.Logger) *LogrusAdapter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogrusAdapter{entry: logrus.NewEntry(logger)}
}

// Debug implements Logger
func (a *LogrusAdapter) Debug(msg string, args ...any) {
	a.entry.WithFields(fieldsFromArgs(args)).Debug(msg)
}

// Info implements Logger
func (a *LogrusAdapter) Info(msg string, args ...any) {
	a.entry.WithFields(fieldsFromArgs(args)).Info(msg)
}

// Warn implements Logger
func (a *LogrusAdapter) Warn(msg string, args ...any) {
	a.entry.WithFields(fieldsFromArgs(args)).Warn(msg)
}

// Error implements Logger
func (a *LogrusAdapter) Error(msg string, args ...any) {
	a.entry.WithFields(fieldsFromArgs(args)).Error(msg)
}

// With implements Logger
func (a *LogrusAdapter) With(args ...any) Logger {
	return &LogrusAdapter{entry: a.entry.WithFields(fieldsFromArgs(args))}
}

// fieldsFromArgs converts alternating key-value pairs into logrus fields.
// A trailing key without a value is recorded under "EXTRA_VALUE".
func fieldsFromArgs(args []any) logrus.Fields {
	fields := make(logrus.Fields, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", args[i])
		}
		fields[key] = args[i+1]
	}
	if len(args)%2 == 1 {
		fields["EXTRA_VALUE"] = args[len(args)-1]
	}
	return fields
}

// NoOpLogger provides a silent logger implementation for testing and minimal
// setups. All messages are discarded.
type NoOpLogger struct{}

// NewNoOpLogger creates a new no-operation logger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// Debug implements Logger interface (no-op)
func (n *NoOpLogger) Debug(msg string, args ...any) {}

// Info implements Logger interface (no-op)
func (n *NoOpLogger) Info(msg string, args ...any) {}

// Warn implements Logger interface (no-op)
func (n *NoOpLogger) Warn(msg string, args ...any) {}

// Error implements Logger interface (no-op)
func (n *NoOpLogger) Error(msg string, args ...any) {}

// With implements Logger interface (no-op)
func (n *NoOpLogger) With(args ...any) Logger {
	return n // Return same instance since it's stateless
}

// TestLogger for testing - captures log messages
type TestLogger struct {
	mu       sync.RWMutex
	Messages []TestLogMessage
}

// TestLogMessage represents a captured log message for testing.
type TestLogMessage struct {
	Level   string
	Message string
	Args    []any
}

// NewTestLogger creates a new test logger.
func NewTestLogger() *TestLogger {
	return &TestLogger{
		Messages: make([]TestLogMessage, 0),
	}
}

func (t *TestLogger) record(level, msg string, args []any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Messages = append(t.Messages, TestLogMessage{
		Level:   level,
		Message: msg,
		Args:    args,
	})
}

// Debug implements Logger interface (captures message)
func (t *TestLogger) Debug(msg string, args ...any) { t.record("DEBUG", msg, args) }

// Info implements Logger interface (captures message)
func (t *TestLogger) Info(msg string, args ...any) { t.record("INFO", msg, args) }

// Warn implements Logger interface (captures message)
func (t *TestLogger) Warn(msg string, args ...any) { t.record("WARN", msg, args) }

// Error implements Logger interface (captures message)
func (t *TestLogger) Error(msg string, args ...any) { t.record("ERROR", msg, args) }

// With implements Logger interface (captured messages keep the shared buffer)
func (t *TestLogger) With(args ...any) Logger {
	return t
}

// HasMessage reports whether a message at the given level containing the
// given text was captured.
func (t *TestLogger) HasMessage(level, contains string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, m := range t.Messages {
		if m.Level == level && strings.Contains(m.Message, contains) {
			return true
		}
	}
	return false
}
