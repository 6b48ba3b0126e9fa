// Package logger provides structured JSON logging and dispatch metrics for telefication.
//
// Logging is backed by zerolog. The package keeps a small API of its own so callers never
// import zerolog directly: messages take a Fields map, and errors are attached with Error.
//
// Example usage:
//
//	logger.Info("Notification sent", logger.Fields{
//	    "kind":    "new_comment",
//	    "handler": "comment",
//	})
//
//	logger.Error("Dispatch failed", logger.Fields{"kind": "new_mail"}, err)
//
//	logger.IncrCounter("dispatch.sent")
//	logger.RecordTiming("dispatch.duration", elapsed)
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Level represents log severity
type Level = zerolog.Level

const (
	LevelDebug = zerolog.DebugLevel
	LevelInfo  = zerolog.InfoLevel
	LevelWarn  = zerolog.WarnLevel
	LevelError = zerolog.ErrorLevel
)

// Fields represents structured log fields
type Fields map[string]interface{}

// Logger provides structured logging
type Logger struct {
	zl zerolog.Logger
}

var (
	mu            sync.RWMutex
	defaultLogger *Logger
)

func init() {
	zerolog.TimestampFieldName = "timestamp"
	zerolog.MessageFieldName = "message"
	defaultLogger = New(LevelInfo, os.Stdout)
}

// New creates a JSON logger writing to output. Messages below level are discarded.
func New(level Level, output io.Writer) *Logger {
	return &Logger{
		zl: zerolog.New(output).Level(level).With().Timestamp().Logger(),
	}
}

// NewConsole creates a human-readable logger for interactive use
func NewConsole(level Level, output io.Writer) *Logger {
	cw := zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	return &Logger{
		zl: zerolog.New(cw).Level(level).With().Timestamp().Logger(),
	}
}

// ParseLevel converts a level name (debug, info, warn, error) to a Level.
// The empty string means info.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// SetDefault sets the logger used by the package-level functions
func SetDefault(l *Logger) {
	if l == nil {
		return
	}
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
}

func current() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

func (l *Logger) log(level Level, message string, fields Fields, err error) {
	e := l.zl.WithLevel(level)
	if e == nil {
		return
	}
	if len(fields) > 0 {
		e = e.Fields(map[string]interface{}(fields))
	}
	if err != nil {
		e = e.Err(err)
	}
	e.Msg(message)
}

// Debug logs a debug message with optional structured fields
func (l *Logger) Debug(message string, fields Fields) {
	l.log(LevelDebug, message, fields, nil)
}

// Info logs an informational message
func (l *Logger) Info(message string, fields Fields) {
	l.log(LevelInfo, message, fields, nil)
}

// Warn logs a warning. Warnings indicate problems that don't stop the current operation.
func (l *Logger) Warn(message string, fields Fields) {
	l.log(LevelWarn, message, fields, nil)
}

// Error logs an error message with optional structured fields and an error object
func (l *Logger) Error(message string, fields Fields, err error) {
	l.log(LevelError, message, fields, err)
}

// Package-level convenience functions using the default logger

// Debug logs a debug message with the default logger
func Debug(message string, fields Fields) {
	current().Debug(message, fields)
}

// Info logs an info message with the default logger
func Info(message string, fields Fields) {
	current().Info(message, fields)
}

// Warn logs a warning message with the default logger
func Warn(message string, fields Fields) {
	current().Warn(message, fields)
}

// Error logs an error message with the default logger
func Error(message string, fields Fields, err error) {
	current().Error(message, fields, err)
}
