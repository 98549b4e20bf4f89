// Package logger provides leveled logging for the modelplane daemon.
//
// The package exposes a small printf-style API with five levels
// (DEBUG, INFO, WARN, ERROR, FATAL) backed by a global default logger.
// Output goes to stderr by default and can be redirected, or teed to a
// log file, via SetOutput. All operations are safe for concurrent use.
//
// Example usage:
//
//	logger.Info("serving on %s", addr)
//	logger.Error("catalog load failed: %v", err)
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	// DebugLevel is for detailed diagnostic output.
	DebugLevel Level = iota

	// InfoLevel is for routine operational messages.
	InfoLevel

	// WarnLevel is for recoverable anomalies.
	WarnLevel

	// ErrorLevel is for failures that need attention.
	ErrorLevel

	// FatalLevel logs the message and terminates the process.
	FatalLevel
)

// String returns the string representation of the log level.
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
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger is a leveled logger writing timestamped lines to a single writer.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	level  Level
	prefix string

	// exit is called after a FatalLevel message. Replaced in tests.
	exit func(int)
}

// std is the global default logger.
var std = New(os.Stderr, "")

// New creates a Logger writing to out with an optional message prefix.
func New(out io.Writer, prefix string) *Logger {
	return &Logger{
		out:    out,
		level:  InfoLevel,
		prefix: prefix,
		exit:   os.Exit,
	}
}

// SetLevel sets the minimum level below which messages are discarded.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetOutput redirects the logger to a new writer.
//
// Use io.MultiWriter to tee output to both stderr and a log file.
func (l *Logger) SetOutput(out io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = out
}

// Output writes a log line at the given level.
//
// This is the core function behind the level-specific helpers.
func (l *Logger) Output(level Level, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	line := fmt.Sprintf("%s [%s] %s%s\n",
		time.Now().Format("2006-01-02 15:04:05"),
		level.String(),
		l.prefix,
		fmt.Sprintf(format, v...))

	l.out.Write([]byte(line))

	if level == FatalLevel {
		l.exit(1)
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.Output(DebugLevel, format, v...)
}

// Info logs an informational message.
func (l *Logger) Info(format string, v ...interface{}) {
	l.Output(InfoLevel, format, v...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, v ...interface{}) {
	l.Output(WarnLevel, format, v...)
}

// Error logs an error message.
func (l *Logger) Error(format string, v ...interface{}) {
	l.Output(ErrorLevel, format, v...)
}

// Fatal logs a fatal message and terminates the process. Does not return.
func (l *Logger) Fatal(format string, v ...interface{}) {
	l.Output(FatalLevel, format, v...)
}

// Global logger functions that use the default logger.

// SetLevel sets the level for the global logger.
func SetLevel(level Level) {
	std.SetLevel(level)
}

// SetOutput redirects the global logger.
func SetOutput(out io.Writer) {
	std.SetOutput(out)
}

// Debug logs a debug message using the global logger.
func Debug(format string, v ...interface{}) {
	std.Output(DebugLevel, format, v...)
}

// Info logs an informational message using the global logger.
func Info(format string, v ...interface{}) {
	std.Output(InfoLevel, format, v...)
}

// Warn logs a warning message using the global logger.
func Warn(format string, v ...interface{}) {
	std.Output(WarnLevel, format, v...)
}

// Error logs an error message using the global logger.
func Error(format string, v ...interface{}) {
	std.Output(ErrorLevel, format, v...)
}

// Fatal logs a fatal message using the global logger and terminates the process.
func Fatal(format string, v ...interface{}) {
	std.Output(FatalLevel, format, v...)
}

// ParseLevel converts a string to a Level.
//
// Supported values: "debug", "info", "warn", "error", "fatal".
// Unrecognized strings map to InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}
