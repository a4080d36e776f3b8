// Package log provides a structured logging interface for rollcast.
//
// The interface is slog-compatible so the backend can be switched without
// touching call sites. The default backend is zerolog (see zerolog.go);
// tests use TestLogger to capture and inspect entries.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("forecast.engine").With(
//	    log.RunIDKey, runID,
//	)
//	logger.Info("Forecasting key",
//	    log.SeriesKeyKey, "store-12",
//	    log.SeriesLengthKey, 48,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Every method takes a message and an optional list of alternating key/value
// pairs. With returns a child logger that carries the given fields on every
// subsequent entry.
type Logger interface {
	// Debug logs detailed diagnostic information, such as per-window refits.
	Debug(msg string, fields ...any)

	// Info logs operational progress, such as a key starting or finishing.
	Info(msg string, fields ...any)

	// Warn logs conditions that do not stop the run, such as a short series.
	Warn(msg string, fields ...any)

	// Error logs failures. If the first field is an error it is attached
	// under ErrAttrKey together with its stack trace when available.
	//
	// Example:
	//   logger.Error("Refit failed", err,
	//       log.SeriesKeyKey, key,
	//       log.WindowStartKey, start,
	//   )
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates and configures loggers.
// It allows tests to swap the global provider for a capturing one.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
