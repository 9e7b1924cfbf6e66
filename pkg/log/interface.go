// Package log provides the structured logging interface used by every pipeline stage.
//
// The Logger interface is slog-compatible so stages and the workflow runner can be
// handed either the production slog logger (NewSlogLogger) or the in-memory
// TestLogger. Attribute keys in attributes.go keep the field names consistent
// between stages.
//
// Example usage:
//
//	logger := log.NewSlogLogger(slog.Default()).With(
//	    log.StageKey, "train",
//	    log.RunIDKey, runID,
//	)
//	logger.Info("Model saved",
//	    log.ArtifactPathKey, path,
//	    log.SamplesKey, 700,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// The interface supports method chaining through the With method, allowing
// for creation of contextual loggers with pre-populated fields.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	// If an error value is provided as the first field, it is attached under
	// ErrAttrKey so the stack trace handler can pick it up.
	//
	// Example:
	//   logger.Error("Stage failed",
	//       err,
	//       log.StageKey, "preprocess",
	//   )
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
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
