package log

import (
	"context"
	"log/slog"
)

// SlogLogger adapts a *slog.Logger to the Logger interface.
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps l. A nil l falls back to slog.Default().
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l}
}

// Debug implements Logger.Debug.
func (s *SlogLogger) Debug(msg string, fields ...any) {
	s.l.Debug(msg, normalizeFields(fields)...)
}

// Info implements Logger.Info.
func (s *SlogLogger) Info(msg string, fields ...any) {
	s.l.Info(msg, normalizeFields(fields)...)
}

// Warn implements Logger.Warn.
func (s *SlogLogger) Warn(msg string, fields ...any) {
	s.l.Warn(msg, normalizeFields(fields)...)
}

// Error implements Logger.Error.
func (s *SlogLogger) Error(msg string, fields ...any) {
	s.l.Error(msg, normalizeFields(fields)...)
}

// With implements Logger.With.
func (s *SlogLogger) With(fields ...any) Logger {
	return &SlogLogger{l: s.l.With(normalizeFields(fields)...)}
}

// Enabled implements Logger.Enabled.
func (s *SlogLogger) Enabled(ctx context.Context, level Level) bool {
	return s.l.Enabled(ctx, slog.Level(level))
}

// normalizeFields turns a leading bare error into an ErrAttr so ErrFmtHandler
// can attach its stack trace.
func normalizeFields(fields []any) []any {
	if len(fields) == 0 {
		return fields
	}
	if err, ok := fields[0].(error); ok {
		out := make([]any, 0, len(fields))
		out = append(out, ErrAttr(err))
		return append(out, fields[1:]...)
	}
	return fields
}
