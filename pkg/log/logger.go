package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lmittmann/tint"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// SetupLogger installs the process-wide slog default.
//
// format "json" emits CloudLogging-shaped records (severity/message keys);
// format "text" emits colored console output through tint. Both are wrapped by
// ErrFmtHandler so cockroachdb stack traces land in their own attribute.
func SetupLogger(w io.Writer, level, format string) error {
	lvl, err := ToLogLevel(level)
	if err != nil {
		return err
	}

	var handler slog.Handler
	switch format {
	case "", "json":
		ops := slog.HandlerOptions{
			AddSource: true,
			Level:     lvl,
			// Replace attributes to convert to CloudLogging format.
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				switch attr.Key {
				case slog.LevelKey:
					attr = slog.Attr{Key: "severity", Value: attr.Value}
				case slog.MessageKey:
					attr = slog.Attr{Key: "message", Value: attr.Value}
				case slog.SourceKey:
					attr = slog.Attr{Key: "logging.googleapis.com/sourceLocation", Value: attr.Value}
				}
				return attr
			},
		}
		handler = slog.NewJSONHandler(w, &ops)
	case "text":
		handler = tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			TimeFormat: time.RFC3339,
		})
	default:
		return fmt.Errorf("invalid log format: %s", format)
	}

	slog.SetDefault(slog.New(WrapByErrFmtHandler(handler)))
	return nil
}

// ToLogLevel converts a config string into a slog level.
func ToLogLevel(level string) (slog.Level, error) {
	switch level {
	case "info", "":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

// ErrFmtHandler is a slog handler to format stacktrace from cockroachdb/errors.
type ErrFmtHandler struct {
	handler slog.Handler
}

// WrapByErrFmtHandler wraps handler so records carrying an ErrAttrKey error
// also carry a StacktraceAttrKey attribute.
func WrapByErrFmtHandler(handler slog.Handler) slog.Handler {
	return &ErrFmtHandler{handler: handler}
}

func (eh *ErrFmtHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return eh.handler.Enabled(ctx, l)
}

func (eh *ErrFmtHandler) Handle(ctx context.Context, r slog.Record) error {
	var stacktrace string
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key != ErrAttrKey {
			return true
		}
		if err, ok := attr.Value.Any().(error); ok {
			stacktrace = extractStacktrace(err)
		}
		return false
	})
	if stacktrace != "" {
		r.AddAttrs(slog.String(StacktraceAttrKey, stacktrace))
	}
	return eh.handler.Handle(ctx, r)
}

func (eh *ErrFmtHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithAttrs(attrs)}
}

func (eh *ErrFmtHandler) WithGroup(g string) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithGroup(g)}
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}
