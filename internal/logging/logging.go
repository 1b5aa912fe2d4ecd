// Package logging provides a slog-based structured logger shared across the
// analysis pipeline, with a pretty console handler for interactive runs and a
// JSON handler for batch/daemon use.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Attr is an alias for slog.Attr so callers don't need to import log/slog.
type Attr = slog.Attr

func Any(key string, value any) Attr          { return slog.Any(key, value) }
func Bool(key string, value bool) Attr        { return slog.Bool(key, value) }
func Duration(key string, v time.Duration) Attr { return slog.Duration(key, v) }
func Float64(key string, value float64) Attr  { return slog.Float64(key, value) }
func Int(key string, value int) Attr          { return slog.Int(key, value) }
func Int64(key string, value int64) Attr      { return slog.Int64(key, value) }
func String(key string, value string) Attr    { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

func Args(attrs ...Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string // "console" or "json"
	Output      io.Writer
	Development bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{
			Level:     level,
			AddSource: opts.Development,
		})
	case "console":
		handler = newConsoleHandler(output, level, opts.Development)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	return slog.New(handler), nil
}

// NewNop returns a logger that discards all output.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// NewComponentLogger returns a logger scoped to the given component name.
func NewComponentLogger(base *slog.Logger, component string) *slog.Logger {
	if base == nil {
		base = NewNop()
	}
	return base.With(String("component", component))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type ctxKey string

const loggerCtxKey ctxKey = "logging.logger"

// WithContext returns base, or a no-op logger when base is nil. It does not
// read request-scoped attributes (request ID, track key, phase) from ctx and
// does not attach the logger to ctx; use NewContext for that.
func WithContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = NewNop()
	}
	if ctx == nil {
		return base
	}
	return base
}

// NewContext attaches logger to ctx so FromContext can retrieve it downstream.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, logger)
}

// FromContext retrieves a logger previously attached with NewContext, or a
// no-op logger when absent.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return NewNop()
	}
	if logger, ok := ctx.Value(loggerCtxKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return NewNop()
}
