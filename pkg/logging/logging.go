// Package logging provides the structured logger used across every stage of
// the pipeline. It wraps log/slog the same way the upstream cluster project's
// pkg/logging package does: a small config struct, JSON or console output,
// and cheap per-component child loggers via With.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Format selects the rendering of log lines.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// Config configures a Logger.
type Config struct {
	Level          slog.Level
	Format         Format
	Output         io.Writer
	ServiceName    string
	ServiceVersion string
}

// Logger wraps slog.Logger with pipeline-specific field conventions
// (run_id, stage, chunk_id, task_id, node_id).
type Logger struct {
	inner *slog.Logger
}

// New builds a Logger from Config, defaulting to JSON-to-stderr.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	switch cfg.Format {
	case FormatConsole:
		handler = slog.NewTextHandler(cfg.Output, opts)
	default:
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}

	base := slog.New(handler)
	if cfg.ServiceName != "" {
		base = base.With("service", cfg.ServiceName)
	}
	if cfg.ServiceVersion != "" {
		base = base.With("version", cfg.ServiceVersion)
	}
	return &Logger{inner: base}
}

// Nop returns a Logger that discards everything; useful as a zero-config
// default for components constructed without an explicit logger.
func Nop() *Logger {
	return &Logger{inner: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// With returns a child logger carrying the given key/value pairs on every
// subsequent line — the pattern every stage uses to scope a logger to a
// run_id, chunk_id, or node_id for the duration of an operation.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{inner: l.inner.With(args...)}
}

func (l *Logger) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.inner.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.inner.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.inner.Error(msg, args...) }

// DebugContext/InfoContext etc. honor a context's deadline/trace fields if
// the handler is context-aware; kept for call sites that already carry a ctx.
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.inner.InfoContext(ctx, msg, args...)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.inner.ErrorContext(ctx, msg, args...)
}

// Elapsed is a convenience for logging a duration field consistently.
func Elapsed(since time.Time) time.Duration {
	return time.Since(since)
}
