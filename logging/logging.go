// Package logging provides a thin abstraction over slog so the rest of the
// module depends on a minimal interface rather than a concrete logger.
// Callers may plug any structured logger by implementing Logger.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger is the minimal structured logging interface used throughout the
// module. Args are alternating key/value pairs, slog style.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement Logger.
type SlogAdapter struct {
	*slog.Logger
}

// NewSlogAdapter creates a Logger from an existing *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger { return &SlogAdapter{Logger: logger} }

// Options configure New.
type Options struct {
	Level  slog.Level
	Format string // "json" (default) or "text"
	Output io.Writer
}

// New builds a Logger writing structured records to the configured output.
func New(optFns ...func(o *Options)) Logger {
	opts := Options{Level: slog.LevelInfo, Format: "json", Output: os.Stdout}
	for _, fn := range optFns {
		fn(&opts)
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	var handler slog.Handler
	if opts.Format == "text" {
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(opts.Output, handlerOpts)
	}
	return NewSlogAdapter(slog.New(handler))
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NoOpLogger discards all messages. Useful in tests.
type NoOpLogger struct{}

// Debug implements Logger.
func (NoOpLogger) Debug(string, ...any) {}

// Info implements Logger.
func (NoOpLogger) Info(string, ...any) {}

// Warn implements Logger.
func (NoOpLogger) Warn(string, ...any) {}

// Error implements Logger.
func (NoOpLogger) Error(string, ...any) {}
