// Package log configures structured logging for autoflow binaries.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a textual level to a slog level. Unknown values fall back to info.
func ParseLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup installs the default logger writing to stderr.
// Format "json" selects the JSON handler, anything else the text handler.
func Setup(logLevel string, format string) {
	slog.SetDefault(New(os.Stderr, logLevel, format))
}

// New builds a logger writing to w.
func New(w io.Writer, logLevel string, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(logLevel),
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}

// Discard returns a logger that drops every record. Useful in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
