package logging

import (
	"io"
	"log/slog"
	"os"
)

// New returns the process logger. format is "json" or "text".
func New(format string, debug bool) *slog.Logger {
	return newWithWriter(os.Stdout, format, debug)
}

func newWithWriter(w io.Writer, format string, debug bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard is used by tests that do not inspect log output.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
