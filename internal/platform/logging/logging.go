package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds a slog logger writing JSON in production and text elsewhere.
// Unknown levels fall back to info.
func New(w io.Writer, level, environment string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if environment == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Setup installs the process-wide default logger on stdout.
func Setup(level, environment string) *slog.Logger {
	logger := New(os.Stdout, level, environment)
	slog.SetDefault(logger)
	return logger
}
