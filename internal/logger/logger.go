package logger

import (
	"io"
	"log/slog"
	"os"
)

// New returns a JSON logger on stdout with the level derived from env.
func New(env string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(env),
	}))
}

// NewCLI returns a text logger for command line tools.
func NewCLI(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseLevel(env string) slog.Level {
	switch env {
	case "production", "staging":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
