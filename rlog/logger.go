// Package rlog provides the structured logger shared by cmd/ftprecv and
// cmd/ftpsend.
package rlog

import (
	"log/slog"
	"os"
)

// New creates a structured text logger.
// component: binary or subsystem name (e.g., "ftprecv", "dispatch")
// level: one of "debug", "info", "warn", "error" (default: "info")
func New(component string, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	logger := slog.New(handler)

	return logger.With(
		slog.String("component", component),
		slog.Int("pid", os.Getpid()),
	)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}
