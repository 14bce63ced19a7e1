// Package logger configures the process-wide slog logger. Both the API
// server and the command consumer emit JSON records with source locations,
// so log lines from either process carry the same shape.
package logger

import (
	"log/slog"
	"os"
)

// Setup installs a JSON handler with source locations as the slog default.
func Setup(level slog.Level) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	})
	slog.SetDefault(slog.New(handler))
}

// ParseLevel maps the log-level flag value onto slog.Level. Anything
// other than "debug", "warn" or "error" falls back to info.
func ParseLevel(level string) slog.Level {
	switch level {
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
