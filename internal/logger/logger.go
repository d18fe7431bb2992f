// Package logger provides structured logging setup for ruidmap.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/ruidmap/ruidmap/internal/config"
)

// New creates a *slog.Logger from the given Logging config.
// Output is JSON to stdout with a "service" attribute on every record.
// With Async set, records pass through a buffered AsyncHandler; the
// returned Closer flushes it on shutdown and is a no-op otherwise.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	level := parseLevel(cfg.Level)

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	closer := Closer(nopCloser{})

	if cfg.Async {
		buffer := cfg.Buffer
		if buffer <= 0 {
			buffer = 1024
		}
		workers := cfg.Workers
		if workers <= 0 {
			workers = 1
		}
		ah := NewAsyncHandler(handler, buffer, workers)
		handler = ah
		closer = ah
	}

	return slog.New(handler).With("service", cfg.Service), closer
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
