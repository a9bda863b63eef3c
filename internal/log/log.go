// Package log configures the process-wide slog logger. Packages take a
// *slog.Logger in their constructors and tag it with a component; only the
// commands reach for L.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// Init installs the global logger on stderr, leaving stdout to the talk
// transcript. The first call wins.
func Init(level, format string) {
	once.Do(func() {
		logger = New(os.Stderr, level, format)
		slog.SetDefault(logger)
	})
}

// New builds a logger on w. format is "text" or "json"; empty means JSON
// when GO_ENV=production and text otherwise.
func New(w io.Writer, level, format string) *slog.Logger {
	if format == "" && os.Getenv("GO_ENV") == "production" {
		format = "json"
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel accepts debug, info, warn(ing) and error in any case. Anything
// else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// L returns the global logger, initializing it at info if needed.
func L() *slog.Logger {
	Init("info", "")
	return logger
}

func Component(name string) *slog.Logger {
	return L().With("component", name)
}
