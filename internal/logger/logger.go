// Package logger builds the service's slog logger and the attribute helpers
// used across packages. Helpers return an empty slog.Attr for zero inputs so
// callers never need nil checks.
package logger

import (
	"io"
	"log/slog"
	"strings"
	"time"
)

// New returns a logger writing to w. format is "json" or "text"; level is one
// of debug, info, warn, error. Unknown values fall back to text/info.
func New(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Account logs the hashed account key, never the raw identifier.
func Account(key string) slog.Attr {
	if key == "" {
		return slog.Attr{}
	}
	return slog.String("account", key)
}

func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Method(method string) slog.Attr {
	return slog.String("method", method)
}

func Path(path string) slog.Attr {
	return slog.String("path", path)
}

func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

func File(path string) slog.Attr {
	if path == "" {
		return slog.Attr{}
	}
	return slog.String("file", path)
}

func MediaID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("media_id", id)
}

func Latency(d time.Duration) slog.Attr {
	return slog.Duration("latency", d)
}
