package monitoring

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger provides structured logging with tracker-specific helpers
type Logger struct {
	*slog.Logger
}

// ParseLevel maps a config string to a slog level, defaulting to info
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

// NewLogger creates a JSON logger on stdout
func NewLogger() *Logger {
	return NewLoggerWithOptions(os.Stdout, slog.LevelInfo, "json")
}

// NewLoggerWithOptions creates a logger writing to w at the given level in json or text format
func NewLoggerWithOptions(w io.Writer, level slog.Level, format string) *Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Discard returns a logger that drops everything, for tests
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// FetchLogger logs the outcome of one documentation fetch
func (l *Logger) FetchLogger(vendor, url, status, detail string, duration time.Duration) {
	if status != "success" {
		l.Warn("Documentation Fetch Failed",
			"vendor", vendor,
			"url", url,
			"error", detail,
			"duration_ms", duration.Milliseconds(),
		)
		return
	}

	l.Info("Documentation Fetched",
		"vendor", vendor,
		"url", url,
		"outcome", detail,
		"duration_ms", duration.Milliseconds(),
	)
}

// ChangeLogger logs a detected documentation change
func (l *Logger) ChangeLogger(vendor, url, description string) {
	l.Info("Documentation Change Detected",
		"vendor", vendor,
		"url", url,
		"description", description,
	)
}

// StoreLogger logs document store access
func (l *Logger) StoreLogger(operation, document string, size int, duration time.Duration) {
	l.Debug("Document Store",
		"operation", operation,
		"document", document,
		"size_bytes", size,
		"duration_ms", duration.Milliseconds(),
	)
}

// RunLogger logs the summary of a tracker run
func (l *Logger) RunLogger(mode, runID string, changes, failures int, snapshotAppended bool, scores map[string]float64, duration time.Duration) {
	attrs := []any{
		"mode", mode,
		"run_id", runID,
		"changes", changes,
		"fetch_failures", failures,
		"snapshot_appended", snapshotAppended,
		"duration_ms", duration.Milliseconds(),
	}
	for vendor, overall := range scores {
		attrs = append(attrs, "score_"+vendor, overall)
	}

	l.Info("Run Completed", attrs...)
}

// RequestLogger logs HTTP request details for the read-only view
func (l *Logger) RequestLogger(method, path, ip string, statusCode int, duration time.Duration) {
	l.Info("HTTP Request",
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}
