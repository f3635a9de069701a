// Package observability provides structured logging and Prometheus metrics
// for the webagent tool server.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ContextKey is the type for context keys used in logging.
type ContextKey string

const (
	// RequestIDKey is the context key for tool-call request ids.
	RequestIDKey ContextKey = "request_id"

	// SessionIDKey is the context key for browser session ids.
	SessionIDKey ContextKey = "session_id"

	// TraceIDKey is the context key for replay trace ids.
	TraceIDKey ContextKey = "trace_id"
)

// LogConfig configures the logging behavior.
type LogConfig struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error".
	Level string

	// Format specifies output format: "json" or "text". JSON is the
	// production default; text is for development.
	Format string

	// Output is the writer for log output. The stdio transport owns stdout,
	// so logs default to os.Stderr.
	Output io.Writer

	// AddSource includes file and line number in log records.
	AddSource bool
}

// NewLogger creates a structured slog logger with the given configuration.
// Empty or invalid values fall back to info/json/stderr.
func NewLogger(config LogConfig) *slog.Logger {
	if config.Output == nil {
		config.Output = os.Stderr
	}
	if config.Format == "" {
		config.Format = "json"
	}

	opts := &slog.HandlerOptions{
		Level:     LogLevelFromString(config.Level),
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if config.Format == "json" {
		handler = slog.NewJSONHandler(config.Output, opts)
	} else {
		handler = slog.NewTextHandler(config.Output, opts)
	}
	return slog.New(handler)
}

// LogLevelFromString converts a string to a slog.Level.
// Returns LevelInfo if the string is not recognized.
func LogLevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
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

// WithSession returns a logger carrying session and trace correlation fields.
func WithSession(logger *slog.Logger, sessionID, traceID string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("session_id", sessionID, "trace_id", traceID)
}

// AddSessionID adds a session id to the context for correlation.
func AddSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// GetSessionID retrieves the session id from the context.
func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(SessionIDKey).(string); ok {
		return id
	}
	return ""
}
