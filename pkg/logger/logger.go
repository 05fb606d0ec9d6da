package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with additional functionality.
type Logger struct {
	*slog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level  string
	Format string
	Output io.Writer
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Output: os.Stdout,
	}
}

// New creates a new Logger instance.
func New(cfg Config) *Logger {
	level := parseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   level == slog.LevelDebug,
		ReplaceAttr: sanitizeAttr,
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// sensitiveKeys are masked wherever they appear as a full attribute key.
// Webhook signing keys travel as "key" on subscriptions, so the bare word is included.
var sensitiveKeys = map[string]bool{
	"key":           true,
	"secret":        true,
	"secret_key":    true,
	"signing_key":   true,
	"password":      true,
	"token":         true,
	"authorization": true,
	"bearer":        true,
	"jwt":           true,
	"cookie":        true,
	"dsn":           true,
	"signature":     true,
	"card_number":   true,
}

// sensitiveFragments are masked when they appear anywhere in a key (e.g. "redis_password").
var sensitiveFragments = []string{
	"password",
	"secret",
	"token",
	"signature",
}

// sanitizeAttr masks sensitive values in log attributes.
func sanitizeAttr(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)

	if sensitiveKeys[key] {
		return slog.String(a.Key, "[REDACTED]")
	}

	for _, fragment := range sensitiveFragments {
		if strings.Contains(key, fragment) {
			return slog.String(a.Key, "[REDACTED]")
		}
	}

	return a
}

// NewDefault creates a new Logger with default configuration.
func NewDefault() *Logger {
	return New(DefaultConfig())
}

// NewDevelopment creates a logger configured for development.
func NewDevelopment() *Logger {
	return New(Config{
		Level:  "debug",
		Format: "text",
		Output: os.Stdout,
	})
}

// NewNop creates a logger that discards all output.
func NewNop() *Logger {
	return New(Config{
		Level:  "error",
		Format: "json",
		Output: io.Discard,
	})
}

// With returns a new Logger with the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// ContextKey is the type of request-scoped values read by WithContext.
// Must match the keys set by the HTTP middleware.
type ContextKey string

const (
	ContextKeyRequestID ContextKey = "request_id"
	ContextKeyVendorID  ContextKey = "vendor_id"
)

// WithContext returns a new Logger carrying request-scoped values.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	logger := l.Logger

	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok && requestID != "" {
		logger = logger.With(slog.String("request_id", requestID))
	}

	if vendorID, ok := ctx.Value(ContextKeyVendorID).(int64); ok && vendorID != 0 {
		logger = logger.With(slog.Int64("vendor_id", vendorID))
	}

	return &Logger{Logger: logger}
}

// SetDefault sets this logger as the default slog logger.
func (l *Logger) SetDefault() {
	slog.SetDefault(l.Logger)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
