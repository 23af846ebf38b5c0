package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	once   sync.Once
	mu     sync.RWMutex
	logger *slog.Logger
)

// Setup initializes the global JSON logger on stdout.
// Unknown levels fall back to INFO. Only the first call has an effect.
func Setup(level string) {
	SetupWithWriter(level, "json", os.Stdout)
}

// SetupWithWriter initializes the global logger with an explicit format
// ("json" or "text") and destination. Only the first call to Setup or
// SetupWithWriter has an effect.
func SetupWithWriter(level, format string, w io.Writer) {
	once.Do(func() {
		set(newLogger(level, format, w))
	})
}

func newLogger(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

func set(l *slog.Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
	if l != nil {
		slog.SetDefault(l)
	}
}

// ParseLevel maps a level name to a slog.Level, defaulting to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Get returns the configured logger, setting up an INFO logger if needed.
func Get() *slog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}
	Setup("INFO")
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// WithComponent returns a logger with the component field set.
func WithComponent(name string) *slog.Logger {
	return Get().With(slog.String("component", name))
}

// WithCommand returns a logger with the command field set.
func WithCommand(name string) *slog.Logger {
	return Get().With(slog.String("command", name))
}

// WithExecution returns a logger with the execution_id field set.
func WithExecution(id string) *slog.Logger {
	return Get().With(slog.String("execution_id", id))
}

// Info logs at INFO level.
func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

// Warn logs at WARN level.
func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

// Error logs at ERROR level.
func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}
