package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LogLevel represents the available log levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Logger wraps slog with component scoping and intention tagging.
type Logger struct {
	*slog.Logger
}

// ParseLevel maps a level name to slog. Unknown names fall back to info.
func ParseLevel(level LogLevel) slog.Level {
	switch LogLevel(strings.ToLower(strings.TrimSpace(string(level)))) {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn, "warning":
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a logger writing to stderr and the bot log file.
func NewLogger(level LogLevel) *Logger {
	return NewLoggerWithConsoleWriter(level, os.Stderr)
}

// NewLoggerWithConsoleWriter builds a logger whose console output goes to w.
// Records are also appended to ~/.kleinbot/logs/kleinbot.log.
func NewLoggerWithConsoleWriter(level LogLevel, w io.Writer) *Logger {
	slogLevel := ParseLevel(level)
	if w == nil {
		w = os.Stderr
	}
	handler := newMultiHandler(newPlainHandler(w, slogLevel), newFileTextHandler(slogLevel))
	return &Logger{Logger: slog.New(handler)}
}

// NewConsoleLogger returns a logger without the file handler.
func NewConsoleLogger(level LogLevel, w io.Writer) *Logger {
	if w == nil {
		w = io.Discard
	}
	return &Logger{Logger: slog.New(newPlainHandler(w, ParseLevel(level)))}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithComponent creates a logger with a component context for better tracing
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.With("component", component)}
}

// WithChat scopes a logger to one conversation.
func (l *Logger) WithChat(chatID string) *Logger {
	return &Logger{Logger: l.With("chat", chatID)}
}

// LogWithIntention logs at level with an "intention" attribute attached.
func (l *Logger) LogWithIntention(level slog.Level, intention Intention, msg string, args ...any) {
	kv := append([]any{"intention", string(intention)}, args...)
	l.Log(context.Background(), level, msg, kv...)
}

func (l *Logger) InfoWithIntention(intention Intention, msg string, args ...any) {
	l.LogWithIntention(slog.LevelInfo, intention, msg, args...)
}

func (l *Logger) DebugWithIntention(intention Intention, msg string, args ...any) {
	l.LogWithIntention(slog.LevelDebug, intention, msg, args...)
}

// Default logger instance - single instance for the entire application
var Default = NewConsoleLogger(LogLevelInfo, os.Stderr)

// SetGlobalLoggerWithConsoleWriter replaces Default.
func SetGlobalLoggerWithConsoleWriter(level LogLevel, w io.Writer) {
	Default = NewLoggerWithConsoleWriter(level, w)
}

// NewComponentLogger creates a new logger for a specific component
func NewComponentLogger(component string) *Logger {
	return Default.WithComponent(component)
}

// LogDir is where the file handler writes.
func LogDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".kleinbot", "logs")
}

func newFileTextHandler(level slog.Level) slog.Handler {
	base := LogDir()
	_ = os.MkdirAll(base, 0o755)

	f, err := os.OpenFile(filepath.Join(base, "kleinbot.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		// Fallback to stderr if file cannot be opened
		return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{Key: "time", Value: slog.StringValue(a.Value.Time().Format("2006-01-02 15:04:05"))}
			}
			return a
		},
	}
	return slog.NewTextHandler(f, opts)
}
