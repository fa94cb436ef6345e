package orchestrator

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Logger provides structured logging for orchestration runs.
// It wraps log/slog with a JSON handler and is passed explicitly to every
// engine component. Safe for concurrent use.
type Logger struct {
	logger *slog.Logger
	file   *os.File
	mu     *sync.Mutex
}

// NewLogger creates a logger writing JSON lines to logPath.
// If the path is empty, returns a no-op logger.
// Creates parent directories if they don't exist.
func NewLogger(logPath, level string) (*Logger, error) {
	if logPath == "" {
		return NopLogger(), nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := NewLoggerWithWriter(f, level)
	l.file = f
	return l, nil
}

// NewLoggerWithWriter creates a logger writing JSON lines to w.
func NewLoggerWithWriter(w io.Writer, level string) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	return &Logger{logger: slog.New(handler), mu: &sync.Mutex{}}
}

// NewLoggerForDir creates a logger in dir/orchestrator.log.
// Returns a no-op logger if the directory cannot be created.
func NewLoggerForDir(dir, level string) *Logger {
	l, err := NewLogger(filepath.Join(dir, "orchestrator.log"), level)
	if err != nil {
		return NopLogger()
	}
	return l
}

// NopLogger returns a logger that discards everything.
func NopLogger() *Logger {
	return &Logger{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		mu:     &sync.Mutex{},
	}
}

func parseLevel(level string) slog.Level {
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

// Slog returns the underlying slog.Logger for packages that take one directly.
func (l *Logger) Slog() *slog.Logger {
	if l == nil {
		return NopLogger().logger
	}
	return l.logger
}

// With returns a child logger carrying the given key-value attributes.
func (l *Logger) With(args ...any) *Logger {
	if l == nil || len(args) == 0 {
		return l
	}
	return &Logger{logger: l.logger.With(args...), file: l.file, mu: l.mu}
}

// WithRun tags every entry with the run id.
func (l *Logger) WithRun(runID string) *Logger {
	return l.With("run_id", runID)
}

// WithPhase tags every entry with the orchestration phase
// (planning, execution, synthesis).
func (l *Logger) WithPhase(phase string) *Logger {
	return l.With("phase", phase)
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...any) { l.Slog().Debug(msg, args...) }

// Info logs at info level.
func (l *Logger) Info(msg string, args ...any) { l.Slog().Info(msg, args...) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...any) { l.Slog().Warn(msg, args...) }

// Error logs at error level.
func (l *Logger) Error(msg string, args ...any) { l.Slog().Error(msg, args...) }

// Close closes the log file.
// Safe to call on nil logger or logger without file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.file.Close()
	l.file = nil
	return err
}
