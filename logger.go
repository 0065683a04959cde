package equistore

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with equistore-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithKeyCount adds a key count field to the logger.
func (l *Logger) WithKeyCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("keys", count),
	}
}

// LogReshape logs a key-reshaping operation.
func (l *Logger) LogReshape(ctx context.Context, op string, dimensions []string, blocksBefore, blocksAfter int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "reshape failed",
			"op", op,
			"dimensions", dimensions,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "reshape completed",
			"op", op,
			"dimensions", dimensions,
			"blocks_before", blocksBefore,
			"blocks_after", blocksAfter,
		)
	}
}

// LogSave logs an archive save operation.
func (l *Logger) LogSave(ctx context.Context, name string, blocks int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "archive save failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "archive saved",
			"name", name,
			"blocks", blocks,
		)
	}
}

// LogLoad logs an archive load operation.
func (l *Logger) LogLoad(ctx context.Context, name string, blocks int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "archive load failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "archive loaded",
			"name", name,
			"blocks", blocks,
		)
	}
}
