package vecgroup

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with pipeline-specific helpers.
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
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// LogStage logs the completion or failure of a pipeline stage.
func (l *Logger) LogStage(ctx context.Context, stage string, elapsed time.Duration, err error, attrs ...any) {
	if err != nil {
		l.ErrorContext(ctx, "stage failed",
			append([]any{"stage", stage, "elapsed", elapsed, "error", err}, attrs...)...,
		)
	} else {
		l.InfoContext(ctx, "stage completed",
			append([]any{"stage", stage, "elapsed", elapsed}, attrs...)...,
		)
	}
}

// LogCheckpoint logs a checkpoint lookup.
func (l *Logger) LogCheckpoint(ctx context.Context, name string, hit bool) {
	if hit {
		l.InfoContext(ctx, "loaded from checkpoint",
			"checkpoint", name,
		)
	} else {
		l.DebugContext(ctx, "no usable checkpoint",
			"checkpoint", name,
		)
	}
}
