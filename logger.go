package faceid

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with faceid-specific context.
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

// LogRegister logs a registration.
func (l *Logger) LogRegister(ctx context.Context, identityID string, replaced bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "register failed",
			"identity", identityID,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "register completed",
			"identity", identityID,
			"replaced", replaced,
		)
	}
}

// LogIdentify logs an identification.
func (l *Logger) LogIdentify(ctx context.Context, k, matches int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "identify failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "identify completed",
			"k", k,
			"matches", matches,
		)
	}
}

// LogSnapshot logs a snapshot persistence.
func (l *Logger) LogSnapshot(ctx context.Context, filename string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"filename", filename,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"filename", filename,
		)
	}
}

// LogRebuild logs an index rebuild.
func (l *Logger) LogRebuild(ctx context.Context, entries int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index rebuild failed",
			"entries", entries,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index rebuilt",
			"entries", entries,
		)
	}
}

// LogArchive logs a best-effort archive upload.
func (l *Logger) LogArchive(ctx context.Context, name string, err error) {
	if err != nil {
		l.WarnContext(ctx, "archive upload failed",
			"name", name,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "archive upload completed",
			"name", name,
		)
	}
}

// LogEnrich logs a best-effort directory lookup.
func (l *Logger) LogEnrich(ctx context.Context, identityID string, attrs int, err error) {
	if err != nil {
		l.WarnContext(ctx, "profile lookup failed",
			"identity", identityID,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "profile lookup completed",
			"identity", identityID,
			"attributes", attrs,
		)
	}
}
