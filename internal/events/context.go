package events

import (
	"context"
	"os"
)

type contextKey int

const (
	loggerKey contextKey = iota
	syncIDKey
	vaultIDKey
)

// FromContext extracts logger from context.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return defaultLogger
}

// WithLogger adds logger to context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithSyncID adds a sync session ID to context and its logger.
func WithSyncID(ctx context.Context, id string) context.Context {
	logger := FromContext(ctx).WithField("sync_id", id)
	ctx = context.WithValue(ctx, syncIDKey, id)
	return WithLogger(ctx, logger)
}

// WithVaultID adds a vault ID to context and its logger.
func WithVaultID(ctx context.Context, id string) context.Context {
	logger := FromContext(ctx).WithField("vault_id", id)
	ctx = context.WithValue(ctx, vaultIDKey, id)
	return WithLogger(ctx, logger)
}

// GetSyncID retrieves the sync session ID from context.
func GetSyncID(ctx context.Context) string {
	if id, ok := ctx.Value(syncIDKey).(string); ok {
		return id
	}
	return ""
}

// GetVaultID retrieves the vault ID from context.
func GetVaultID(ctx context.Context) string {
	if id, ok := ctx.Value(vaultIDKey).(string); ok {
		return id
	}
	return ""
}

var defaultLogger = &Logger{
	level:  InfoLevel,
	format: "text",
	output: os.Stderr,
	fields: make(map[string]interface{}),
}

// SetDefault sets the default logger.
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
