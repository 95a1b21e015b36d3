// Package logging defines the structured-logging interface used by the
// uploader components and its slog-backed implementation.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are key–value pairs:
//
//	log.Info(ctx, "segment uploaded", "camera", cam, "key", key)
type Logger interface {
	// Debug logs noisy per-file decisions (skips, already handled files).
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a recoverable per-file failure.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs failures that need an operator: permanent failures and
	// process-wide upload halts.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}
