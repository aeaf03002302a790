package logger

import "context"

type contextKey string

const (
	loggerKey    contextKey = "feedauth.logger"
	attemptIDKey contextKey = "feedauth.attempt_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithAttemptID tags the context with a login attempt ID.
func WithAttemptID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, attemptIDKey, id)
}

// AttemptIDFromContext extracts the login attempt ID from context.
func AttemptIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(attemptIDKey).(string); ok {
		return id
	}
	return ""
}

// L returns the context's logger bound to ctx, so its records carry the
// attempt ID, if any.
func L(ctx context.Context) Logger {
	return FromContext(ctx).WithContext(ctx)
}
