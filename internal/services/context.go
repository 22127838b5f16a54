package services

import "context"

type contextKey string

const (
	batchKey     contextKey = "batch"
	userKey      contextKey = "user"
	requestIDKey contextKey = "request_id"
)

// WithBatch annotates context with the batch stamp being processed.
func WithBatch(ctx context.Context, stamp string) context.Context {
	if stamp == "" {
		return ctx
	}
	return context.WithValue(ctx, batchKey, stamp)
}

// BatchFromContext returns the batch stamp if present.
func BatchFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(batchKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithUser annotates context with the account the batch belongs to.
func WithUser(ctx context.Context, user string) context.Context {
	if user == "" {
		return ctx
	}
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the account name if present.
func UserFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(userKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
