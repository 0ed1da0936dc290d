package persistence

import (
	"context"

	"github.com/google/uuid"
)

// requestIDKey is the context key for the request correlation id
type requestIDKey struct{}

// ContextWithRequestID attaches a correlation id; an empty id generates one.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns "" when no id is present
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
