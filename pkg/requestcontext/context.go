// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values set by middleware and consumed by services.
package requestcontext

import (
	"context"
)

type requestIDKey struct{}

// RequestID retrieves the request ID from the context, or "" if unset.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}
