package context

import (
	"context"
)

// TraceContext carries the correlation identifiers for one request.
// TraceID follows the request across services; RequestID is unique to
// this hop.
type TraceContext struct {
	TraceID   string
	RequestID string
}

type traceContextKey struct{}

// WithTrace attaches trace identifiers to the context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns the trace identifiers, or nil outside a request.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}
