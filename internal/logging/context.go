package logging

import (
	"context"

	"github.com/google/uuid"
)

// RequestContext carries per-request identity through the call stack. It is
// created once by the correlation middleware and never mutated afterwards.
type RequestContext struct {
	CorrelationID string
	RequestID     string
	Method        string
	Path          string
	UserAgent     string
}

type ctxKey struct{}

// WithRequestContext attaches rc to ctx for downstream loggers.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

// FromContext returns the request context attached to ctx, or nil.
func FromContext(ctx context.Context) *RequestContext {
	if ctx == nil {
		return nil
	}
	rc, _ := ctx.Value(ctxKey{}).(*RequestContext)
	return rc
}

// CorrelationIDFrom returns the correlation id in ctx, or "".
func CorrelationIDFrom(ctx context.Context) string {
	if rc := FromContext(ctx); rc != nil {
		return rc.CorrelationID
	}
	return ""
}

// NewCorrelationID generates a fresh correlation id.
func NewCorrelationID() string {
	return uuid.NewString()
}
