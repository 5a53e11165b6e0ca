package common

import (
	"context"
	"time"
)

type requestKey struct{}

// RequestInfo is the per-request metadata shared by the HTTP middleware chain. It is
// attached once and filled in as the request moves inward, so outer middleware sees
// what inner middleware resolved.
type RequestInfo struct {
	ID        string
	UserID    string
	StartedAt time.Time
}

// Elapsed is the time since the request started, or zero when unknown.
func (ri *RequestInfo) Elapsed() time.Duration {
	if ri.StartedAt.IsZero() {
		return 0
	}
	return time.Since(ri.StartedAt)
}

// WithRequestInfo attaches info to ctx.
func WithRequestInfo(ctx context.Context, info *RequestInfo) context.Context {
	return context.WithValue(ctx, requestKey{}, info)
}

// RequestInfoFrom returns the attached info, or nil.
func RequestInfoFrom(ctx context.Context) *RequestInfo {
	info, _ := ctx.Value(requestKey{}).(*RequestInfo)
	return info
}

// EnsureRequestInfo returns the attached info, attaching an empty one when absent.
func EnsureRequestInfo(ctx context.Context) (context.Context, *RequestInfo) {
	if info := RequestInfoFrom(ctx); info != nil {
		return ctx, info
	}
	info := &RequestInfo{}
	return WithRequestInfo(ctx, info), info
}

// CallerID is the authenticated user of the request, or "".
func CallerID(ctx context.Context) string {
	if info := RequestInfoFrom(ctx); info != nil {
		return info.UserID
	}
	return ""
}

// RequestID is the request's correlation id, or "".
func RequestID(ctx context.Context) string {
	if info := RequestInfoFrom(ctx); info != nil {
		return info.ID
	}
	return ""
}
