// Package requestcontext carries request-scoped values through context
// without tying services to net/http. HTTP middleware populates it; the audit
// logger reads request ID, client IP, User-Agent and request time from it.
package requestcontext

import (
	"context"
	"time"
)

type key int

const (
	keyClientIP key = iota
	keyUserAgent
	keyRequestID
	keyRequestTime
)

func value[T any](ctx context.Context, k key) (T, bool) {
	v, ok := ctx.Value(k).(T)
	return v, ok
}

// ClientIP is the caller's address, or "" outside a request.
func ClientIP(ctx context.Context) string {
	ip, _ := value[string](ctx, keyClientIP)
	return ip
}

// UserAgent is the caller's User-Agent header, or "".
func UserAgent(ctx context.Context) string {
	ua, _ := value[string](ctx, keyUserAgent)
	return ua
}

// WithClientMetadata records who is calling.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, keyClientIP, clientIP)
	return context.WithValue(ctx, keyUserAgent, userAgent)
}

// RequestID is the correlation id of the current request, or "".
func RequestID(ctx context.Context) string {
	id, _ := value[string](ctx, keyRequestID)
	return id
}

// WithRequestID sets the correlation id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

// Now is the time the request was received. Consumers, workers and tests
// without a request time get time.Now().
func Now(ctx context.Context) time.Time {
	if t, ok := value[time.Time](ctx, keyRequestTime); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the request time.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, keyRequestTime, t)
}
