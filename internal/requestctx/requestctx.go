// Package requestctx carries correlation ids for HTTP requests and queued review
// messages so log lines from either intake path can be joined.
package requestctx

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	messageIDKey
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	if value, ok := ctx.Value(requestIDKey).(string); ok {
		return value
	}
	return ""
}

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, messageIDKey, messageID)
}

func GetMessageID(ctx context.Context) string {
	if value, ok := ctx.Value(messageIDKey).(string); ok {
		return value
	}
	return ""
}

// Logger returns base annotated with whichever correlation ids ctx carries. A nil
// base means slog.Default().
func Logger(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	if id := GetRequestID(ctx); id != "" {
		base = base.With("requestId", id)
	}
	if id := GetMessageID(ctx); id != "" {
		base = base.With("messageId", id)
	}
	return base
}
