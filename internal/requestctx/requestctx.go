package requestctx

import "context"

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	actorKey     ctxKey = "actor"
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

// WithActor stores the forwarded identity of the person driving the
// request. Authentication happens upstream; this is the verified principal
// the gateway passed down.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func GetActor(ctx context.Context) string {
	if value, ok := ctx.Value(actorKey).(string); ok {
		return value
	}
	return ""
}
