package idempotency

import "context"

type contextKey struct{}

type replayKey struct{}

// FromContext returns the validated idempotency key of the current request.
func FromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(contextKey{}).(string)

	return key, ok && key != ""
}

func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, contextKey{}, key)
}

// MarkReplayed flags a response served from the idempotency store.
func MarkReplayed(ctx context.Context) context.Context {
	return context.WithValue(ctx, replayKey{}, true)
}

func IsReplayed(ctx context.Context) bool {
	replayed, _ := ctx.Value(replayKey{}).(bool)

	return replayed
}
