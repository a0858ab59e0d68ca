// Package context carries correlation identifiers through request and event handling.
package context

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	actorKey
	sourceKey
)

type actor struct {
	kind string
	id   string
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithActor records who triggered the current unit of work (requester, operator, system).
func WithActor(ctx context.Context, kind, id string) context.Context {
	return context.WithValue(ctx, actorKey, actor{kind: kind, id: id})
}

func ActorFromContext(ctx context.Context) (string, string) {
	if v, ok := ctx.Value(actorKey).(actor); ok {
		return v.kind, v.id
	}
	return "", ""
}

// WithSource records the transport an event arrived on (http, nats, cli).
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey, source)
}

func SourceFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sourceKey).(string); ok {
		return v
	}
	return ""
}
