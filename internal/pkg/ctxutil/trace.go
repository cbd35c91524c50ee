package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type traceDataKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
	// Actor is the caller the surrounding layer authenticated; the engine only
	// uses it for audit attribution.
	Actor uuid.UUID
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// ActorOr returns the actor stored on ctx, or fallback when ctx carries none.
func ActorOr(ctx context.Context, fallback uuid.UUID) uuid.UUID {
	if fallback != uuid.Nil {
		return fallback
	}
	if td := GetTraceData(ctx); td != nil {
		return td.Actor
	}
	return uuid.Nil
}
