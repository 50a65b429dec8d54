package ctxutil

import "context"

type traceDataKey struct{}

// TraceData carries identifiers that should ride along a context so that
// every log line emitted while processing one queue entry can be
// correlated back to it, even across stage boundaries.
type TraceData struct {
	Namespace string
	ObjectID  string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	val := ctx.Value(traceDataKey{})
	if td, ok := val.(*TraceData); ok {
		return td
	}
	return nil
}
