package settings

import "context"

type contextKey struct{}

// IntoContext stores r in ctx.
func IntoContext(ctx context.Context, r *Run) context.Context {
	return context.WithValue(ctx, contextKey{}, r)
}

// FromContext returns the run settings stored in ctx.
func FromContext(ctx context.Context) (*Run, bool) {
	r, ok := ctx.Value(contextKey{}).(*Run)
	return r, ok && r != nil
}
