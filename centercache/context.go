package centercache

import "context"

type forceRefreshContextKey struct{}

// WithForceRefresh marks the request so GetCenterData skips the cache read,
// reloads and rewrites every tier.
func WithForceRefresh(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, forceRefreshContextKey{}, true)
}

func forceRefreshFromContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	force, _ := ctx.Value(forceRefreshContextKey{}).(bool)
	return force
}
