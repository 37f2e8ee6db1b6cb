package envutil

import "context"

type envContextKey string

// WithEnvOverride returns a context in which reads of key observe value
// instead of the process environment.
func WithEnvOverride(ctx context.Context, key string, value string) context.Context {
	return context.WithValue(ctx, envContextKey(key), value)
}

// WithEnvOverrides applies several overrides at once.
func WithEnvOverrides(ctx context.Context, values map[string]string) context.Context {
	for key, value := range values {
		ctx = WithEnvOverride(ctx, key, value)
	}

	return ctx
}

func getEnvOverride(ctx context.Context, key string) (string, bool) {
	if ctx == nil {
		return "", false
	}

	val, ok := ctx.Value(envContextKey(key)).(string)

	return val, ok
}
