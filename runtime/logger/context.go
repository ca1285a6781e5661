package logger

import "context"

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys for fields that are copied from a context.Context into every
// log record written with that context.
const (
	// ContextKeySessionID identifies the call session.
	ContextKeySessionID contextKey = "session_id"

	// ContextKeyStreamGen is the generation of the session's STT stream.
	ContextKeyStreamGen contextKey = "stream_gen"

	// ContextKeyStage identifies the pipeline stage (stt, llm, tts, transport).
	ContextKeyStage contextKey = "stage"

	// ContextKeyProvider identifies the provider serving the stage.
	ContextKeyProvider contextKey = "provider"

	// ContextKeyRemoteAddr is the peer address of the transport connection.
	ContextKeyRemoteAddr contextKey = "remote_addr"
)

var allContextKeys = []contextKey{
	ContextKeySessionID,
	ContextKeyStreamGen,
	ContextKeyStage,
	ContextKeyProvider,
	ContextKeyRemoteAddr,
}

// WithSessionID returns a new context with the session ID set.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// WithStreamGen returns a new context with the STT stream generation set.
func WithStreamGen(ctx context.Context, gen string) context.Context {
	return context.WithValue(ctx, ContextKeyStreamGen, gen)
}

// WithStage returns a new context with the pipeline stage set.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, ContextKeyStage, stage)
}

// WithProvider returns a new context with the provider name set.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, ContextKeyProvider, provider)
}

// WithRemoteAddr returns a new context with the peer address set.
func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, ContextKeyRemoteAddr, addr)
}

// SessionIDFrom returns the session ID stored in ctx, if any.
func SessionIDFrom(ctx context.Context) string {
	s, _ := ctx.Value(ContextKeySessionID).(string)
	return s
}

// Fields extracts every known logging field present in ctx.
func Fields(ctx context.Context) map[string]string {
	out := make(map[string]string)
	for _, key := range allContextKeys {
		if s, ok := ctx.Value(key).(string); ok && s != "" {
			out[string(key)] = s
		}
	}
	return out
}
