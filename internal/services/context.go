package services

import "context"

type contextKey string

const (
	keyTrackKey contextKey = "track_key"
	keyPhase    contextKey = "phase"
	keyRequest  contextKey = "request_id"
)

// WithTrackKey attaches the track's canonical key to ctx.
func WithTrackKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, keyTrackKey, key)
}

// TrackKey extracts a track key previously attached with WithTrackKey.
func TrackKey(ctx context.Context) string {
	key, _ := ctx.Value(keyTrackKey).(string)
	return key
}

// WithPhase attaches the active phase name (technical, creative, instrumentation) to ctx.
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, keyPhase, phase)
}

// Phase extracts the phase name previously attached with WithPhase.
func Phase(ctx context.Context) string {
	phase, _ := ctx.Value(keyPhase).(string)
	return phase
}

// WithRequestID attaches a per-submission request ID to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequest, id)
}

// RequestID extracts the request ID previously attached with WithRequestID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(keyRequest).(string)
	return id
}
