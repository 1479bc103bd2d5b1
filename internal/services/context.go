package services

import "context"

type contextKey string

const (
	batchIDKey contextKey = "batch_id"
	jobKey     contextKey = "job"
	stageKey   contextKey = "stage"
)

// WithBatchID annotates context with the correlation identifier of a batch run.
func WithBatchID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, batchIDKey, id)
}

// BatchIDFromContext extracts the batch correlation identifier if present.
func BatchIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(batchIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithJob annotates context with the 1-based position of the job in its batch.
func WithJob(ctx context.Context, index int) context.Context {
	if index <= 0 {
		return ctx
	}
	return context.WithValue(ctx, jobKey, index)
}

// JobFromContext extracts the job position if present.
func JobFromContext(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(jobKey).(int)
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

// WithStage annotates context with the job stage name (hash, analyze, transform).
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}
