package logging

import (
	"context"
	"log/slog"

	"normalizer/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldBatchID correlates every line of one run.
	FieldBatchID = "batch_id"
	// FieldJob is the 1-based job position within the batch.
	FieldJob = "job"
	// FieldStage names the job stage (hash, analyze, transform).
	FieldStage     = "stage"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact          = "impact"
	FieldProgressPercent = "progress_percent"
	FieldError           = "error"
	// FieldGain is a gain adjustment in dB.
	FieldGain = "gain_db"
	// FieldKey is an abbreviated content key.
	FieldKey = "key"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.BatchIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldBatchID, id))
	}
	if job, ok := services.JobFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldJob, job))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
