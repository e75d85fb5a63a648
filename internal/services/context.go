package services

import "context"

type contextKey string

const (
	comicIDKey  contextKey = "comic_id"
	stageKey    contextKey = "stage"
	pipelineKey contextKey = "pipeline"
	runIDKey    contextKey = "run_id"
)

// WithComicID annotates context with the comic identifier.
func WithComicID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, comicIDKey, id)
}

// ComicIDFromContext extracts the comic identifier if present.
func ComicIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(comicIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithStage annotates context with the pipeline stage name.
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

// WithPipeline annotates context with the pipeline name.
func WithPipeline(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, pipelineKey, name)
}

// PipelineFromContext returns the pipeline name if present.
func PipelineFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(pipelineKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRunID annotates context with a pipeline run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
