// Package recognition runs the external image recognition pipelines that
// produce an embedding and descriptive attributes for a product image.
package recognition

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

// ErrNotSupported is returned for categories no pipeline handles. Callers
// treat it as "no embedding, no metadata".
var ErrNotSupported = errors.New("category is not supported")

// PipelineRunner executes a named pipeline over raw image bytes and returns
// the pipeline's JSON output.
type PipelineRunner interface {
	RunPipeline(ctx context.Context, pipeline string, image []byte) (string, error)
}

// Observer receives the outcome of every pipeline run.
type Observer interface {
	RecordPipelineRun(pipeline string, latency time.Duration, success bool)
}

// Recognizer maps categories to pipelines and parses their output.
type Recognizer struct {
	runner    PipelineRunner
	pipelines Pipelines
	observer  Observer
}

// NewRecognizer creates a Recognizer. observer may be nil.
func NewRecognizer(runner PipelineRunner, pipelines Pipelines, observer Observer) *Recognizer {
	return &Recognizer{
		runner:    runner,
		pipelines: pipelines,
		observer:  observer,
	}
}

// Supports reports whether category has a pipeline.
func (r *Recognizer) Supports(category string) bool {
	_, ok := r.pipelines.Lookup(category)
	return ok
}

// Categories lists the categories that have a pipeline.
func (r *Recognizer) Categories() []string {
	return r.pipelines.Categories()
}

// Recognize runs the category's pipeline over image.
func (r *Recognizer) Recognize(ctx context.Context, image []byte, category string) (*Result, error) {
	pipeline, ok := r.pipelines.Lookup(category)
	if !ok {
		return nil, ErrNotSupported
	}

	start := time.Now()
	raw, err := r.runner.RunPipeline(ctx, pipeline, image)
	if err != nil {
		r.observe(pipeline, start, false)
		return nil, errors.Wrapf(err, "failed to run pipeline %s", pipeline)
	}

	result, err := ParseResult(raw)
	if err != nil {
		r.observe(pipeline, start, false)
		return nil, errors.Wrapf(err, "pipeline %s", pipeline)
	}
	r.observe(pipeline, start, true)

	slog.Debug("recognition completed",
		"pipeline", pipeline,
		"dim", len(result.Embedding),
		"properties", len(result.Properties),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (r *Recognizer) observe(pipeline string, start time.Time, success bool) {
	if r.observer != nil {
		r.observer.RecordPipelineRun(pipeline, time.Since(start), success)
	}
}
