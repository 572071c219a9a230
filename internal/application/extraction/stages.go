package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
)

// Ladder stage names as they appear in spans, events and logs
const (
	StageMetadata    = "metadata"
	StageDescription = "description"
	StageComments    = "comments"
	StageTranscript  = "transcript"
	StageText        = "text_extraction"
	StageVision      = "video_vision"
)

// Stage outcomes
const (
	OutcomeEvidence   = "evidence"
	OutcomeNoEvidence = "no_evidence"
	OutcomeSkipped    = "skipped"
	OutcomeFailed     = "failed"
)

type stageResult struct {
	outcome string
	reason  string
	err     error
}

func evidenceFound() stageResult { return stageResult{outcome: OutcomeEvidence} }

func noEvidence(reason string) stageResult {
	return stageResult{outcome: OutcomeNoEvidence, reason: reason}
}

func stageFailed(reason string, err error) stageResult {
	return stageResult{outcome: OutcomeFailed, reason: reason, err: err}
}

// runStage runs fn in its own span under an optional deadline and records the outcome.
// A deadline hit inside the stage is a stage failure; the caller's own
// cancellation is reported back unchanged for the ladder to abort on.
func (l *Ladder) runStage(ctx context.Context, run *ladderRun, name string, timeout time.Duration, fn func(context.Context) stageResult) stageResult {
	start := time.Now()
	stageCtx, span := l.tracer.Start(ctx, "ladder."+name,
		trace.WithAttributes(
			attribute.String("cookcard.stage", name),
			attribute.String("cookcard.extraction_id", run.id.String()),
		),
	)
	defer span.End()

	if timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(stageCtx, timeout)
		defer cancel()
	}

	res := fn(stageCtx)
	if res.outcome == OutcomeFailed && ctx.Err() == nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		res.reason = "timeout"
		res.err = fmt.Errorf("%w: %s after %s", cookcard.ErrStageTimeout, name, timeout)
	}

	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.String("cookcard.outcome", res.outcome),
		attribute.String("cookcard.reason", res.reason),
	)
	if res.err != nil {
		span.RecordError(res.err)
		span.SetStatus(codes.Error, res.err.Error())
	}

	l.recordStage(run, name, res, elapsed)
	return res
}

// recordStage emits a StageFinished event for stages decided without running anything
func (l *Ladder) recordStage(run *ladderRun, name string, res stageResult, elapsed time.Duration) {
	run.events.Record(cookcard.StageFinishedEvent{
		ExtractionID: run.id,
		Stage:        name,
		Outcome:      res.outcome,
		Reason:       res.reason,
		Duration:     elapsed,
		At:           time.Now().UTC(),
	})

	fields := []zap.Field{
		zap.String("extraction_id", run.id.String()),
		zap.String("stage", name),
		zap.String("outcome", res.outcome),
		zap.Duration("duration", elapsed),
	}
	if res.reason != "" {
		fields = append(fields, zap.String("reason", res.reason))
	}
	if res.err != nil {
		l.logger.Warn("Ladder stage failed", append(fields, zap.Error(res.err))...)
		return
	}
	l.logger.Debug("Ladder stage finished", fields...)
}
