package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/domain/evidence"
	"github.com/alchemorsel/cookcard/internal/domain/shared"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

const tracerName = "github.com/alchemorsel/cookcard/internal/application/extraction"

// Collaborators are the outbound adapters the ladder calls.
// Comments, Transcripts, Text and Vision may be nil; their stages are then skipped.
type Collaborators struct {
	Metadata    outbound.MetadataFetcher
	Comments    outbound.CommentFetcher
	Transcripts outbound.TranscriptFetcher
	Text        outbound.TextModel
	Vision      outbound.VisionModel
}

// LadderResult is the outcome of one ladder run, before card assembly
type LadderResult struct {
	Metadata       outbound.MediaMetadata
	MetadataOK     bool
	Ingredients    []cookcard.Ingredient
	Instructions   []string
	Method         cookcard.Method
	EvidenceSource cookcard.SourceKind
	Sources        []cookcard.SourceKind
	Confidence     float64
	CostCents      int64
	RejectedCount  int
	VisionMinutes  int64
}

// Ladder walks the evidence sources from cheapest to most expensive and stops at the
// first one that yields validated ingredients
type Ladder struct {
	cfg       PipelineConfig
	collab    Collaborators
	budget    *BudgetLedger
	preGate   *evidence.PreGate
	scorer    *evidence.CommentScorer
	validator *evidence.Validator
	grouper   *evidence.Grouper
	tracer    trace.Tracer
	logger    *zap.Logger
}

// NewLadder wires a ladder. budget may be nil, which closes the vision stage.
func NewLadder(cfg PipelineConfig, collab Collaborators, budget *BudgetLedger, logger *zap.Logger) *Ladder {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	var matcher evidence.Matcher = evidence.StrictMatcher{}
	if cfg.Flags.FuzzyEvidence {
		matcher = evidence.FuzzyMatcher{MinOverlap: cfg.Flags.FuzzyMinOverlap}
	}

	return &Ladder{
		cfg:       cfg,
		collab:    collab,
		budget:    budget,
		preGate:   evidence.NewPreGate(cfg.PreGateMinChars),
		scorer:    evidence.NewCommentScorer(),
		validator: evidence.NewValidator(matcher),
		grouper:   evidence.NewGrouper(cfg.KnownSections),
		tracer:    otel.Tracer(tracerName),
		logger:    logger.Named("ladder"),
	}
}

// Validator exposes the evidence validator for rejection counters
func (l *Ladder) Validator() *evidence.Validator {
	return l.validator
}

// ladderRun is the per-request state of one walk
type ladderRun struct {
	id      uuid.UUID
	req     *cookcard.ExtractionRequest
	tier    cookcard.Tier
	meta    outbound.MediaMetadata
	metaOK  bool
	sources []cookcard.SourceKind
	cost    costMeter
	reject  int
	minutes int64
	events  *shared.EventRecorder
}

func (r *ladderRun) addSource(kind cookcard.SourceKind) {
	for _, s := range r.sources {
		if s == kind {
			return
		}
	}
	r.sources = append(r.sources, kind)
}

func (r *ladderRun) fallback() *LadderResult {
	return &LadderResult{
		Metadata:      r.meta,
		MetadataOK:    r.metaOK,
		Method:        cookcard.MethodMetadataOnly,
		Sources:       append([]cookcard.SourceKind(nil), r.sources...),
		CostCents:     r.cost.Total(),
		RejectedCount: r.reject,
		VisionMinutes: r.minutes,
	}
}

// Run executes the ladder for an accepted request. It fails only when ctx is
// cancelled; every stage failure degrades to the next stage or the metadata-only card.
func (l *Ladder) Run(ctx context.Context, id uuid.UUID, req *cookcard.ExtractionRequest, tier cookcard.Tier, events *shared.EventRecorder) (*LadderResult, error) {
	if events == nil {
		events = &shared.EventRecorder{}
	}
	ctx, span := l.tracer.Start(ctx, "ladder.run", trace.WithAttributes(
		attribute.String("cookcard.extraction_id", id.String()),
		attribute.String("cookcard.platform", string(req.Platform())),
		attribute.String("cookcard.tier", string(tier)),
	))
	defer span.End()

	run := &ladderRun{id: id, req: req, tier: tier, cost: costMeter{rates: l.cfg.Costs}, events: events}

	l.fetchMetadata(ctx, run)
	if err := aborted(ctx); err != nil {
		return nil, err
	}

	if res := l.fromDescription(ctx, run); res != nil {
		return l.finish(span, res), nil
	}
	if err := aborted(ctx); err != nil {
		return nil, err
	}

	if res := l.fromComments(ctx, run); res != nil {
		return l.finish(span, res), nil
	}
	if err := aborted(ctx); err != nil {
		return nil, err
	}

	if res := l.fromTranscript(ctx, run); res != nil {
		return l.finish(span, res), nil
	}
	if err := aborted(ctx); err != nil {
		return nil, err
	}

	if res := l.fromVision(ctx, run); res != nil {
		return l.finish(span, res), nil
	}
	if err := aborted(ctx); err != nil {
		return nil, err
	}

	return l.finish(span, run.fallback()), nil
}

func (l *Ladder) finish(span trace.Span, res *LadderResult) *LadderResult {
	span.SetAttributes(
		attribute.String("cookcard.method", string(res.Method)),
		attribute.Int("cookcard.ingredients", len(res.Ingredients)),
		attribute.Int64("cookcard.cost_cents", res.CostCents),
	)
	return res
}

func aborted(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", cookcard.ErrExtractionAborted, context.Cause(ctx))
}

// L0: metadata never fails the request; the card falls back to the URL as title.
func (l *Ladder) fetchMetadata(ctx context.Context, run *ladderRun) {
	if l.collab.Metadata == nil {
		l.recordStage(run, StageMetadata, stageResult{outcome: OutcomeSkipped, reason: "no_fetcher"}, 0)
		return
	}
	l.runStage(ctx, run, StageMetadata, l.cfg.MetadataTimeout, func(ctx context.Context) stageResult {
		meta, err := l.collab.Metadata.FetchMetadata(ctx, run.req.NormalizedURL(), run.req.Platform())
		if err != nil {
			return stageFailed("fetch_failed", err)
		}
		run.meta = meta
		run.metaOK = true
		run.addSource(cookcard.SourceMetadata)
		return evidenceFound()
	})
}

// L1: the description is tried even when thin; a thin miss simply continues the ladder.
func (l *Ladder) fromDescription(ctx context.Context, run *ladderRun) *LadderResult {
	text := strings.TrimSpace(run.meta.Description)
	if text == "" {
		l.recordStage(run, StageDescription, noEvidence("empty"), 0)
		return nil
	}
	chars := utf8.RuneCountInString(text)
	src := cookcard.SourceEvidence{
		Text:  text,
		Kind:  cookcard.SourceDescription,
		Score: chars,
		Thin:  chars < l.cfg.DescriptionMinChars,
	}
	res := evidenceFound()
	if src.Thin {
		res.reason = "thin"
	}
	l.recordStage(run, StageDescription, res, 0)
	return l.tryText(ctx, run, src)
}

// L2: only the single best-scoring comment is handed on.
func (l *Ladder) fromComments(ctx context.Context, run *ladderRun) *LadderResult {
	if l.collab.Comments == nil {
		l.recordStage(run, StageComments, stageResult{outcome: OutcomeSkipped, reason: "no_fetcher"}, 0)
		return nil
	}

	var best cookcard.SourceEvidence
	res := l.runStage(ctx, run, StageComments, l.cfg.CommentTimeout, func(ctx context.Context) stageResult {
		comments, err := l.collab.Comments.FetchComments(ctx, run.req.NormalizedURL(), run.req.Platform(), l.cfg.CommentLimit)
		if err != nil {
			return stageFailed("fetch_failed", err)
		}
		if len(comments) == 0 {
			return noEvidence("no_comments")
		}
		src, ok := l.scorer.Best(comments)
		if !ok {
			return noEvidence("below_threshold")
		}
		best = src
		return evidenceFound()
	})
	if res.outcome != OutcomeEvidence {
		return nil
	}
	return l.tryText(ctx, run, best)
}

// L2.5: transcripts are only fetched for short-form videos of known length.
func (l *Ladder) fromTranscript(ctx context.Context, run *ladderRun) *LadderResult {
	switch {
	case !l.cfg.Flags.TranscriptEnabled:
		l.recordStage(run, StageTranscript, stageResult{outcome: OutcomeSkipped, reason: "disabled"}, 0)
		return nil
	case l.collab.Transcripts == nil:
		l.recordStage(run, StageTranscript, stageResult{outcome: OutcomeSkipped, reason: "no_fetcher"}, 0)
		return nil
	case run.meta.DurationSeconds <= 0:
		l.recordStage(run, StageTranscript, stageResult{outcome: OutcomeSkipped, reason: "unknown_duration"}, 0)
		return nil
	case time.Duration(run.meta.DurationSeconds)*time.Second > l.cfg.TranscriptMaxDuration:
		l.recordStage(run, StageTranscript, stageResult{outcome: OutcomeSkipped, reason: "not_short_form"}, 0)
		return nil
	}

	var src cookcard.SourceEvidence
	res := l.runStage(ctx, run, StageTranscript, l.cfg.TranscriptTimeout, func(ctx context.Context) stageResult {
		text, err := l.collab.Transcripts.FetchTranscript(ctx, run.req.NormalizedURL(), run.req.Platform())
		if err != nil {
			return stageFailed("fetch_failed", err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return noEvidence("empty")
		}
		src = cookcard.SourceEvidence{Text: text, Kind: cookcard.SourceTranscript, Score: utf8.RuneCountInString(text)}
		return evidenceFound()
	})
	if res.outcome != OutcomeEvidence {
		return nil
	}
	return l.tryText(ctx, run, src)
}

// L3: pre-gate, model call, evidence validation, grouping. Returns nil when nothing survives.
func (l *Ladder) tryText(ctx context.Context, run *ladderRun, src cookcard.SourceEvidence) *LadderResult {
	if err := ctx.Err(); err != nil {
		return nil
	}
	gate := l.preGate.Evaluate(src.Text)
	if !gate.Pass {
		l.recordStage(run, StageText, noEvidence("pregate_"+gate.Reason), 0)
		return nil
	}
	if l.collab.Text == nil {
		l.recordStage(run, StageText, stageResult{outcome: OutcomeSkipped, reason: "no_model"}, 0)
		return nil
	}
	run.addSource(src.Kind)

	var out *LadderResult
	l.runStage(ctx, run, StageText, l.cfg.TextModelTimeout, func(ctx context.Context) stageResult {
		extracted, err := l.collab.Text.ExtractFromText(ctx, src, run.meta.Title)
		run.cost.addText(extracted.Usage)
		if err != nil {
			return stageFailed("model_failed", err)
		}

		result := l.validator.Validate(extracted.Ingredients, src.Text)
		l.recordRejections(run, src.Kind, result)

		items := l.grouper.Group(result.Accepted)
		if len(items) == 0 {
			return noEvidence("no_validated_ingredients")
		}
		out = l.success(run, cookcard.MethodText, src.Kind, items, extracted.Instructions)
		return evidenceFound()
	})
	return out
}

// L4: the vision model is the last resort and the only budgeted stage.
func (l *Ladder) fromVision(ctx context.Context, run *ladderRun) *LadderResult {
	switch {
	case !l.cfg.Flags.VisionEnabled:
		l.recordStage(run, StageVision, stageResult{outcome: OutcomeSkipped, reason: "disabled"}, 0)
		return nil
	case l.collab.Vision == nil || l.budget == nil:
		l.recordStage(run, StageVision, stageResult{outcome: OutcomeSkipped, reason: "no_model"}, 0)
		return nil
	case !l.cfg.supportsVideo(run.req.Platform()):
		l.recordStage(run, StageVision, stageResult{outcome: OutcomeSkipped, reason: "platform_unsupported"}, 0)
		return nil
	}

	minutes, err := l.budget.Reserve(ctx, run.req.RequesterID, run.tier, run.meta.DurationSeconds)
	if err != nil {
		reason := "budget_exceeded"
		if errors.Is(err, cookcard.ErrUnknownDuration) {
			reason = "unknown_duration"
		}
		run.events.Record(cookcard.BudgetDeniedEvent{
			ExtractionID: run.id,
			RequesterID:  run.req.RequesterID,
			Minutes:      MediaMinutes(run.meta.DurationSeconds),
			Reason:       reason,
			At:           time.Now().UTC(),
		})
		l.recordStage(run, StageVision, stageResult{outcome: OutcomeSkipped, reason: reason}, 0)
		return nil
	}
	run.minutes += minutes
	run.addSource(cookcard.SourceVideoVision)

	var out *LadderResult
	l.runStage(ctx, run, StageVision, l.cfg.VisionTimeout, func(ctx context.Context) stageResult {
		extracted, err := l.collab.Vision.ExtractFromVideo(ctx, run.req.NormalizedURL(), run.meta.DurationSeconds)
		// Reserved minutes are spent whether or not the call succeeds.
		run.cost.addVision(extracted.Usage, minutes)
		if err != nil {
			return stageFailed("model_failed", err)
		}

		result := l.validator.ValidateVision(extracted.Ingredients, l.cfg.VisionMinConfidence)
		l.recordRejections(run, cookcard.SourceVideoVision, result)

		items := l.grouper.Group(result.Accepted)
		if len(items) == 0 {
			return noEvidence("no_confident_ingredients")
		}
		out = l.success(run, cookcard.MethodVision, cookcard.SourceVideoVision, items, extracted.Instructions)
		return evidenceFound()
	})
	return out
}

func (l *Ladder) recordRejections(run *ladderRun, kind cookcard.SourceKind, result evidence.ValidationResult) {
	if len(result.Rejected) == 0 {
		return
	}
	run.reject += len(result.Rejected)
	names := make([]string, 0, len(result.Rejected))
	for _, r := range result.Rejected {
		names = append(names, r.Candidate.Name)
	}
	run.events.Record(cookcard.EvidenceRejectedEvent{
		ExtractionID: run.id,
		Source:       kind,
		Rejected:     len(result.Rejected),
		Names:        names,
		At:           time.Now().UTC(),
	})
}

func (l *Ladder) success(run *ladderRun, method cookcard.Method, kind cookcard.SourceKind, items []cookcard.Ingredient, instructions []string) *LadderResult {
	res := run.fallback()
	res.Method = method
	res.EvidenceSource = kind
	res.Ingredients = items
	res.Instructions = cleanInstructions(instructions)
	res.Confidence = evidence.MeanConfidence(items)
	return res
}

func cleanInstructions(steps []string) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
