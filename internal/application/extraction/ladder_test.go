package extraction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/domain/evidence"
	"github.com/alchemorsel/cookcard/internal/domain/shared"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
	"github.com/alchemorsel/cookcard/test/testutils"
)

const (
	videoURL = "https://youtu.be/abc123"

	pastaDescription = "Easy garlic pasta!\n\nIngredients:\n- 2 tbsp olive oil\n- 3 cloves garlic\n- 200 g spaghetti\n\nBoil the pasta and fry the garlic."

	recipeComment = "Ingredients:\n- 2 cups flour\n- 1 tsp salt\n- 3 eggs\n- 1 cup milk\n- 2 tbsp butter"
)

func amount(v float64) *float64 { return &v }

func ofKind(kind cookcard.SourceKind) interface{} {
	return mock.MatchedBy(func(s cookcard.SourceEvidence) bool { return s.Kind == kind })
}

var textUsage = outbound.TokenUsage{Model: "test", InputTokens: 1000, OutputTokens: 200}

type ladderHarness struct {
	metadata    *testutils.MockMetadataFetcher
	comments    *testutils.MockCommentFetcher
	transcripts *testutils.MockTranscriptFetcher
	text        *testutils.MockTextModel
	vision      *testutils.MockVisionModel
	clock       *testClock
	budget      *BudgetLedger
	ladder      *Ladder
	events      *shared.EventRecorder
}

func newLadderHarness(t *testing.T, mutate func(*PipelineConfig)) *ladderHarness {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	h := &ladderHarness{
		metadata:    &testutils.MockMetadataFetcher{},
		comments:    &testutils.MockCommentFetcher{},
		transcripts: &testutils.MockTranscriptFetcher{},
		text:        &testutils.MockTextModel{},
		vision:      &testutils.MockVisionModel{},
		clock:       newTestClock(),
		events:      &shared.EventRecorder{},
	}
	h.budget = NewBudgetLedger(newTestStore(h.clock), cfg, h.clock.Now)
	h.ladder = NewLadder(cfg, Collaborators{
		Metadata:    h.metadata,
		Comments:    h.comments,
		Transcripts: h.transcripts,
		Text:        h.text,
		Vision:      h.vision,
	}, h.budget, zaptest.NewLogger(t))
	return h
}

func (h *ladderHarness) run(t *testing.T, ctx context.Context, tier cookcard.Tier) (*LadderResult, error) {
	t.Helper()
	req, err := cookcard.NewExtractionRequest(videoURL, "user-a", "", false)
	require.NoError(t, err)
	return h.ladder.Run(ctx, uuid.New(), &req, tier, h.events)
}

func (h *ladderHarness) withMetadata(description string, duration int) {
	h.metadata.On("FetchMetadata", mock.Anything, mock.Anything, cookcard.PlatformYouTube).
		Return(outbound.MediaMetadata{Title: "Garlic pasta", Creator: "chef", Description: description, DurationSeconds: duration}, nil)
}

func stageEvents(events []shared.DomainEvent, stage string) []cookcard.StageFinishedEvent {
	var out []cookcard.StageFinishedEvent
	for _, ev := range events {
		if sf, ok := ev.(cookcard.StageFinishedEvent); ok && sf.Stage == stage {
			out = append(out, sf)
		}
	}
	return out
}

func TestLadder_DescriptionWins(t *testing.T) {
	h := newLadderHarness(t, nil)
	h.withMetadata(pastaDescription, 600)
	h.text.On("ExtractFromText", mock.Anything, ofKind(cookcard.SourceDescription), "Garlic pasta").
		Return(outbound.ModelExtraction{
			Ingredients: []evidence.Candidate{
				{Name: "olive oil", Amount: amount(2), Unit: "tbsp", EvidencePhrase: "2 tbsp olive oil"},
				{Name: "garlic", Amount: amount(3), Unit: "cloves", EvidencePhrase: "3 cloves garlic"},
				{Name: "spaghetti", Amount: amount(200), Unit: "g", EvidencePhrase: "200 g spaghetti"},
				{Name: "saffron", EvidencePhrase: "pinch of saffron"},
			},
			Instructions: []string{"Boil the pasta.", "  ", "Fry the garlic."},
			Usage:        textUsage,
		}, nil).Once()

	res, err := h.run(t, context.Background(), cookcard.TierFree)
	require.NoError(t, err)

	assert.Equal(t, cookcard.MethodText, res.Method)
	assert.Equal(t, cookcard.SourceDescription, res.EvidenceSource)
	assert.Equal(t, []cookcard.SourceKind{cookcard.SourceMetadata, cookcard.SourceDescription}, res.Sources)
	require.Len(t, res.Ingredients, 3)
	assert.Equal(t, 1, res.RejectedCount)
	assert.Equal(t, []string{"Boil the pasta.", "Fry the garlic."}, res.Instructions)
	assert.Equal(t, int64(1), res.CostCents)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
	assert.Equal(t, int64(1), h.ladder.Validator().Rejections())

	h.comments.AssertNotCalled(t, "FetchComments", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	h.vision.AssertNotCalled(t, "ExtractFromVideo", mock.Anything, mock.Anything, mock.Anything)

	var rejected []cookcard.EvidenceRejectedEvent
	for _, ev := range h.events.Drain() {
		if e, ok := ev.(cookcard.EvidenceRejectedEvent); ok {
			rejected = append(rejected, e)
		}
	}
	require.Len(t, rejected, 1)
	assert.Equal(t, []string{"saffron"}, rejected[0].Names)
}

func TestLadder_ThinDescriptionFallsThroughToComments(t *testing.T) {
	// A 23-character hashtag caption never reaches the text model.
	h := newLadderHarness(t, nil)
	h.withMetadata("Check out my food! #yum", 600)
	h.comments.On("FetchComments", mock.Anything, mock.Anything, cookcard.PlatformYouTube, 50).
		Return([]evidence.Comment{
			{Text: "so good"},
			{Text: recipeComment, Likes: 5},
		}, nil)
	h.text.On("ExtractFromText", mock.Anything, ofKind(cookcard.SourceComment), mock.Anything).
		Return(outbound.ModelExtraction{
			Ingredients: []evidence.Candidate{
				{Name: "flour", Amount: amount(2), Unit: "cups", EvidencePhrase: "2 cups flour"},
				{Name: "eggs", Amount: amount(3), EvidencePhrase: "3 eggs"},
			},
			Usage: textUsage,
		}, nil).Once()

	res, err := h.run(t, context.Background(), cookcard.TierFree)
	require.NoError(t, err)

	assert.Equal(t, cookcard.SourceComment, res.EvidenceSource)
	assert.Equal(t, []cookcard.SourceKind{cookcard.SourceMetadata, cookcard.SourceComment}, res.Sources)
	assert.Len(t, res.Ingredients, 2)
	h.text.AssertNumberOfCalls(t, "ExtractFromText", 1)

	textStages := stageEvents(h.events.Drain(), StageText)
	require.Len(t, textStages, 2)
	assert.Equal(t, "pregate_"+evidence.ReasonTooShort, textStages[0].Reason)
	assert.Equal(t, OutcomeEvidence, textStages[1].Outcome)
}

func TestLadder_GroupsSectionHeaders(t *testing.T) {
	source := "Ingredients:\nFor the sauce:\n- 1 cup tomato passata\n- 1 tsp salt\nFor the pasta:\n- 200 g penne"
	h := newLadderHarness(t, nil)
	h.withMetadata(source, 0)
	h.text.On("ExtractFromText", mock.Anything, mock.Anything, mock.Anything).
		Return(outbound.ModelExtraction{
			Ingredients: []evidence.Candidate{
				{Name: "For the sauce", EvidencePhrase: "For the sauce"},
				{Name: "tomato passata", Amount: amount(1), Unit: "cup", EvidencePhrase: "1 cup tomato passata"},
				{Name: "salt", Amount: amount(1), Unit: "tsp", EvidencePhrase: "1 tsp salt"},
				{Name: "For the pasta", EvidencePhrase: "For the pasta"},
				{Name: "penne", Amount: amount(200), Unit: "g", EvidencePhrase: "200 g penne"},
			},
			Usage: textUsage,
		}, nil)

	res, err := h.run(t, context.Background(), cookcard.TierFree)
	require.NoError(t, err)

	require.Len(t, res.Ingredients, 3)
	assert.Equal(t, "For the sauce", res.Ingredients[0].Group)
	assert.Equal(t, "For the sauce", res.Ingredients[1].Group)
	assert.Equal(t, "penne", res.Ingredients[2].Name)
	assert.Equal(t, "For the pasta", res.Ingredients[2].Group)
}

func TestLadder_TranscriptForShortForm(t *testing.T) {
	transcript := "okay today we need 2 cups rice and 1 tbsp soy sauce, fry it all together"
	h := newLadderHarness(t, nil)
	h.withMetadata("", 45)
	h.comments.On("FetchComments", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	h.transcripts.On("FetchTranscript", mock.Anything, mock.Anything, cookcard.PlatformYouTube).Return(transcript, nil)
	h.text.On("ExtractFromText", mock.Anything, ofKind(cookcard.SourceTranscript), mock.Anything).
		Return(outbound.ModelExtraction{
			Ingredients: []evidence.Candidate{
				{Name: "rice", Amount: amount(2), Unit: "cups", EvidencePhrase: "2 cups rice"},
				{Name: "soy sauce", Amount: amount(1), Unit: "tbsp", EvidencePhrase: "1 tbsp soy sauce"},
			},
			Usage: textUsage,
		}, nil)

	res, err := h.run(t, context.Background(), cookcard.TierFree)
	require.NoError(t, err)
	assert.Equal(t, cookcard.SourceTranscript, res.EvidenceSource)
	assert.Len(t, res.Ingredients, 2)
}

func TestLadder_TranscriptSkippedForLongVideos(t *testing.T) {
	h := newLadderHarness(t, nil)
	h.withMetadata("", 600)
	h.comments.On("FetchComments", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	res, err := h.run(t, context.Background(), cookcard.TierFree)
	require.NoError(t, err)

	assert.Equal(t, cookcard.MethodMetadataOnly, res.Method)
	h.transcripts.AssertNotCalled(t, "FetchTranscript", mock.Anything, mock.Anything, mock.Anything)
	stages := stageEvents(h.events.Drain(), StageTranscript)
	require.Len(t, stages, 1)
	assert.Equal(t, "not_short_form", stages[0].Reason)
}

func TestLadder_VisionAsLastResort(t *testing.T) {
	h := newLadderHarness(t, nil)
	h.withMetadata("", 120)
	h.comments.On("FetchComments", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	h.transcripts.On("FetchTranscript", mock.Anything, mock.Anything, mock.Anything).Return("", nil)
	h.vision.On("ExtractFromVideo", mock.Anything, "https://youtube.com/watch?v=abc123", 120).
		Return(outbound.ModelExtraction{
			Ingredients: []evidence.Candidate{
				{Name: "eggs", Confidence: 0.9},
				{Name: "spinach", Confidence: 0.3},
			},
			Usage: outbound.TokenUsage{InputTokens: 1000, OutputTokens: 100},
		}, nil)

	res, err := h.run(t, context.Background(), cookcard.TierPlus)
	require.NoError(t, err)

	assert.Equal(t, cookcard.MethodVision, res.Method)
	assert.Equal(t, cookcard.SourceVideoVision, res.EvidenceSource)
	assert.Equal(t, []cookcard.SourceKind{cookcard.SourceMetadata, cookcard.SourceVideoVision}, res.Sources)
	require.Len(t, res.Ingredients, 1)
	assert.Equal(t, "eggs", res.Ingredients[0].Name)
	assert.Equal(t, 1, res.RejectedCount)
	assert.Equal(t, int64(2), res.VisionMinutes)
	// 0.3 + 0.15 token cents + 2 minutes at 2 cents
	assert.Equal(t, int64(5), res.CostCents)

	_, user, err := h.budget.Usage(context.Background(), "user-a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), user)
}

func TestLadder_ZeroVisionConfidenceFloorKeepsEveryCandidate(t *testing.T) {
	h := newLadderHarness(t, func(c *PipelineConfig) { c.VisionMinConfidence = 0 })
	h.withMetadata("", 120)
	h.comments.On("FetchComments", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	h.transcripts.On("FetchTranscript", mock.Anything, mock.Anything, mock.Anything).Return("", nil)
	h.vision.On("ExtractFromVideo", mock.Anything, mock.Anything, 120).
		Return(outbound.ModelExtraction{
			Ingredients: []evidence.Candidate{
				{Name: "eggs", Confidence: 0.9},
				{Name: "spinach", Confidence: 0.05},
			},
		}, nil)

	res, err := h.run(t, context.Background(), cookcard.TierPlus)
	require.NoError(t, err)

	assert.Equal(t, cookcard.MethodVision, res.Method)
	require.Len(t, res.Ingredients, 2)
	assert.Equal(t, 0, res.RejectedCount)
}

func TestPipelineConfig_NegativeVisionConfidenceMeansDefault(t *testing.T) {
	cfg := PipelineConfig{VisionMinConfidence: -1}.withDefaults()
	assert.InDelta(t, DefaultPipelineConfig().VisionMinConfidence, cfg.VisionMinConfidence, 1e-9)

	cfg = PipelineConfig{VisionMinConfidence: 0}.withDefaults()
	assert.Zero(t, cfg.VisionMinConfidence)
}

func TestLadder_VisionDeniedByBudget(t *testing.T) {
	h := newLadderHarness(t, nil)
	h.withMetadata("", 600)
	h.comments.On("FetchComments", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	res, err := h.run(t, context.Background(), cookcard.TierFree)
	require.NoError(t, err)

	assert.Equal(t, cookcard.MethodMetadataOnly, res.Method)
	assert.Equal(t, "Garlic pasta", res.Metadata.Title)
	h.vision.AssertNotCalled(t, "ExtractFromVideo", mock.Anything, mock.Anything, mock.Anything)

	var denied []cookcard.BudgetDeniedEvent
	for _, ev := range h.events.Drain() {
		if e, ok := ev.(cookcard.BudgetDeniedEvent); ok {
			denied = append(denied, e)
		}
	}
	require.Len(t, denied, 1)
	assert.Equal(t, int64(10), denied[0].Minutes)
	assert.Equal(t, "budget_exceeded", denied[0].Reason)
}

func TestLadder_FailedVisionCallIsStillCharged(t *testing.T) {
	h := newLadderHarness(t, nil)
	h.withMetadata("", 240)
	h.comments.On("FetchComments", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	h.vision.On("ExtractFromVideo", mock.Anything, mock.Anything, 240).
		Return(outbound.ModelExtraction{}, errors.New("upstream 500"))

	res, err := h.run(t, context.Background(), cookcard.TierPro)
	require.NoError(t, err)

	assert.Equal(t, cookcard.MethodMetadataOnly, res.Method)
	assert.Equal(t, int64(8), res.CostCents)
	_, user, err := h.budget.Usage(context.Background(), "user-a")
	require.NoError(t, err)
	assert.Equal(t, int64(4), user, "reserved minutes are not refunded")
}

func TestLadder_MetadataFailureStillProducesFallback(t *testing.T) {
	h := newLadderHarness(t, func(c *PipelineConfig) { c.Flags.VisionEnabled = false })
	h.metadata.On("FetchMetadata", mock.Anything, mock.Anything, mock.Anything).
		Return(outbound.MediaMetadata{}, errors.New("oembed 404"))
	h.comments.On("FetchComments", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("comments disabled"))

	res, err := h.run(t, context.Background(), cookcard.TierFree)
	require.NoError(t, err)

	assert.Equal(t, cookcard.MethodMetadataOnly, res.Method)
	assert.False(t, res.MetadataOK)
	assert.Empty(t, res.Sources)
	assert.Zero(t, res.CostCents)
}

func TestLadder_StageTimeoutMovesOn(t *testing.T) {
	h := newLadderHarness(t, func(c *PipelineConfig) {
		c.TextModelTimeout = 20 * time.Millisecond
		c.Flags.VisionEnabled = false
	})
	h.withMetadata(pastaDescription, 600)
	h.text.On("ExtractFromText", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(outbound.ModelExtraction{}, context.DeadlineExceeded)
	h.comments.On("FetchComments", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	res, err := h.run(t, context.Background(), cookcard.TierFree)
	require.NoError(t, err)
	assert.Equal(t, cookcard.MethodMetadataOnly, res.Method)

	stages := stageEvents(h.events.Drain(), StageText)
	require.Len(t, stages, 1)
	assert.Equal(t, OutcomeFailed, stages[0].Outcome)
	assert.Equal(t, "timeout", stages[0].Reason)
}

func TestLadder_CallerCancellationAborts(t *testing.T) {
	h := newLadderHarness(t, nil)
	h.withMetadata(pastaDescription, 600)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.text.On("ExtractFromText", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(outbound.ModelExtraction{}, context.Canceled)

	_, err := h.run(t, ctx, cookcard.TierFree)
	assert.ErrorIs(t, err, cookcard.ErrExtractionAborted)
	h.comments.AssertNotCalled(t, "FetchComments", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLadder_FuzzyMatchingIsOptIn(t *testing.T) {
	source := "Ingredients: two cups of rice, then a tbsp of soy sauce"
	candidates := []evidence.Candidate{{Name: "rice", EvidencePhrase: "cups of white rice"}}

	strict := newLadderHarness(t, func(c *PipelineConfig) { c.Flags.VisionEnabled = false })
	strict.withMetadata(source, 600)
	strict.text.On("ExtractFromText", mock.Anything, mock.Anything, mock.Anything).
		Return(outbound.ModelExtraction{Ingredients: candidates, Usage: textUsage}, nil)
	strict.comments.On("FetchComments", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	res, err := strict.run(t, context.Background(), cookcard.TierFree)
	require.NoError(t, err)
	assert.Equal(t, cookcard.MethodMetadataOnly, res.Method)

	fuzzy := newLadderHarness(t, func(c *PipelineConfig) {
		c.Flags.VisionEnabled = false
		c.Flags.FuzzyEvidence = true
		c.Flags.FuzzyMinOverlap = 0.6
	})
	fuzzy.withMetadata(source, 600)
	fuzzy.text.On("ExtractFromText", mock.Anything, mock.Anything, mock.Anything).
		Return(outbound.ModelExtraction{Ingredients: candidates, Usage: textUsage}, nil)

	res, err = fuzzy.run(t, context.Background(), cookcard.TierFree)
	require.NoError(t, err)
	assert.Equal(t, cookcard.MethodText, res.Method)
}
