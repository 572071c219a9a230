// Package testutils provides mock implementations for testing
package testutils

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/domain/evidence"
	"github.com/alchemorsel/cookcard/internal/ports/inbound"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

// MockMetadataFetcher provides a mock implementation of MetadataFetcher
type MockMetadataFetcher struct {
	mock.Mock
}

// FetchMetadata returns the configured metadata
func (m *MockMetadataFetcher) FetchMetadata(ctx context.Context, sourceURL string, platform cookcard.Platform) (outbound.MediaMetadata, error) {
	args := m.Called(ctx, sourceURL, platform)
	return args.Get(0).(outbound.MediaMetadata), args.Error(1)
}

// MockCommentFetcher provides a mock implementation of CommentFetcher
type MockCommentFetcher struct {
	mock.Mock
}

// FetchComments returns the configured comments
func (m *MockCommentFetcher) FetchComments(ctx context.Context, sourceURL string, platform cookcard.Platform, limit int) ([]evidence.Comment, error) {
	args := m.Called(ctx, sourceURL, platform, limit)
	comments, _ := args.Get(0).([]evidence.Comment)
	return comments, args.Error(1)
}

// MockTranscriptFetcher provides a mock implementation of TranscriptFetcher
type MockTranscriptFetcher struct {
	mock.Mock
}

// FetchTranscript returns the configured transcript
func (m *MockTranscriptFetcher) FetchTranscript(ctx context.Context, sourceURL string, platform cookcard.Platform) (string, error) {
	args := m.Called(ctx, sourceURL, platform)
	return args.String(0), args.Error(1)
}

// MockTextModel provides a mock implementation of TextModel
type MockTextModel struct {
	mock.Mock
}

// ExtractFromText returns the configured extraction
func (m *MockTextModel) ExtractFromText(ctx context.Context, source cookcard.SourceEvidence, title string) (outbound.ModelExtraction, error) {
	args := m.Called(ctx, source, title)
	return args.Get(0).(outbound.ModelExtraction), args.Error(1)
}

// MockVisionModel provides a mock implementation of VisionModel
type MockVisionModel struct {
	mock.Mock
}

// ExtractFromVideo returns the configured extraction
func (m *MockVisionModel) ExtractFromVideo(ctx context.Context, sourceURL string, durationSeconds int) (outbound.ModelExtraction, error) {
	args := m.Called(ctx, sourceURL, durationSeconds)
	return args.Get(0).(outbound.ModelExtraction), args.Error(1)
}

// MockTierResolver provides a mock implementation of TierResolver
type MockTierResolver struct {
	mock.Mock
}

// ResolveTier returns the configured tier
func (m *MockTierResolver) ResolveTier(ctx context.Context, requesterID string) (cookcard.Tier, error) {
	args := m.Called(ctx, requesterID)
	return args.Get(0).(cookcard.Tier), args.Error(1)
}

// MockCookCardRepository provides a mock implementation of CookCardRepository
type MockCookCardRepository struct {
	mock.Mock
}

// Save records the card
func (m *MockCookCardRepository) Save(ctx context.Context, card *cookcard.CookCard, requesterID, groupID string) error {
	args := m.Called(ctx, card, requesterID, groupID)
	return args.Error(0)
}

// FindByID returns the configured card
func (m *MockCookCardRepository) FindByID(ctx context.Context, id uuid.UUID) (*outbound.StoredCard, error) {
	args := m.Called(ctx, id)
	stored, _ := args.Get(0).(*outbound.StoredCard)
	return stored, args.Error(1)
}

// ListByGroup returns the configured cards
func (m *MockCookCardRepository) ListByGroup(ctx context.Context, groupID string, limit int) ([]*outbound.StoredCard, error) {
	args := m.Called(ctx, groupID, limit)
	cards, _ := args.Get(0).([]*outbound.StoredCard)
	return cards, args.Error(1)
}

// MockExtractionService provides a mock implementation of ExtractionService and CardQueryService
type MockExtractionService struct {
	mock.Mock
}

// Extract returns the configured result
func (m *MockExtractionService) Extract(ctx context.Context, req cookcard.ExtractionRequest) (*inbound.ExtractionResult, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(*inbound.ExtractionResult)
	return result, args.Error(1)
}

// QuotaStatus returns the configured status
func (m *MockExtractionService) QuotaStatus(ctx context.Context, requesterID string) (*cookcard.QuotaStatus, error) {
	args := m.Called(ctx, requesterID)
	status, _ := args.Get(0).(*cookcard.QuotaStatus)
	return status, args.Error(1)
}

// GetCard returns the configured card
func (m *MockExtractionService) GetCard(ctx context.Context, id uuid.UUID) (*outbound.StoredCard, error) {
	args := m.Called(ctx, id)
	stored, _ := args.Get(0).(*outbound.StoredCard)
	return stored, args.Error(1)
}

// ListGroupCards returns the configured cards
func (m *MockExtractionService) ListGroupCards(ctx context.Context, groupID string, limit int) ([]*outbound.StoredCard, error) {
	args := m.Called(ctx, groupID, limit)
	cards, _ := args.Get(0).([]*outbound.StoredCard)
	return cards, args.Error(1)
}

// EmittedEvent is one call to a TelemetryEmitter
type EmittedEvent struct {
	Type   string
	Fields map[string]any
}

// RecordingEmitter is a TelemetryEmitter that keeps every event for inspection
type RecordingEmitter struct {
	mu     sync.Mutex
	events []EmittedEvent
}

// Emit records the event
func (r *RecordingEmitter) Emit(ctx context.Context, eventType string, fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, EmittedEvent{Type: eventType, Fields: fields})
}

// Events returns a copy of the recorded events
func (r *RecordingEmitter) Events() []EmittedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EmittedEvent(nil), r.events...)
}

// Types returns the recorded event types in order
func (r *RecordingEmitter) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.events))
	for i, ev := range r.events {
		types[i] = ev.Type
	}
	return types
}

// Find returns the first event of the given type
func (r *RecordingEmitter) Find(eventType string) (EmittedEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Type == eventType {
			return ev, true
		}
	}
	return EmittedEvent{}, false
}
