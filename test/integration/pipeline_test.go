//go:build integration

// Package integration runs the extraction pipeline against real Redis and Postgres containers
package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/alchemorsel/cookcard/internal/application/extraction"
	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/infrastructure/cache"
	gormRepo "github.com/alchemorsel/cookcard/internal/infrastructure/persistence/gorm"
	"github.com/alchemorsel/cookcard/internal/infrastructure/persistence/migrations"
	redisStore "github.com/alchemorsel/cookcard/internal/infrastructure/persistence/redis"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
	"github.com/alchemorsel/cookcard/test/testutils"
)

func newRedisStore(t *testing.T) outbound.CounterStore {
	t.Helper()
	redis := testutils.SetupTestRedis(t)
	client := cache.NewRedisClientFrom(goredis.NewClient(&goredis.Options{Addr: redis.Addr}), zaptest.NewLogger(t))
	t.Cleanup(func() { _ = client.Close() })
	return redisStore.NewCounterStore(client, zaptest.NewLogger(t))
}

type pipeline struct {
	svc  *extraction.Service
	text *testutils.MockTextModel
}

func newPipeline(t *testing.T, store outbound.CounterStore, cards outbound.CookCardRepository, limits cookcard.TierLimits) *pipeline {
	t.Helper()
	f := testutils.NewFactory(42)
	lines := f.Lines(4)

	metadata := &testutils.MockMetadataFetcher{}
	metadata.On("FetchMetadata", mock.Anything, mock.Anything, mock.Anything).
		Return(f.Metadata(f.RecipeText(lines), 480), nil)
	text := &testutils.MockTextModel{}
	text.On("ExtractFromText", mock.Anything, mock.Anything, mock.Anything).
		Return(f.Extraction(f.Candidates(lines)), nil)
	tiers := &testutils.MockTierResolver{}
	tiers.On("ResolveTier", mock.Anything, mock.Anything).Return(cookcard.TierPlus, nil)

	cfg := extraction.DefaultPipelineConfig()
	cfg.Tiers = map[cookcard.Tier]cookcard.TierLimits{cookcard.TierPlus: limits}
	cfg.Flags.PersistCards = cards != nil

	svc := extraction.NewService(cfg, extraction.Dependencies{
		Store: store,
		Tiers: tiers,
		Cards: cards,
		Collaborators: extraction.Collaborators{
			Metadata: metadata,
			Text:     text,
		},
	}, zaptest.NewLogger(t))
	return &pipeline{svc: svc, text: text}
}

func TestPipeline_RedisCacheAndLedger(t *testing.T) {
	store := newRedisStore(t)
	p := newPipeline(t, store, nil, cookcard.TierLimits{MonthlyExtractions: 50, HourlyRequests: 50})
	ctx := context.Background()
	f := testutils.NewFactory(1)
	url := f.YouTubeURL()

	first, err := p.svc.Extract(ctx, f.Request(url))
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, cookcard.MethodText, first.Card.Extraction().Method)
	assert.Len(t, first.Card.Ingredients(), 4)

	second, err := p.svc.Extract(ctx, f.Request(url))
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Card.ID(), second.Card.ID())
	assert.Zero(t, second.Card.Extraction().CostCents)
	p.text.AssertNumberOfCalls(t, "ExtractFromText", 1)
}

func TestPipeline_ConcurrentReservationsNeverOvershoot(t *testing.T) {
	const quota = 5
	store := newRedisStore(t)
	p := newPipeline(t, store, nil, cookcard.TierLimits{MonthlyExtractions: quota, HourlyRequests: 100})
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		ok       atomic.Int32
		exceeded atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := cookcard.NewExtractionRequest(fmt.Sprintf("https://youtu.be/video%02d", i), "shared-user", "", true)
			if !assert.NoError(t, err) {
				return
			}
			_, err = p.svc.Extract(ctx, req)
			var qe *cookcard.QuotaExceededError
			switch {
			case err == nil:
				ok.Add(1)
			case errors.As(err, &qe):
				exceeded.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, quota, ok.Load())
	assert.EqualValues(t, 20-quota, exceeded.Load())

	status, err := p.svc.QuotaStatus(ctx, "shared-user")
	require.NoError(t, err)
	assert.EqualValues(t, quota, status.Quota.ExtractionsThisPeriod)
}

func TestPipeline_HourlyWindowOnRedis(t *testing.T) {
	store := newRedisStore(t)
	p := newPipeline(t, store, nil, cookcard.TierLimits{MonthlyExtractions: 100, HourlyRequests: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		req, err := cookcard.NewExtractionRequest(fmt.Sprintf("https://youtu.be/hour%d", i), "u-rate", "", false)
		require.NoError(t, err)
		_, err = p.svc.Extract(ctx, req)
		require.NoError(t, err)
	}

	req, err := cookcard.NewExtractionRequest("https://youtu.be/hour9", "u-rate", "", false)
	require.NoError(t, err)
	_, err = p.svc.Extract(ctx, req)
	var limited *cookcard.RateLimitedError
	require.ErrorAs(t, err, &limited)
	assert.Positive(t, limited.RetryAfterSeconds)
	assert.LessOrEqual(t, limited.RetryAfterSeconds, int64(time.Hour/time.Second))
}

func TestPipeline_PersistsCardsInPostgres(t *testing.T) {
	pg := testutils.SetupTestPostgres(t)
	repo := gormRepo.NewCookCardRepository(pg.DB)

	store := newRedisStore(t)
	p := newPipeline(t, store, repo, cookcard.TierLimits{MonthlyExtractions: 10, HourlyRequests: 10})
	ctx := context.Background()

	req, err := cookcard.NewExtractionRequest("https://youtu.be/persisted1", "u-db", "supper-club", false)
	require.NoError(t, err)
	res, err := p.svc.Extract(ctx, req)
	require.NoError(t, err)

	stored, err := p.svc.GetCard(ctx, res.Card.ID())
	require.NoError(t, err)
	assert.Equal(t, "supper-club", stored.GroupID)
	assert.Equal(t, res.Card.Ingredients(), stored.Card.Ingredients())

	group, err := p.svc.ListGroupCards(ctx, "supper-club", 0)
	require.NoError(t, err)
	require.Len(t, group, 1)
	assert.Equal(t, res.Card.ID(), group[0].Card.ID())
}

func TestMigrations_RollBackAndReapply(t *testing.T) {
	pg := testutils.SetupTestPostgres(t)

	m, err := migrations.Open(pg.DSN, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer m.Close()

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	require.NoError(t, m.Up(), "re-running an applied schema is a no-op")

	require.NoError(t, m.Down())
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, pg.DB.Migrator().HasTable("requester_tiers"))
	assert.True(t, pg.DB.Migrator().HasTable("cookcards"))

	require.NoError(t, m.Up())
	assert.True(t, pg.DB.Migrator().HasTable("requester_tiers"))

	tiers := gormRepo.NewTierRepository(pg.DB)
	require.NoError(t, tiers.AssignTier(context.Background(), "u-migrated", cookcard.TierPro))
	tier, err := tiers.ResolveTier(context.Background(), "u-migrated")
	require.NoError(t, err)
	assert.Equal(t, cookcard.TierPro, tier)
}
