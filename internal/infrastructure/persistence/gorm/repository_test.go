package gorm_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	gormrepo "github.com/alchemorsel/cookcard/internal/infrastructure/persistence/gorm"
	"github.com/alchemorsel/cookcard/internal/infrastructure/persistence/sqlite"
	"github.com/alchemorsel/cookcard/test/testutils"
)

type RepositorySuite struct {
	suite.Suite
	cards   *gormrepo.CookCardRepository
	tiers   *gormrepo.TierRepository
	factory *testutils.Factory
	ctx     context.Context
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupTest() {
	db := testutils.NewSQLiteDB(s.T())
	s.Require().NoError(sqlite.Migrate(db))
	s.cards = gormrepo.NewCookCardRepository(db)
	s.tiers = gormrepo.NewTierRepository(db)
	s.factory = testutils.NewFactory(42)
	s.ctx = context.Background()
}

func (s *RepositorySuite) TestSaveAndFind() {
	card := s.factory.Card("https://youtube.com/watch?v=abc123", s.factory.Lines(3))

	s.Require().NoError(s.cards.Save(s.ctx, card, "user-a", "family"))

	stored, err := s.cards.FindByID(s.ctx, card.ID())
	s.Require().NoError(err)
	s.Equal("user-a", stored.RequesterID)
	s.Equal("family", stored.GroupID)
	s.Equal(card.Title(), stored.Card.Title())
	s.Equal(card.SourceURL(), stored.Card.SourceURL())
	s.Equal(card.Ingredients(), stored.Card.Ingredients())
	s.Equal(card.Instructions(), stored.Card.Instructions())
	s.Equal(card.Extraction(), stored.Card.Extraction())
	s.WithinDuration(card.CreatedAt(), stored.Card.CreatedAt(), time.Millisecond)
}

func (s *RepositorySuite) TestSaveIsIdempotent() {
	card := s.factory.Card("https://youtube.com/watch?v=abc123", s.factory.Lines(2))

	s.Require().NoError(s.cards.Save(s.ctx, card, "user-a", "family"))
	s.Require().NoError(s.cards.Save(s.ctx, card, "user-b", "other"))

	stored, err := s.cards.FindByID(s.ctx, card.ID())
	s.Require().NoError(err)
	s.Equal("user-a", stored.RequesterID)
}

func (s *RepositorySuite) TestFindMissing() {
	_, err := s.cards.FindByID(s.ctx, uuid.New())
	s.ErrorIs(err, cookcard.ErrNotFound)
}

func (s *RepositorySuite) TestListByGroupNewestFirst() {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		card := cookcard.NewCookCard(cookcard.CardParams{
			Title:     "Card",
			SourceURL: "https://youtube.com/watch?v=" + uuid.NewString(),
			Extraction: cookcard.Extraction{
				Method:          cookcard.MethodMetadataOnly,
				PipelineVersion: "test",
			},
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		ids = append(ids, card.ID())
		s.Require().NoError(s.cards.Save(s.ctx, card, "user-a", "family"))
	}
	other := s.factory.Card("https://youtube.com/watch?v=zzz", nil)
	s.Require().NoError(s.cards.Save(s.ctx, other, "user-a", "elsewhere"))

	list, err := s.cards.ListByGroup(s.ctx, "family", 2)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(ids[2], list[0].Card.ID())
	s.Equal(ids[1], list[1].Card.ID())

	empty, err := s.cards.ListByGroup(s.ctx, "nobody", 10)
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *RepositorySuite) TestTierAssignment() {
	tier, err := s.tiers.ResolveTier(s.ctx, "new-user")
	s.Require().NoError(err)
	s.Equal(cookcard.TierFree, tier)

	s.Require().NoError(s.tiers.AssignTier(s.ctx, "user-a", cookcard.TierPlus))
	s.Require().NoError(s.tiers.AssignTier(s.ctx, "user-a", cookcard.TierPro))

	tier, err = s.tiers.ResolveTier(s.ctx, "user-a")
	s.Require().NoError(err)
	s.Equal(cookcard.TierPro, tier)

	s.ErrorIs(s.tiers.AssignTier(s.ctx, "user-a", cookcard.Tier("gold")), cookcard.ErrUnknownTier)
}

func TestIngredientListRoundTrip(t *testing.T) {
	amount := 1.5
	list := gormrepo.IngredientList{{Name: "flour", Amount: &amount, Unit: "cups", EvidencePhrase: "1.5 cups flour", Confidence: 1}}

	v, err := list.Value()
	require.NoError(t, err)

	var back gormrepo.IngredientList
	require.NoError(t, back.Scan(v))
	assert.Equal(t, list, back)

	require.NoError(t, back.Scan(nil))
	assert.Empty(t, back)
	assert.Error(t, back.Scan(42))
}
