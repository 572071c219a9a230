package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/domain/shared"
	"github.com/alchemorsel/cookcard/internal/ports/inbound"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

// Dependencies are the ports the service is built from. Tiers, Cards and Emitter are optional.
type Dependencies struct {
	Store         outbound.CounterStore
	Tiers         outbound.TierResolver
	Cards         outbound.CookCardRepository
	Emitter       outbound.TelemetryEmitter
	Collaborators Collaborators
	Clock         Clock
}

// Service implements the extraction use cases
type Service struct {
	cfg     PipelineConfig
	cache   *CardCache
	quota   *QuotaLedger
	budget  *BudgetLedger
	ladder  *Ladder
	tiers   outbound.TierResolver
	cards   outbound.CookCardRepository
	emitter outbound.TelemetryEmitter
	now     Clock
	logger  *zap.Logger
}

var (
	_ inbound.ExtractionService = (*Service)(nil)
	_ inbound.CardQueryService  = (*Service)(nil)
)

// NewService creates the extraction service
func NewService(cfg PipelineConfig, deps Dependencies, logger *zap.Logger) *Service {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	budget := NewBudgetLedger(deps.Store, cfg, now)
	return &Service{
		cfg:     cfg,
		cache:   NewCardCache(deps.Store, cfg.Version, cfg.CacheTTL, cfg.CacheFallbackTTL),
		quota:   NewQuotaLedger(deps.Store, cfg, now),
		budget:  budget,
		ladder:  NewLadder(cfg, deps.Collaborators, budget, logger),
		tiers:   deps.Tiers,
		cards:   deps.Cards,
		emitter: deps.Emitter,
		now:     now,
		logger:  logger.Named("extraction-service"),
	}
}

// Extract turns a share URL into a CookCard
func (s *Service) Extract(ctx context.Context, req cookcard.ExtractionRequest) (*inbound.ExtractionResult, error) {
	if !req.Accepted() {
		if err := req.Accept(); err != nil {
			return nil, err
		}
	}

	start := s.now()
	events := &shared.EventRecorder{}
	defer s.emit(context.WithoutCancel(ctx), events)

	url := req.NormalizedURL()
	if !req.BypassCache {
		card, hit, err := s.cache.Lookup(ctx, url)
		if err != nil {
			s.logger.Warn("Cache lookup failed, continuing as miss",
				zap.String("url", url),
				zap.Error(err),
			)
		}
		if hit {
			events.Record(cookcard.CacheHitEvent{RequesterID: req.RequesterID, CardID: card.ID(), At: s.now().UTC()})
			s.logger.Debug("Serving cached card", zap.String("url", url), zap.String("card_id", card.ID().String()))
			return &inbound.ExtractionResult{Card: card.AsCacheHit(), CacheHit: true}, nil
		}
	}

	tier := s.resolveTier(ctx, req.RequesterID)

	if _, err := s.quota.CheckRate(ctx, req.RequesterID, tier); err != nil {
		var limited *cookcard.RateLimitedError
		if errors.As(err, &limited) {
			events.Record(cookcard.RateLimitedEvent{
				RequesterID:       req.RequesterID,
				Tier:              tier,
				RetryAfterSeconds: limited.RetryAfterSeconds,
				Limit:             limited.Limit,
				At:                s.now().UTC(),
			})
			s.logger.Info("Request rate limited",
				zap.String("requester_id", req.RequesterID),
				zap.Int64("retry_after_seconds", limited.RetryAfterSeconds),
			)
			return nil, err
		}
		s.logger.Error("Rate check failed", zap.String("requester_id", req.RequesterID), zap.Error(err))
		return nil, err
	}

	reservation, err := s.quota.Reserve(ctx, req.RequesterID, tier)
	if err != nil {
		var exceeded *cookcard.QuotaExceededError
		if errors.As(err, &exceeded) {
			events.Record(cookcard.QuotaExceededEvent{
				RequesterID: req.RequesterID,
				Tier:        tier,
				Used:        exceeded.Used,
				Limit:       exceeded.Limit,
				At:          s.now().UTC(),
			})
			s.logger.Info("Monthly quota exhausted",
				zap.String("requester_id", req.RequesterID),
				zap.String("tier", string(tier)),
			)
			return nil, err
		}
		s.logger.Error("Quota reservation failed", zap.String("requester_id", req.RequesterID), zap.Error(err))
		return nil, err
	}

	extractionID := uuid.New()
	res, err := s.ladder.Run(ctx, extractionID, &req, tier, events)
	if err != nil {
		bg := context.WithoutCancel(ctx)
		if relErr := s.quota.Release(bg, reservation); relErr != nil {
			s.logger.Error("Failed to release quota reservation",
				zap.String("requester_id", req.RequesterID),
				zap.Error(relErr),
			)
		}
		events.Record(cookcard.ExtractionAbortedEvent{
			ExtractionID: extractionID,
			RequesterID:  req.RequesterID,
			Cause:        err.Error(),
			At:           s.now().UTC(),
		})
		s.logger.Info("Extraction aborted",
			zap.String("extraction_id", extractionID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	card := s.assemble(req, res)

	// The caller may be gone by now; bookkeeping for completed work still happens.
	bg := context.WithoutCancel(ctx)
	if err := s.quota.AddCost(bg, reservation, res.CostCents); err != nil {
		s.logger.Error("Failed to record extraction cost", zap.String("requester_id", req.RequesterID), zap.Error(err))
	}
	if err := s.cache.Store(bg, url, card); err != nil {
		s.logger.Warn("Failed to cache card", zap.String("url", url), zap.Error(err))
	}
	if s.cfg.Flags.PersistCards && s.cards != nil {
		if err := s.cards.Save(bg, card, req.RequesterID, req.GroupID); err != nil {
			s.logger.Error("Failed to persist card", zap.String("card_id", card.ID().String()), zap.Error(err))
		}
	}

	events.Record(cookcard.ExtractionCompletedEvent{
		ExtractionID:    extractionID,
		CardID:          card.ID(),
		RequesterID:     req.RequesterID,
		GroupID:         req.GroupID,
		Platform:        req.Platform(),
		Method:          res.Method,
		EvidenceSource:  res.EvidenceSource,
		IngredientCount: len(res.Ingredients),
		RejectedCount:   res.RejectedCount,
		CostCents:       res.CostCents,
		Confidence:      res.Confidence,
		Duration:        s.now().Sub(start),
		At:              s.now().UTC(),
	})
	s.logger.Info("Extraction completed",
		zap.String("extraction_id", extractionID.String()),
		zap.String("card_id", card.ID().String()),
		zap.String("method", string(res.Method)),
		zap.Int("ingredients", len(res.Ingredients)),
		zap.Int64("cost_cents", res.CostCents),
	)

	return &inbound.ExtractionResult{Card: card}, nil
}

// QuotaStatus reports the requester's monthly ledger and current hourly window
func (s *Service) QuotaStatus(ctx context.Context, requesterID string) (*cookcard.QuotaStatus, error) {
	if requesterID == "" {
		return nil, cookcard.ErrMissingRequester
	}
	tier := s.resolveTier(ctx, requesterID)
	status, err := s.quota.Status(ctx, requesterID, tier)
	if err != nil {
		return nil, err
	}
	if status.Vision, err = s.budget.Status(ctx, requesterID, tier); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetCard loads a persisted card
func (s *Service) GetCard(ctx context.Context, id uuid.UUID) (*outbound.StoredCard, error) {
	if s.cards == nil {
		return nil, cookcard.ErrNotFound
	}
	stored, err := s.cards.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get card %s: %w", id, err)
	}
	return stored, nil
}

// ListGroupCards returns a group's most recent cards
func (s *Service) ListGroupCards(ctx context.Context, groupID string, limit int) ([]*outbound.StoredCard, error) {
	if s.cards == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	cards, err := s.cards.ListByGroup(ctx, groupID, limit)
	if err != nil {
		return nil, fmt.Errorf("list group cards: %w", err)
	}
	return cards, nil
}

// resolveTier fails closed to the free tier
func (s *Service) resolveTier(ctx context.Context, requesterID string) cookcard.Tier {
	if s.tiers == nil {
		return cookcard.TierFree
	}
	tier, err := s.tiers.ResolveTier(ctx, requesterID)
	if err != nil {
		s.logger.Warn("Tier resolution failed, using free tier",
			zap.String("requester_id", requesterID),
			zap.Error(err),
		)
		return cookcard.TierFree
	}
	if _, ok := s.cfg.Tiers[tier]; !ok {
		return cookcard.TierFree
	}
	return tier
}

func (s *Service) assemble(req cookcard.ExtractionRequest, res *LadderResult) *cookcard.CookCard {
	return cookcard.NewCookCard(cookcard.CardParams{
		Title:        res.Metadata.Title,
		Creator:      res.Metadata.Creator,
		SourceURL:    req.NormalizedURL(),
		Platform:     req.Platform(),
		Ingredients:  res.Ingredients,
		Instructions: res.Instructions,
		Extraction: cookcard.Extraction{
			Method:          res.Method,
			Sources:         res.Sources,
			Confidence:      res.Confidence,
			CostCents:       res.CostCents,
			EvidenceSource:  res.EvidenceSource,
			PipelineVersion: s.cfg.Version,
			RejectedCount:   res.RejectedCount,
		},
		CreatedAt: s.now().UTC(),
	})
}

func (s *Service) emit(ctx context.Context, events *shared.EventRecorder) {
	if s.emitter == nil {
		events.Drain()
		return
	}
	for _, ev := range events.Drain() {
		s.emitter.Emit(ctx, ev.EventName(), ev.Fields())
	}
}
