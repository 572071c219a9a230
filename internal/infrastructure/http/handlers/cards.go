package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/ports/inbound"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
	apperrors "github.com/alchemorsel/cookcard/pkg/errors"
)

// CardHandlers serves persisted cards to downstream consumers
type CardHandlers struct {
	cards  inbound.CardQueryService
	logger *zap.Logger
}

// NewCardHandlers creates card query handlers
func NewCardHandlers(cards inbound.CardQueryService, logger *zap.Logger) *CardHandlers {
	return &CardHandlers{cards: cards, logger: logger.Named("card-handlers")}
}

// StoredCardResponse is a card with its request attribution
type StoredCardResponse struct {
	Card        *cookcard.CookCard `json:"card"`
	RequesterID string             `json:"requester_id"`
	GroupID     string             `json:"group_id,omitempty"`
}

// CardListResponse wraps a page of group cards
type CardListResponse struct {
	GroupID string               `json:"group_id"`
	Cards   []StoredCardResponse `json:"cards"`
	Count   int                  `json:"count"`
	AsOf    time.Time            `json:"as_of"`
}

// GetCard handles GET /api/v1/cookcards/{id}
func (h *CardHandlers) GetCard(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, apperrors.NewBadRequestError("card id must be a UUID"))
		return
	}

	stored, err := h.cards.GetCard(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, toAppError(err))
		return
	}
	writeJSON(w, h.logger, http.StatusOK, toStoredCardResponse(stored))
}

// ListGroupCards handles GET /api/v1/groups/{id}/cookcards?limit=
func (h *CardHandlers) ListGroupCards(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, h.logger, apperrors.NewValidationError("limit must be an integer"))
			return
		}
		limit = n
	}

	stored, err := h.cards.ListGroupCards(r.Context(), groupID, limit)
	if err != nil {
		writeError(w, r, h.logger, toAppError(err))
		return
	}

	resp := CardListResponse{
		GroupID: groupID,
		Cards:   make([]StoredCardResponse, 0, len(stored)),
		AsOf:    time.Now().UTC(),
	}
	for _, s := range stored {
		resp.Cards = append(resp.Cards, toStoredCardResponse(s))
	}
	resp.Count = len(resp.Cards)
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func toStoredCardResponse(s *outbound.StoredCard) StoredCardResponse {
	return StoredCardResponse{Card: s.Card, RequesterID: s.RequesterID, GroupID: s.GroupID}
}
