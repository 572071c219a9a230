package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/ports/inbound"
	apperrors "github.com/alchemorsel/cookcard/pkg/errors"
)

const defaultMaxBodyBytes = 16 << 10

// ExtractionHandlers serves the extraction and quota endpoints
type ExtractionHandlers struct {
	service      inbound.ExtractionService
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewExtractionHandlers creates extraction handlers. A non-positive body limit uses 16KiB.
func NewExtractionHandlers(service inbound.ExtractionService, maxBodyBytes int64, logger *zap.Logger) *ExtractionHandlers {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &ExtractionHandlers{
		service:      service,
		maxBodyBytes: maxBodyBytes,
		logger:       logger.Named("extraction-handlers"),
	}
}

// ExtractionResponse is the success body of POST /api/v1/extractions
type ExtractionResponse struct {
	Card       *cookcard.CookCard  `json:"card"`
	Extraction cookcard.Extraction `json:"extraction"`
	CacheHit   bool                `json:"cache_hit"`
}

// QuotaFallbackResponse tells the client to render a plain link instead of a card
type QuotaFallbackResponse struct {
	Error     string    `json:"error"`
	Fallback  string    `json:"fallback"`
	QuotaInfo QuotaInfo `json:"quota_info"`
}

// QuotaInfo describes the exhausted monthly ledger
type QuotaInfo struct {
	Tier  cookcard.Tier `json:"tier"`
	Used  int64         `json:"used"`
	Limit int64         `json:"limit"`
}

// RateLimitedResponse is the 429 body
type RateLimitedResponse struct {
	Error             string `json:"error"`
	RetryAfterSeconds int64  `json:"retry_after_seconds"`
	CurrentCount      int64  `json:"current_count"`
	Limit             int64  `json:"limit"`
}

// CreateExtraction handles POST /api/v1/extractions
func (h *ExtractionHandlers) CreateExtraction(w http.ResponseWriter, r *http.Request) {
	var req cookcard.ExtractionRequest
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, h.logger, apperrors.NewBadRequestError("request body too large"))
			return
		}
		writeError(w, r, h.logger, apperrors.NewBadRequestError("request body must be a JSON object"))
		return
	}
	if err := req.Accept(); err != nil {
		writeError(w, r, h.logger, toAppError(err))
		return
	}

	result, err := h.service.Extract(r.Context(), req)
	if err != nil {
		h.writeExtractionError(w, r, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, ExtractionResponse{
		Card:       result.Card,
		Extraction: result.Card.Extraction(),
		CacheHit:   result.CacheHit,
	})
}

func (h *ExtractionHandlers) writeExtractionError(w http.ResponseWriter, r *http.Request, err error) {
	var limited *cookcard.RateLimitedError
	if errors.As(err, &limited) {
		appErr := apperrors.NewRateLimitedError(limited.RetryAfterSeconds, limited.CurrentCount, limited.Limit)
		w.Header().Set("Retry-After", strconv.FormatInt(limited.RetryAfterSeconds, 10))
		writeJSON(w, h.logger, appErr.StatusCode(), RateLimitedResponse{
			Error:             appErr.Message,
			RetryAfterSeconds: limited.RetryAfterSeconds,
			CurrentCount:      limited.CurrentCount,
			Limit:             limited.Limit,
		})
		return
	}

	var exceeded *cookcard.QuotaExceededError
	if errors.As(err, &exceeded) {
		appErr := apperrors.NewQuotaExceededError(string(exceeded.Tier), exceeded.Used, exceeded.Limit)
		writeJSON(w, h.logger, appErr.StatusCode(), QuotaFallbackResponse{
			Error:    appErr.Message,
			Fallback: "link_only",
			QuotaInfo: QuotaInfo{
				Tier:  exceeded.Tier,
				Used:  exceeded.Used,
				Limit: exceeded.Limit,
			},
		})
		return
	}

	writeError(w, r, h.logger, toAppError(err))
}

// GetQuota handles GET /api/v1/requesters/{id}/quota
func (h *ExtractionHandlers) GetQuota(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.QuotaStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, toAppError(err))
		return
	}
	writeJSON(w, h.logger, http.StatusOK, status)
}
