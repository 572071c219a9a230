package cookcard

import (
	"errors"
	"fmt"
)

// Domain errors for extraction requests and ledgers

var (
	// Request validation errors
	ErrInvalidURL        = errors.New("url must be an absolute http(s) url")
	ErrMissingRequester  = errors.New("requester id is required")
	ErrUnsupportedScheme = errors.New("only http and https urls are supported")

	// Store errors
	ErrNotFound         = errors.New("key not found")
	ErrStoreUnavailable = errors.New("counter store unavailable")

	// Ladder outcomes that never reach the caller
	ErrStageTimeout      = errors.New("stage timed out")
	ErrBudgetExceeded    = errors.New("video budget exceeded")
	ErrUnknownDuration   = errors.New("media duration unknown")
	ErrPlatformNoVideo   = errors.New("platform does not support direct video addressing")
	ErrUpstreamFailure   = errors.New("upstream collaborator failed")
	ErrExtractionAborted = errors.New("extraction aborted before completion")

	ErrUnknownTier = errors.New("unknown tier")
)

// RateLimitedError is returned when the hourly window is exhausted.
type RateLimitedError struct {
	RetryAfterSeconds int64
	CurrentCount      int64
	Limit             int64
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: %d/%d requests this hour, retry after %ds",
		e.CurrentCount, e.Limit, e.RetryAfterSeconds)
}

// QuotaExceededError is returned when the monthly extraction quota is spent.
// Callers degrade to a link-only response rather than failing.
type QuotaExceededError struct {
	Tier  Tier
	Used  int64
	Limit int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %s tier used %d of %d extractions", e.Tier, e.Used, e.Limit)
}
