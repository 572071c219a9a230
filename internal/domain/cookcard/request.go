package cookcard

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ExtractionRequest asks for one URL to be turned into a CookCard. Immutable once accepted.
type ExtractionRequest struct {
	URL         string `json:"url" validate:"required,url,max=2048"`
	RequesterID string `json:"requester_id" validate:"required,max=128"`
	GroupID     string `json:"group_id" validate:"omitempty,max=128"`
	BypassCache bool   `json:"bypass_cache"`

	normalizedURL string
	platform      Platform
}

// NewExtractionRequest validates the raw fields and normalizes the URL
func NewExtractionRequest(rawURL, requesterID, groupID string, bypassCache bool) (ExtractionRequest, error) {
	req := ExtractionRequest{
		URL:         rawURL,
		RequesterID: requesterID,
		GroupID:     groupID,
		BypassCache: bypassCache,
	}
	if err := req.Accept(); err != nil {
		return ExtractionRequest{}, err
	}
	return req, nil
}

// Accept runs struct validation and normalizes the URL. A request decoded from
// JSON must be accepted before it is handed to the pipeline.
func (r *ExtractionRequest) Accept() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	normalized, err := NormalizeURL(r.URL)
	if err != nil {
		return err
	}
	r.normalizedURL = normalized
	r.platform = DetectPlatform(normalized)
	return nil
}

// NormalizedURL returns the canonical URL; empty until the request is accepted
func (r ExtractionRequest) NormalizedURL() string { return r.normalizedURL }

// Platform returns the detected hosting platform
func (r ExtractionRequest) Platform() Platform { return r.platform }

// Accepted reports whether validation has run successfully
func (r ExtractionRequest) Accepted() bool { return r.normalizedURL != "" }
