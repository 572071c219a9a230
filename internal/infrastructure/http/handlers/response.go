// Package handlers provides HTTP handlers for the REST API
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	apperrors "github.com/alchemorsel/cookcard/pkg/errors"
)

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// writeError renders an AppError envelope tagged with the chi request id
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, appErr *apperrors.AppError) {
	status := appErr.StatusCode()
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.String("code", string(appErr.Code)),
			zap.Error(appErr),
		)
	}
	writeJSON(w, logger, status, apperrors.ToErrorResponse(appErr, chimiddleware.GetReqID(r.Context())))
}

// toAppError maps domain and validation errors onto the HTTP error envelope
func toAppError(err error) *apperrors.AppError {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		out := make([]apperrors.ValidationError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			out = append(out, apperrors.ValidationError{
				Field:   fe.Field(),
				Value:   fe.Value(),
				Tag:     fe.Tag(),
				Message: fieldMessage(fe),
			})
		}
		return apperrors.NewValidationErrors(out)
	}

	switch {
	case errors.Is(err, cookcard.ErrInvalidURL),
		errors.Is(err, cookcard.ErrUnsupportedScheme),
		errors.Is(err, cookcard.ErrMissingRequester):
		return apperrors.NewBadRequestError(err.Error())
	case errors.Is(err, cookcard.ErrNotFound):
		return apperrors.NewNotFoundError("cookcard")
	case errors.Is(err, cookcard.ErrStoreUnavailable):
		return apperrors.NewServiceUnavailableError("counter store", err)
	case errors.Is(err, cookcard.ErrExtractionAborted):
		return apperrors.NewServiceUnavailableError("extraction pipeline", err)
	}
	return apperrors.Wrap(err, "extraction failed")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "url":
		return fe.Field() + " must be a valid URL"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	}
	return fe.Field() + " failed " + fe.Tag() + " validation"
}
