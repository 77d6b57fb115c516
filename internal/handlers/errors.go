package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/stylebook/internal/models"
	"github.com/BradenHooton/stylebook/internal/ratelimit"
	pkghttp "github.com/BradenHooton/stylebook/pkg/http"
)

// businessErrors are rule violations reported as 422 with a stable code.
var businessErrors = []struct {
	err  error
	code string
}{
	{models.ErrSlotConflict, "slot_unavailable"},
	{models.ErrInvalidTransition, "invalid_transition"},
	{models.ErrInvalidPhone, "invalid_phone"},
	{models.ErrInactiveService, "service_inactive"},
	{models.ErrSameClient, "same_client"},
	{models.ErrInvalidMonth, "invalid_month"},
	{models.ErrAIUnavailable, "ai_unavailable"},
	{models.ErrInvalidImage, "invalid_image"},
	{models.ErrImageTooLarge, "image_too_large"},
}

// writeServiceError maps a service error to its HTTP response. Unknown errors
// are logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var limitErr *ratelimit.LimitError
	switch {
	case errors.As(err, &limitErr):
		pkghttp.WriteTooManyRequestsRetry(w, "rate_limit_exceeded", "Too many requests, try again later", limitErr.RetryAfter)
		return
	case errors.Is(err, models.ErrRateLimitExceeded):
		pkghttp.WriteTooManyRequests(w, "Too many requests, try again later")
		return
	case errors.Is(err, models.ErrTooBusy):
		pkghttp.WriteTooManyRequestsRetry(w, "too_busy", models.ErrTooBusy.Error(), tooBusyRetryAfter)
		return
	}

	for _, be := range businessErrors {
		if errors.Is(err, be.err) {
			pkghttp.WriteUnprocessable(w, be.code, be.err.Error())
			return
		}
	}

	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Resource already exists")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "Forbidden")
	default:
		if logger != nil && !errors.Is(err, models.ErrInternalServer) {
			logger.Error("unhandled service error", slog.Any("error", err))
		}
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
