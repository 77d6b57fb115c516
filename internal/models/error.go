package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Admission errors (transient, caller retries later)
	ErrRateLimitExceeded = errors.New("too many requests, try again later")
	ErrTooBusy           = errors.New("service is busy, try again shortly")

	// Business rule errors (permanent for the given input)
	ErrSlotConflict      = errors.New("the selected time slot is no longer available")
	ErrInvalidTransition = errors.New("invalid appointment status transition")
	ErrInvalidPhone      = errors.New("phone number must contain between 8 and 15 digits")
	ErrInactiveService   = errors.New("service is not available for booking")
	ErrSameClient        = errors.New("source and target client must be different")
	ErrAIUnavailable     = errors.New("haircut suggestions are not available")
	ErrInvalidImage      = errors.New("image must be a base64 data URL")
	ErrImageTooLarge     = errors.New("image exceeds the maximum allowed size")
	ErrInvalidMonth      = errors.New("month must use the YYYY-MM format")
)
