package domain

import "errors"

// Domain errors
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrInternalError = errors.New("internal error")

	// ErrVersionConflict is returned when a compare-and-set update loses the
	// race on a versioned record. Callers retry with the same idempotency key.
	ErrVersionConflict = errors.New("version conflict")

	// ErrIdempotencyInFlight is returned when a mutating request reuses an
	// idempotency key whose first attempt has not finished yet.
	ErrIdempotencyInFlight = errors.New("request with this idempotency key is still in flight")

	ErrProviderFailure = errors.New("payment provider failure")
)
