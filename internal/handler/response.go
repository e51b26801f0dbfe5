package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kredia/kredia-backend/internal/domain"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    any               `json:"data,omitempty"`
	Meta    *Meta             `json:"meta,omitempty"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

// Meta carries pagination details for list responses
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewMeta builds pagination meta from a page, limit and total count
func NewMeta(page, limit int, total int64) *Meta {
	totalPages := int(total / int64(limit))
	if total%int64(limit) > 0 {
		totalPages++
	}
	return &Meta{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

// OK writes a 200 success envelope
func OK(c echo.Context, message string, data any) error {
	return c.JSON(http.StatusOK, Response{Success: true, Message: message, Data: data})
}

// OKPaged writes a 200 success envelope with pagination meta
func OKPaged(c echo.Context, message string, data any, meta *Meta) error {
	return c.JSON(http.StatusOK, Response{Success: true, Message: message, Data: data, Meta: meta})
}

// Created writes a 201 success envelope
func Created(c echo.Context, message string, data any) error {
	return c.JSON(http.StatusCreated, Response{Success: true, Message: message, Data: data})
}

// Fail writes a failure envelope with the given status
func Fail(c echo.Context, status int, message string, errs ...ValidationError) error {
	return c.JSON(status, Response{Success: false, Message: message, Errors: errs})
}

// BadRequest writes a 400 validation failure
func BadRequest(c echo.Context, message string, errs ...ValidationError) error {
	return Fail(c, http.StatusBadRequest, message, errs...)
}

// DomainError maps a domain error to its envelope and status code.
// Conflict, concurrency and idempotency faults share 409 so callers retry
// with the same idempotency key.
func DomainError(c echo.Context, err error) error {
	var transition domain.InvalidTransitionError
	if errors.As(err, &transition) {
		return Fail(c, http.StatusConflict, transition.Error())
	}

	switch {
	case errors.Is(err, domain.ErrLoanNotFound),
		errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrInstallmentNotFound),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrNotificationNotFound),
		errors.Is(err, domain.ErrNotFound):
		return Fail(c, http.StatusNotFound, err.Error())

	case errors.Is(err, domain.ErrActiveLoanExists),
		errors.Is(err, domain.ErrAlreadyDisbursed),
		errors.Is(err, domain.ErrAlreadyRefunded),
		errors.Is(err, domain.ErrDuplicateReference),
		errors.Is(err, domain.ErrDuplicateIdempotency),
		errors.Is(err, domain.ErrVersionConflict),
		errors.Is(err, domain.ErrInstallmentConflict),
		errors.Is(err, domain.ErrIdempotencyInFlight),
		errors.Is(err, domain.ErrEmailTaken),
		errors.Is(err, domain.ErrPaymentNotPending),
		errors.Is(err, domain.ErrPaymentNotSuccess),
		errors.Is(err, domain.ErrAlreadyExists):
		return Fail(c, http.StatusConflict, err.Error())

	case errors.Is(err, domain.ErrLoanAmountInvalid),
		errors.Is(err, domain.ErrLoanTenorInvalid),
		errors.Is(err, domain.ErrLoanPurposeEmpty),
		errors.Is(err, domain.ErrApprovalAmountTooBig),
		errors.Is(err, domain.ErrPaymentAmountInvalid),
		errors.Is(err, domain.ErrMissingBankDetails),
		errors.Is(err, domain.ErrLoanNotActive),
		errors.Is(err, domain.ErrInvalidInput):
		return Fail(c, http.StatusBadRequest, err.Error())

	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUnauthorized):
		return Fail(c, http.StatusUnauthorized, err.Error())

	case errors.Is(err, domain.ErrLoanNotOwned),
		errors.Is(err, domain.ErrAccountInactive),
		errors.Is(err, domain.ErrForbidden):
		return Fail(c, http.StatusForbidden, err.Error())

	case errors.Is(err, domain.ErrProviderFailure):
		return Fail(c, http.StatusBadGateway, err.Error())

	default:
		return Fail(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
