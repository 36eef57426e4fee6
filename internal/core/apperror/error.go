// Package apperror provides structured error handling for the ledger core.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes for the ledger and registry operations.
const (
	// Infrastructure errors (5xx)
	CodeInternal    = "INTERNAL_ERROR"
	CodeTransaction = "TRANSACTION_ERROR"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Business rule violations
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeInactiveProduct   = "INACTIVE_PRODUCT"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict  = "CONFLICT"
	CodeDuplicate = "DUPLICATE_NAME"
)

// AppError is the standard error type for the service.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, ref any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "ref": ref},
	}
}

// NewInactiveProduct creates an error for operations against a soft-deleted product
func NewInactiveProduct(name string) *AppError {
	return &AppError{
		Code:       CodeInactiveProduct,
		Message:    "Product is inactive",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"product": name},
	}
}

// NewInsufficientStock creates a stock shortage error
func NewInsufficientStock(product string, requested, available int64) *AppError {
	return &AppError{
		Code:       CodeInsufficientStock,
		Message:    "Insufficient stock",
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"product":   product,
			"requested": requested,
			"available": available,
		},
	}
}

// NewTransaction wraps a failed storage transaction (500).
// The write was rolled back entirely.
func NewTransaction(err error) *AppError {
	return &AppError{
		Code:       CodeTransaction,
		Message:    "Storage transaction failed",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewDuplicate creates a case-insensitive name collision error (409)
func NewDuplicate(entity, name string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s with this name already exists", entity),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "name": name},
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsDuplicate checks if error is CodeDuplicate
func IsDuplicate(err error) bool {
	return hasCode(err, CodeDuplicate)
}

// IsInsufficientStock checks if error is CodeInsufficientStock
func IsInsufficientStock(err error) bool {
	return hasCode(err, CodeInsufficientStock)
}

func hasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}
