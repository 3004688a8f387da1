// Package apperror provides structured error handling following RFC 7807 Problem Details.
// Every validation or business-rule failure of the ledger is an *AppError.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Validation errors (400)
	CodeValidation       = "VALIDATION_ERROR"
	CodeTrackingRequired = "TRACKING_FIELD_REQUIRED"

	// Business rule violations (422)
	CodeBusinessRule      = "BUSINESS_RULE_VIOLATION"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeOverReceipt       = "OVER_RECEIPT"
	CodeCircularBOM       = "CIRCULAR_BOM"
	CodeSelfReferenceBOM  = "SELF_REFERENCING_BOM"
	CodeInvalidState      = "INVALID_STATE"
	CodeAlreadyVoided     = "ALREADY_VOIDED"
	CodeStockConsumed     = "STOCK_ALREADY_CONSUMED"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict               = "CONFLICT"
	CodeDuplicate              = "DUPLICATE_ENTRY"
	CodeIdempotency            = "IDEMPOTENCY_CONFLICT"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
)

// AppError is the standard error type for the platform.
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

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewTrackingRequired reports a batch/expiry/serial field that the product's
// tracking flags make mandatory.
func NewTrackingRequired(field string, productID any) *AppError {
	return &AppError{
		Code:       CodeTrackingRequired,
		Message:    fmt.Sprintf("%s is required for this product", field),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"field": field, "product_id": productID},
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewInsufficientStock creates a stock shortage error. Quantities are passed
// preformatted so the package stays free of domain types.
func NewInsufficientStock(productID any, required, available fmt.Stringer) *AppError {
	return &AppError{
		Code:       CodeInsufficientStock,
		Message:    fmt.Sprintf("Insufficient stock for product %v: required %s, available %s", productID, required, available),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"product_id": productID,
			"required":   required.String(),
			"available":  available.String(),
		},
	}
}

// NewOverReceipt is returned when a receipt line exceeds the open order quantity.
func NewOverReceipt(productID any, requested, remaining fmt.Stringer) *AppError {
	return &AppError{
		Code:       CodeOverReceipt,
		Message:    fmt.Sprintf("Received quantity %s exceeds remaining ordered quantity %s", requested, remaining),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"product_id": productID,
			"requested":  requested.String(),
			"remaining":  remaining.String(),
		},
	}
}

// NewCircularBOM reports a component whose own BOM already reaches the kit.
func NewCircularBOM(kitID, componentID any) *AppError {
	return &AppError{
		Code:       CodeCircularBOM,
		Message:    "Circular BOM: component already contains this kit",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"kit_id": kitID, "component_id": componentID},
	}
}

// NewSelfReferencingBOM reports a kit listing itself as a component.
func NewSelfReferencingBOM(kitID any) *AppError {
	return &AppError{
		Code:       CodeSelfReferenceBOM,
		Message:    "A kit cannot contain itself",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"kit_id": kitID},
	}
}

// NewInvalidState reports an entity whose status forbids the operation.
func NewInvalidState(entity string, status any, message string) *AppError {
	return &AppError{
		Code:       CodeInvalidState,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"entity": entity, "status": status},
	}
}

// NewAlreadyVoided is returned on a second void of the same document.
func NewAlreadyVoided(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeAlreadyVoided,
		Message:    fmt.Sprintf("%s is already voided", entity),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewStockConsumed is returned when received stock was moved or consumed
// before the receipt is voided.
func NewStockConsumed(productID any, received, onHand fmt.Stringer) *AppError {
	return &AppError{
		Code:       CodeStockConsumed,
		Message:    "Received stock has already been consumed or moved",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"product_id": productID,
			"received":   received.String(),
			"on_hand":    onHand.String(),
		},
	}
}

// NewConcurrentModification creates an optimistic locking error
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified by another request. Please retry.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
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

// NewIdempotencyConflict creates error when operation is already in progress
func NewIdempotencyConflict(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Operation already in progress or completed",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewIdempotencyMismatch is returned when the same idempotency key is reused for
// a different request (different user/operation/body hash).
func NewIdempotencyMismatch(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Idempotency key mismatch",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
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

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// --- Helper functions ---

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
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
	return HasCode(err, CodeNotFound)
}

// IsDuplicate checks if error is CodeDuplicate. When field is non-empty the
// duplicate must concern that field.
func IsDuplicate(err error, field string) bool {
	appErr, ok := AsAppError(err)
	if !ok || appErr.Code != CodeDuplicate {
		return false
	}
	return field == "" || appErr.Details["field"] == field
}
