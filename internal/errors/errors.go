// Package errors defines the categorized error type used across the
// service and its mapping to HTTP status codes.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/RealToken-Community/gainorloss/internal/types"
)

// Category represents the category of an error
type Category string

const (
	// CategoryUserInput represents user input errors (4xx)
	CategoryUserInput Category = "user_input"
	// CategoryData represents data-integrity faults in upstream snapshots
	CategoryData Category = "data"
	// CategoryProvider represents upstream data provider errors
	CategoryProvider Category = "provider"
	// CategoryStorage represents database errors
	CategoryStorage Category = "storage"
	// CategoryCache represents cache errors
	CategoryCache Category = "cache"
	// CategoryNotFound represents not found errors
	CategoryNotFound Category = "not_found"
	// CategoryRateLimit represents rate limit errors
	CategoryRateLimit Category = "rate_limit"
	// CategorySystem represents internal errors (5xx)
	CategorySystem Category = "system"
)

// CategorizedError carries a category, a stable code and an HTTP status.
type CategorizedError struct {
	Category   Category
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to the wire error shape.
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewInvalidAddressError creates an invalid address error
func NewInvalidAddressError(address string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_ADDRESS",
		Message:    fmt.Sprintf("invalid address format: %s", address),
		Details:    map[string]interface{}{"address": address},
	}
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewMalformedSnapshotError rejects a snapshot batch because one snapshot
// carries a missing or non-numeric field. The batch is rejected rather than
// coerced: a zeroed amount would silently corrupt every downstream total.
func NewMalformedSnapshotError(index int, field string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryData,
		StatusCode: http.StatusBadGateway,
		Code:       "MALFORMED_SNAPSHOT",
		Message:    fmt.Sprintf("snapshot %d has malformed field %q", index, field),
		Cause:      cause,
		Details: map[string]interface{}{
			"index": index,
			"field": field,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError() *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "rate limit exceeded",
	}
}

// NewProviderError creates a data provider error
func NewProviderError(provider string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryProvider,
		StatusCode: http.StatusBadGateway,
		Code:       "PROVIDER_ERROR",
		Message:    fmt.Sprintf("data provider error: %s", provider),
		Cause:      cause,
		Details:    map[string]interface{}{"provider": provider},
	}
}

// NewProviderTimeoutError creates a provider timeout error
func NewProviderTimeoutError(provider string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryProvider,
		StatusCode: http.StatusGatewayTimeout,
		Code:       "PROVIDER_TIMEOUT",
		Message:    fmt.Sprintf("data provider timeout: %s", provider),
		Details:    map[string]interface{}{"provider": provider},
	}
}

// NewStorageError creates a database error
func NewStorageError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryStorage,
		StatusCode: http.StatusInternalServerError,
		Code:       "STORAGE_ERROR",
		Message:    fmt.Sprintf("storage error during %s", operation),
		Cause:      cause,
		Details:    map[string]interface{}{"operation": operation},
	}
}

// NewCacheError creates a cache error
func NewCacheError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCache,
		StatusCode: http.StatusInternalServerError,
		Code:       "CACHE_ERROR",
		Message:    fmt.Sprintf("cache error during %s", operation),
		Cause:      cause,
		Details:    map[string]interface{}{"operation": operation},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// Categorize wraps an arbitrary error into a CategorizedError. Already
// categorized errors pass through unchanged, even when wrapped.
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}
	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}
	if svcErr, ok := err.(*types.ServiceError); ok {
		return &CategorizedError{
			Category:   CategorySystem,
			StatusCode: http.StatusInternalServerError,
			Code:       svcErr.Code,
			Message:    svcErr.Message,
			Details:    svcErr.Details,
		}
	}
	return NewInternalError("unexpected error", err)
}

// HTTPStatusCode returns the HTTP status code for an error.
func HTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable reports whether retrying the operation could help. Only
// provider and infrastructure failures are retryable; user input and
// data-integrity faults are not.
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	switch catErr.Category {
	case CategoryProvider, CategoryStorage, CategoryCache:
		return true
	default:
		return false
	}
}

// IsUserError reports whether the error maps to a 4xx status.
func IsUserError(err error) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.StatusCode >= 400 && catErr.StatusCode < 500
}
