package shared

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrorCategory represents different types of errors that can occur
type ErrorCategory string

const (
	ErrorCategoryConfiguration ErrorCategory = "configuration"
	ErrorCategoryNetwork       ErrorCategory = "network"
	ErrorCategoryDatabase      ErrorCategory = "database"
	ErrorCategoryValidation    ErrorCategory = "validation"
	ErrorCategoryProcessing    ErrorCategory = "processing"
	ErrorCategoryTimeout       ErrorCategory = "timeout"
	ErrorCategoryConflict      ErrorCategory = "conflict"
)

// Error codes shared across the oracle refresh and marketplace surfaces.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidMode       = "INVALID_MODE"
	CodeInvalidLink       = "INVALID_LINK"
	CodeInvalidListing    = "INVALID_LISTING"
	CodeAlreadyPending    = "ALREADY_PENDING"
	CodeStaleCallback     = "STALE_CALLBACK"
	CodeSubmissionFailure = "SUBMISSION_FAILURE"
	CodeExpired           = "EXPIRED"
)

// ServiceError represents a standardized error with additional context
type ServiceError struct {
	Category    ErrorCategory `json:"category"`
	Code        string        `json:"code"`
	Message     string        `json:"message"`
	Details     interface{}   `json:"details,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
	ServiceName string        `json:"service_name"`
	Operation   string        `json:"operation"`
	Retryable   bool          `json:"retryable"`
	Cause       error         `json:"-"` // Original error, not serialized
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// NewServiceError creates a new service error
func NewServiceError(category ErrorCategory, code, message, serviceName, operation string, retryable bool, cause error) *ServiceError {
	return &ServiceError{
		Category:    category,
		Code:        code,
		Message:     message,
		Timestamp:   time.Now(),
		ServiceName: serviceName,
		Operation:   operation,
		Retryable:   retryable,
		Cause:       cause,
	}
}

// WithDetails adds additional details to the error
func (e *ServiceError) WithDetails(details interface{}) *ServiceError {
	e.Details = details
	return e
}

// IsRetryable returns whether the error is retryable
func (e *ServiceError) IsRetryable() bool {
	return e.Retryable
}

// LogError logs the error with structured fields
func (e *ServiceError) LogError() {
	logrus.WithFields(logrus.Fields{
		"error_category":   e.Category,
		"error_code":       e.Code,
		"error_message":    e.Message,
		"service_name":     e.ServiceName,
		"operation":        e.Operation,
		"retryable":        e.Retryable,
		"underlying_error": e.Cause,
	}).Error("Service error occurred")
}

// NewNotFoundError reports an unknown issuer or listing id.
func NewNotFoundError(serviceName, operation string, id int) *ServiceError {
	return NewServiceError(ErrorCategoryValidation, CodeNotFound,
		fmt.Sprintf("issuer %d not found", id), serviceName, operation, false, nil)
}

// NewInvalidModeError reports a refresh mode outside {cert, price}.
func NewInvalidModeError(serviceName, operation, mode string) *ServiceError {
	return NewServiceError(ErrorCategoryValidation, CodeInvalidMode,
		fmt.Sprintf("invalid mode %q, want cert or price", mode), serviceName, operation, false, nil)
}

// NewInvalidLinkError reports a document link outside the scheme allow-list.
func NewInvalidLinkError(serviceName, operation, link string) *ServiceError {
	return NewServiceError(ErrorCategoryValidation, CodeInvalidLink,
		fmt.Sprintf("invalid document link %q", link), serviceName, operation, false, nil)
}

// NewInvalidListingError reports an unknown listing id on a vault write.
func NewInvalidListingError(serviceName, operation string, listingID int) *ServiceError {
	return NewServiceError(ErrorCategoryValidation, CodeInvalidListing,
		fmt.Sprintf("listing %d not found", listingID), serviceName, operation, false, nil)
}

// NewAlreadyPendingError reports a refresh trigger while a round for the
// same issuer and mode is still outstanding.
func NewAlreadyPendingError(serviceName, operation string, issuerID int, mode string) *ServiceError {
	return NewServiceError(ErrorCategoryConflict, CodeAlreadyPending,
		fmt.Sprintf("round already pending for issuer %d mode %s", issuerID, mode),
		serviceName, operation, true, nil)
}

// NewStaleCallbackError reports a callback for an unknown or already
// resolved request key. Logged and ignored, never surfaced to callers.
func NewStaleCallbackError(serviceName, operation, key string) *ServiceError {
	return NewServiceError(ErrorCategoryProcessing, CodeStaleCallback,
		fmt.Sprintf("callback for unknown or terminal request %s", key),
		serviceName, operation, false, nil)
}

// NewSubmissionFailureError reports an oracle network submission that
// exhausted its retries.
func NewSubmissionFailureError(serviceName, operation string, cause error) *ServiceError {
	return NewServiceError(ErrorCategoryNetwork, CodeSubmissionFailure,
		"oracle network submission failed after retries", serviceName, operation, true, cause)
}

// HasCode reports whether err is a ServiceError carrying the given code.
func HasCode(err error, code string) bool {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code == code
	}
	return false
}

// WrapError wraps an existing error with service error context
func WrapError(err error, category ErrorCategory, code, serviceName, operation string, retryable bool) *ServiceError {
	if err == nil {
		return nil
	}

	// If it's already a ServiceError, just update the context
	if serviceErr, ok := err.(*ServiceError); ok {
		serviceErr.ServiceName = serviceName
		serviceErr.Operation = operation
		return serviceErr
	}

	return NewServiceError(category, code, err.Error(), serviceName, operation, retryable, err)
}

// IsRetryableError checks if an error is retryable
func IsRetryableError(err error) bool {
	if serviceErr, ok := err.(*ServiceError); ok {
		return serviceErr.IsRetryable()
	}

	// Default heuristics for standard errors
	errorMsg := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout", "connection refused", "connection reset",
		"temporary failure", "service unavailable", "too many requests",
		"network", "dns", "socket",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errorMsg, pattern) {
			return true
		}
	}

	return false
}
