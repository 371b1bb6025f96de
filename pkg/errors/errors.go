package errors

import "fmt"

// ErrorType classifies failures in the harvest pipeline
type ErrorType string

const (
	// ErrorTypeTransient covers storage, fetch and digest failures that are
	// safe to retry on a later scan pass
	ErrorTypeTransient ErrorType = "transient"
	// ErrorTypeFormatRejected marks a payload filtered out by the format
	// gate; a deliberate outcome, not a fault
	ErrorTypeFormatRejected ErrorType = "format_rejected"
	// ErrorTypeSubsystemRejected marks a download request refused before a
	// handle was issued
	ErrorTypeSubsystemRejected ErrorType = "subsystem_rejected"
	// ErrorTypeInterrupted marks a download that failed after acceptance
	ErrorTypeInterrupted ErrorType = "interrupted"
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeStorage     ErrorType = "storage"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error carries a pipeline error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// Wrap creates a typed error preserving the cause
func Wrap(errorType ErrorType, message string, err error) *Error {
	return &Error{Type: errorType, Message: message, Err: err}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeTransient, ErrorTypeNetwork, ErrorTypeStorage:
		return true
	case ErrorTypeFormatRejected, ErrorTypeSubsystemRejected, ErrorTypeInterrupted:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500 // Retry all 5xx errors
	}
}
