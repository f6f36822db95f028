package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType categorizes different error types
type ErrorType string

const (
	// Authentication errors
	ErrorTypeAuth           ErrorType = "auth"
	ErrorTypeSessionExpired ErrorType = "session_expired"
	ErrorTypeForbidden      ErrorType = "forbidden"

	// Transport and server errors
	ErrorTypeNetwork   ErrorType = "network"
	ErrorTypeTimeout   ErrorType = "timeout"
	ErrorTypeServer    ErrorType = "server"
	ErrorTypeNotFound  ErrorType = "not_found"
	ErrorTypeRateLimit ErrorType = "rate_limit"
	ErrorTypeDecode    ErrorType = "decode"
	ErrorTypeCanceled  ErrorType = "canceled"

	// Validation errors (checked before calling the server)
	ErrorTypeValidation ErrorType = "validation"

	// Domain rejection (the server understood the request and said no)
	ErrorTypeRejected ErrorType = "rejected"
	ErrorTypeConflict ErrorType = "conflict"

	ErrorTypeUnknown ErrorType = "unknown"
)

// CLIError represents a structured error with context
type CLIError struct {
	Type       ErrorType
	Message    string
	Cause      error
	Suggestion string
	StatusCode int
	RetryAfter int
	Field      string
}

// Error implements the error interface
func (e *CLIError) Error() string {
	return e.Message
}

// WithSuggestion adds a helpful suggestion to the error
func (e *CLIError) WithSuggestion(suggestion string) *CLIError {
	e.Suggestion = suggestion
	return e
}

// WithCause attaches the underlying error
func (e *CLIError) WithCause(cause error) *CLIError {
	e.Cause = cause
	return e
}

// HasSuggestion returns true if the error has a suggestion
func (e *CLIError) HasSuggestion() bool {
	return e.Suggestion != ""
}

// Unwrap returns the underlying error
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// NewCLIError creates a new CLI error
func NewCLIError(errorType ErrorType, message string, cause error) *CLIError {
	return &CLIError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NetworkError creates a network error
func NetworkError(message string) *CLIError {
	err := NewCLIError(ErrorTypeNetwork, message, nil)
	err.Suggestion = "Check your internet connection and try again."
	return err
}

// TimeoutError creates a timeout error
func TimeoutError() *CLIError {
	err := NewCLIError(ErrorTypeTimeout, "Request timed out", nil)
	err.Suggestion = "The server is taking too long to respond. Try again in a moment."
	return err
}

// AuthError creates an authentication-required error
func AuthError(message string) *CLIError {
	err := NewCLIError(ErrorTypeAuth, message, nil)
	err.Suggestion = "Log in with 'nearby auth login'."
	return err
}

// SessionExpiredError creates a session expired error
func SessionExpiredError() *CLIError {
	err := NewCLIError(ErrorTypeSessionExpired, "Your session has expired", nil)
	err.Suggestion = "Run 'nearby auth login' to refresh your session."
	return err
}

// ForbiddenError creates a forbidden error
func ForbiddenError() *CLIError {
	err := NewCLIError(ErrorTypeForbidden, "Access denied", nil)
	err.Suggestion = "Make sure you're logged in with an account that can do this."
	return err
}

// ValidationError creates a validation error
func ValidationError(field, reason string) *CLIError {
	err := NewCLIError(ErrorTypeValidation, fmt.Sprintf("Validation error: %s - %s", field, reason), nil)
	err.Field = field
	return err
}

// DecodeError wraps a response body that could not be decoded
func DecodeError(cause error) *CLIError {
	err := NewCLIError(ErrorTypeDecode, "Unexpected response from server", cause)
	err.Suggestion = "The client may be out of date. Try again or upgrade nearby."
	return err
}

// RejectedError creates a domain rejection error, e.g. "payment method not supported"
func RejectedError(message string) *CLIError {
	if message == "" {
		message = "Request was rejected"
	}
	return NewCLIError(ErrorTypeRejected, message, nil)
}

// ServerError creates a server error
func ServerError() *CLIError {
	err := NewCLIError(ErrorTypeServer, "Server error", nil)
	err.Suggestion = "The server encountered an error. Try again in a few moments."
	return err
}

// NotFoundError creates a not found error
func NotFoundError(resourceType, identifier string) *CLIError {
	return NewCLIError(ErrorTypeNotFound,
		fmt.Sprintf("%s not found: %s", resourceType, identifier),
		nil)
}

// RateLimitError creates a rate limit error
func RateLimitError(retryAfter int) *CLIError {
	err := NewCLIError(ErrorTypeRateLimit,
		"Rate limit exceeded. Too many requests.",
		nil)
	err.RetryAfter = retryAfter
	err.Suggestion = fmt.Sprintf("Please wait %d seconds before trying again.", retryAfter)
	return err
}

// ConflictError creates a conflict error
func ConflictError(message string) *CLIError {
	err := NewCLIError(ErrorTypeConflict, message, nil)
	err.Suggestion = "This already exists. Refresh and try again."
	return err
}

// FromStatus maps an HTTP status and server message onto the taxonomy
func FromStatus(status int, message string) *CLIError {
	var err *CLIError
	switch {
	case status == http.StatusUnauthorized:
		err = SessionExpiredError()
	case status == http.StatusForbidden:
		err = ForbiddenError()
	case status == http.StatusNotFound:
		err = NotFoundError("Resource", "unknown")
	case status == http.StatusConflict:
		err = ConflictError(message)
	case status == http.StatusTooManyRequests:
		err = RateLimitError(60)
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		err = RejectedError(message)
	case status >= 500:
		err = ServerError()
	default:
		err = NewCLIError(ErrorTypeUnknown, fmt.Sprintf("unexpected status %d", status), nil)
	}
	if message != "" && err.Type != ErrorTypeSessionExpired {
		err.Message = message
	}
	err.StatusCode = status
	return err
}

// IsType reports whether err categorizes as t
func IsType(err error, t ErrorType) bool {
	cliErr := CategorizeError(err)
	return cliErr != nil && cliErr.Type == t
}

// CategorizeError converts a standard error into a CLIError
func CategorizeError(err error) *CLIError {
	if err == nil {
		return nil
	}

	// Check if it's already a CLIError
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}

	if errors.Is(err, context.Canceled) {
		return NewCLIError(ErrorTypeCanceled, "Request was canceled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutError().WithCause(err)
	}

	// Categorize based on error message
	errMsg := err.Error()

	switch {
	case strings.Contains(errMsg, "connection refused"):
		return NetworkError("Could not connect to server. Make sure it's running.").WithCause(err)
	case strings.Contains(errMsg, "no such host"):
		return NetworkError("Could not resolve the server address.").WithCause(err)
	case strings.Contains(errMsg, "timeout"), strings.Contains(errMsg, "deadline exceeded"):
		return TimeoutError().WithCause(err)
	default:
		return NewCLIError(ErrorTypeUnknown, errMsg, err)
	}
}

// FormatError returns a user-friendly error message
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	cliErr := CategorizeError(err)
	var sb strings.Builder

	// Format the main error message
	sb.WriteString("❌ Error")
	if cliErr.Type != ErrorTypeUnknown {
		sb.WriteString(" (")
		sb.WriteString(string(cliErr.Type))
		sb.WriteString(")")
	}
	sb.WriteString(": ")
	sb.WriteString(cliErr.Message)
	sb.WriteString("\n")

	// Add suggestion if available
	if cliErr.HasSuggestion() {
		sb.WriteString("\n💡 Suggestion: ")
		sb.WriteString(cliErr.Suggestion)
		sb.WriteString("\n")
	}

	// Add retry info for rate limiting
	if cliErr.Type == ErrorTypeRateLimit && cliErr.RetryAfter > 0 {
		sb.WriteString(fmt.Sprintf("\n⏱️  Retry in: %d seconds\n", cliErr.RetryAfter))
	}

	return sb.String()
}
