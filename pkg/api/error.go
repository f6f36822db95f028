package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	clierrors "github.com/zfogg/nearby/cli/pkg/errors"
)

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Success bool                   `json:"success"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// APIError represents an API error response
type APIError struct {
	Code       string
	Message    string
	StatusCode int
	Details    map[string]interface{}
}

func (e *APIError) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("[%d] %s: %s (details: %v)", e.StatusCode, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s: %s", e.StatusCode, e.Code, e.Message)
}

// ParseError turns a non-2xx response into a categorized error whose cause
// is the *APIError.
func ParseError(resp *resty.Response) error {
	statusCode := resp.StatusCode()

	apiErr := &APIError{
		Code:       "unknown_error",
		Message:    string(resp.Body()),
		StatusCode: statusCode,
	}

	// Try to parse as JSON error response
	var errResp ErrorResponse
	if err := json.Unmarshal(resp.Body(), &errResp); err == nil && (errResp.Code != "" || errResp.Message != "") {
		apiErr.Code = errResp.Code
		apiErr.Message = errResp.Message
		apiErr.Details = errResp.Details
	}

	message := apiErr.Message
	if len(message) > 200 {
		message = message[:200]
	}
	cliErr := clierrors.FromStatus(statusCode, message).WithCause(apiErr)
	if statusCode == http.StatusTooManyRequests {
		if secs := resp.Header().Get("Retry-After"); secs != "" {
			var n int
			if _, err := fmt.Sscanf(secs, "%d", &n); err == nil && n > 0 {
				cliErr.RetryAfter = n
				cliErr.Suggestion = fmt.Sprintf("Please wait %d seconds before trying again.", n)
			}
		}
	}
	return cliErr
}

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsUnauthorized checks if error is due to missing/invalid authentication
func IsUnauthorized(err error) bool {
	return statusOf(err) == http.StatusUnauthorized
}

// IsNotFound checks if error is due to resource not found
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// CheckResponse checks if response is successful and returns error if not
func CheckResponse(resp *resty.Response, err error) error {
	if err != nil {
		return clierrors.CategorizeError(err)
	}

	if !resp.IsSuccess() {
		return ParseError(resp)
	}

	return nil
}
