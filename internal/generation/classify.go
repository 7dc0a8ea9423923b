package generation

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// StatusError is a non-2xx answer from an HTTP provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.Code, truncateString(e.Body, 200))
}

// Classify maps a provider error onto the generation taxonomy. Errors that
// are already *Error are returned unchanged. Context cancellation and
// deadlines are not inspected here; the Client decides those from its own
// contexts.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}

	// genai returns APIError by value; accept both forms.
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code, apiErr.Status+" "+apiErr.Message, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return classifyStatus(apiErrPtr.Code, apiErrPtr.Status+" "+apiErrPtr.Message, err)
	}

	var se *StatusError
	if errors.As(err, &se) {
		return classifyStatus(se.Code, se.Body, err)
	}

	if isRateLimitMessage(err.Error()) {
		return &Error{Kind: KindRateLimited, Message: "API quota exceeded or rate limited", Err: err}
	}
	return &Error{Kind: KindProvider, Message: "provider request failed", Err: err}
}

func classifyStatus(code int, detail string, err error) *Error {
	switch {
	case code == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimited, Status: code, Message: "API rate limit exceeded", Err: err}
	case isRateLimitMessage(detail):
		return &Error{Kind: KindRateLimited, Status: code, Message: "API quota exceeded", Err: err}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &Error{Kind: KindProvider, Status: code, Message: "API key is invalid, expired, or lacks permissions", Err: err}
	case code == http.StatusBadRequest:
		return &Error{Kind: KindProvider, Status: code, Message: "bad request, the API key or model may be malformed", Err: err}
	case code >= 500:
		return &Error{Kind: KindProvider, Status: code, Message: "provider server error", Err: err}
	default:
		return &Error{Kind: KindProvider, Status: code, Message: "provider request failed", Err: err}
	}
}

func isRateLimitMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "quota") ||
		strings.Contains(lower, "resource exhausted") ||
		strings.Contains(lower, "resource_exhausted") ||
		strings.Contains(lower, "rate limit")
}

// truncateString truncates a string to maxLen, appending "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
