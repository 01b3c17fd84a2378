package calendar

import (
	"errors"
	"fmt"
)

// PermissionError indicates the user's access token lacks the Calendar
// scopes needed for a request. The Google API signals this with HTTP 403;
// the response body is kept for diagnostics and surfaced to the caller.
type PermissionError struct {
	// Message is the short classification, normally
	// "ACCESS_TOKEN_SCOPE_INSUFFICIENT".
	Message string

	// Body is the decoded 403 response body: a map when the body was JSON,
	// the raw string otherwise.
	Body any
}

func (e *PermissionError) Error() string {
	return e.Message
}

// IsPermissionError reports whether err wraps a PermissionError.
func IsPermissionError(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// APIError is a non-2xx Google Calendar API response that is neither an
// auth failure nor a permission problem.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("calendar API returned %d: %s", e.StatusCode, e.Body)
}
