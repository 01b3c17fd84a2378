package google

import "fmt"

// TokenRefreshError indicates that a Google access token could not be
// refreshed. Callers detect it with errors.As and typically respond by
// asking the user to reconnect their calendar.
type TokenRefreshError struct {
	// Reason is a short human-readable explanation.
	Reason string

	// StatusCode is the HTTP status of the token endpoint response, or 0
	// when the request never completed.
	StatusCode int

	// Err is the underlying transport or decode error, if any.
	Err error
}

func (e *TokenRefreshError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token refresh failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("token refresh failed: %s", e.Reason)
}

func (e *TokenRefreshError) Unwrap() error {
	return e.Err
}
