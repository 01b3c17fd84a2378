package user

import (
	"time"
)

// User is the per-user record the calendar assistant operates on. The
// registration/login machinery that creates users lives outside this
// service; here the record carries the Google Calendar credential fields
// mutated by the token manager plus the assistant preferences.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`

	// Google Calendar OAuth credential. AccessToken and TokenExpiresAt are
	// rewritten on every refresh; RefreshToken only when Google rotates it.
	AccessToken    string     `json:"access_token,omitempty"`
	RefreshToken   string     `json:"refresh_token,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`

	// CalendarConnected records whether calendar scopes were ever granted.
	// A connected user without a refresh token cannot recover from token
	// expiry and must re-consent.
	CalendarConnected bool `json:"calendar_connected"`

	// Timezone is the user's explicitly selected IANA zone name. Empty means
	// unset, in which case the service falls back to a host-derived guess.
	Timezone string `json:"timezone,omitempty"`

	// Assistant preferences.
	Language     string `json:"language,omitempty"`
	OpenAIAPIKey string `json:"openai_api_key,omitempty"`
	AIModel      string `json:"ai_model,omitempty"`
}

// Clone returns a deep copy of the user record.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	clone := *u
	if u.TokenExpiresAt != nil {
		t := *u.TokenExpiresAt
		clone.TokenExpiresAt = &t
	}
	return &clone
}
