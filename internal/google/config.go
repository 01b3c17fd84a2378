package google

import (
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
)

// GoogleTokenURL is the endpoint access tokens are refreshed against.
const GoogleTokenURL = "https://oauth2.googleapis.com/token"

// Config holds the OAuth application credentials for the Google Calendar
// integration.
type Config struct {
	ClientID     string
	ClientSecret string

	// TokenURL overrides the Google token endpoint. Empty means
	// GoogleTokenURL; tests point it at a local server.
	TokenURL string

	// RedirectURL is where Google sends the user back after consent.
	RedirectURL string
}

func (c Config) tokenURL() string {
	if c.TokenURL != "" {
		return c.TokenURL
	}
	return GoogleTokenURL
}

// OAuthConfig returns the oauth2 configuration used for the consent flow.
func (c Config) OAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     googleoauth.Endpoint,
		RedirectURL:  c.RedirectURL,
		Scopes: []string{
			calendar.CalendarScope,
			calendar.CalendarEventsScope,
		},
	}
}

// ReauthorizeURL builds the consent URL a user must visit to re-grant
// calendar scopes. offline access with forced consent ensures Google issues
// a fresh refresh token.
func (c Config) ReauthorizeURL(state string) string {
	return c.OAuthConfig().AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
	)
}
