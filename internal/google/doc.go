// Package google handles Google OAuth credentials for the calendar
// integration: the consent configuration and the per-user access token
// refresh lifecycle.
package google
