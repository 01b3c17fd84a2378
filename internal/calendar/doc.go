// Package calendar talks to the Google Calendar REST API on behalf of a
// user: an authenticated HTTP client with permission-error classification,
// and a service layer with event listing, creation, deletion and a free
// slot finder.
package calendar
