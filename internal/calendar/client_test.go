package calendar

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calendai/calendai/internal/google"
	"github.com/calendai/calendai/internal/user"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// freshUser returns a user whose token does not need refreshing, so tests
// never hit a token endpoint.
func freshUser() *user.User {
	expiry := time.Now().Add(time.Hour)
	return &user.User{
		ID:                "u1",
		AccessToken:       "test-token",
		RefreshToken:      "refresh",
		TokenExpiresAt:    &expiry,
		CalendarConnected: true,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokens := google.NewTokenManager(google.Config{TokenURL: srv.URL + "/token"}, user.NewMemoryStore(), testLogger())
	return NewClient(tokens, testLogger(), WithBaseURL(srv.URL))
}

func TestClientRequest_SetsAuthAndContentType(t *testing.T) {
	var gotAuth, gotContentType string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{}`))
	})

	resp, err := client.Request(t.Context(), freshUser(), http.MethodGet, "calendars/primary/events", RequestOptions{})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
}

func TestClientRequest_CallerHeadersWin(t *testing.T) {
	var gotContentType string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{}`))
	})

	_, err := client.Request(t.Context(), freshUser(), http.MethodPost, "calendars/primary/events", RequestOptions{
		Headers: map[string]string{"Content-Type": "text/plain"},
	})
	require.NoError(t, err)
	assert.Equal(t, "text/plain", gotContentType)
}

func TestClientRequest_PermissionErrorWithJSONBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"status":"PERMISSION_DENIED","message":"insufficient scopes"}}`))
	})

	_, err := client.Request(t.Context(), freshUser(), http.MethodGet, "calendars/primary/events", RequestOptions{})

	var perm *PermissionError
	require.ErrorAs(t, err, &perm)
	assert.Equal(t, "ACCESS_TOKEN_SCOPE_INSUFFICIENT", perm.Message)

	body, ok := perm.Body.(map[string]any)
	require.True(t, ok, "JSON 403 body should decode to a map")
	assert.Contains(t, body, "error")

	assert.True(t, IsPermissionError(err))
}

func TestClientRequest_PermissionErrorWithTextBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("forbidden"))
	})

	_, err := client.Request(t.Context(), freshUser(), http.MethodGet, "calendars/primary/events", RequestOptions{})

	var perm *PermissionError
	require.ErrorAs(t, err, &perm)
	assert.Equal(t, "forbidden", perm.Body)
}

func TestClientRequest_PropagatesTokenRefreshError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("API should not be reached when the token cannot be refreshed")
	})

	// No access token and no refresh token: refresh must fail before any
	// calendar request goes out.
	u := &user.User{ID: "u1"}

	_, err := client.Request(t.Context(), u, http.MethodGet, "calendars/primary/events", RequestOptions{})

	var refreshErr *google.TokenRefreshError
	require.ErrorAs(t, err, &refreshErr)
	assert.False(t, IsPermissionError(err))
}

func TestClientRequest_OtherStatusesReturnedToCaller(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	})

	resp, err := client.Request(t.Context(), freshUser(), http.MethodGet, "calendars/primary/events/abc", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
