package assistant

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ModernResponsesAPIFirst(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		require.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		w.Write([]byte(`{"output_text":"hi from responses"}`))
	}))
	defer srv.Close()

	client := NewClient("key-1", slog.New(slog.DiscardHandler), WithBaseURL(srv.URL))

	payload, err := client.CreateChatCompletion(t.Context(), ChatRequest{
		Model:    "gpt-5",
		Messages: []Message{{Role: "user", Content: "hi"}},
		Tools:    calendarTools(),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"/responses"}, paths)
	assert.Equal(t, "hi from responses", payload["output_text"])
}

func TestClient_FallsBackToChatCompletions(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/responses" {
			http.Error(w, `{"error":"unknown endpoint"}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cmpl-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hi from legacy"}}]}`))
	}))
	defer srv.Close()

	client := NewClient("key-1", slog.New(slog.DiscardHandler), WithBaseURL(srv.URL))

	payload, err := client.CreateChatCompletion(t.Context(), ChatRequest{
		Model:    "gpt-3.5-turbo",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(paths), 2)
	assert.Equal(t, "/responses", paths[0])
	assert.Equal(t, "/chat/completions", paths[1])

	content, err := ExtractContent(payload)
	require.NoError(t, err)
	assert.Equal(t, "hi from legacy", content)
}

func TestClient_AllTransportsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"nope"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient("key-1", slog.New(slog.DiscardHandler), WithBaseURL(srv.URL))

	_, err := client.CreateChatCompletion(t.Context(), ChatRequest{
		Model:    "gpt-3.5-turbo",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.ErrorContains(t, err, "all LLM transports failed")
}
