package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calendai/calendai/internal/calendar"
	"github.com/calendai/calendai/internal/google"
	"github.com/calendai/calendai/internal/user"
)

type scriptedLLM struct {
	responses []map[string]any
	errs      []error
	requests  []ChatRequest
}

func (s *scriptedLLM) CreateChatCompletion(_ context.Context, req ChatRequest) (map[string]any, error) {
	s.requests = append(s.requests, req)
	i := len(s.requests) - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.responses) {
		return nil, fmt.Errorf("unexpected LLM call %d", i)
	}
	return s.responses[i], nil
}

type fakeRunner struct {
	run   func(ctx context.Context, u *user.User, call ToolCall) (map[string]any, error)
	calls []ToolCall
}

func (f *fakeRunner) Run(ctx context.Context, u *user.User, call ToolCall) (map[string]any, error) {
	f.calls = append(f.calls, call)
	return f.run(ctx, u, call)
}

func newTestOrchestrator(llm ChatCompleter, runner ToolRunner) *Orchestrator {
	logger := slog.New(slog.DiscardHandler)
	svc := calendar.NewService(nil, logger, nil)
	oauth := google.Config{ClientID: "cid", RedirectURL: "https://app.example.com/oauth/callback"}
	return NewOrchestrator(llm, runner, svc, oauth, logger, nil)
}

func TestProcessChat_ToolCallThenFinalResponse(t *testing.T) {
	args, err := json.Marshal(map[string]any{"date": "2025-09-22", "start_date": "", "end_date": ""})
	require.NoError(t, err)

	llm := &scriptedLLM{responses: []map[string]any{
		{"output": []any{map[string]any{
			"type":      "function_call",
			"name":      "get_calendar_events",
			"arguments": string(args),
		}}},
		{"output_text": "Hai 2 eventi domani: Riunione 10:00, Standup 15:00"},
	}}

	runner := &fakeRunner{run: func(_ context.Context, _ *user.User, call ToolCall) (map[string]any, error) {
		assert.Equal(t, "get_calendar_events", call.Name)
		assert.Equal(t, "2025-09-22", call.Arguments["date"])
		return map[string]any{"success": true, "events": []any{
			map[string]any{"title": "Riunione", "start": "2025-09-22T10:00:00"},
		}}, nil
	}}

	o := newTestOrchestrator(llm, runner)
	u := &user.User{ID: "u1", Language: "italian"}

	result, err := o.ProcessChat(t.Context(), u, "che cosa ho da fare domani?")
	require.NoError(t, err)

	assert.Contains(t, result.Message, "Hai 2 eventi")
	assert.False(t, result.NeedsReauthorization)
	require.Len(t, llm.requests, 2)

	// First turn carries the tool set, the final turn must not.
	assert.NotEmpty(t, llm.requests[0].Tools)
	assert.Empty(t, llm.requests[1].Tools)

	// Tool results travel as an assistant-role JSON blob.
	var sawResults bool
	for _, msg := range llm.requests[1].Messages {
		if msg.Role == "assistant" && strings.Contains(msg.Content, "Riunione") {
			sawResults = true
		}
	}
	assert.True(t, sawResults, "second turn should include serialized tool results")
}

func TestProcessChat_DirectAnswerSkipsTools(t *testing.T) {
	llm := &scriptedLLM{responses: []map[string]any{
		{"output_text": "You have nothing scheduled."},
	}}
	runner := &fakeRunner{run: func(context.Context, *user.User, ToolCall) (map[string]any, error) {
		t.Fatal("no tool should run for a direct answer")
		return nil, nil
	}}

	o := newTestOrchestrator(llm, runner)

	result, err := o.ProcessChat(t.Context(), &user.User{ID: "u1"}, "hello")
	require.NoError(t, err)
	assert.Equal(t, "You have nothing scheduled.", result.Message)
	assert.Len(t, llm.requests, 1)
}

func TestProcessChat_PermissionShortCircuit(t *testing.T) {
	llm := &scriptedLLM{responses: []map[string]any{
		{"output": []any{map[string]any{
			"type":      "function_call",
			"name":      "get_calendar_events",
			"arguments": "{}",
		}}},
		// A second response is scripted on purpose: reaching it would mean
		// the short-circuit failed.
		{"output_text": "should never be requested"},
	}}
	runner := &fakeRunner{run: func(context.Context, *user.User, ToolCall) (map[string]any, error) {
		return nil, &calendar.PermissionError{Message: "ACCESS_TOKEN_SCOPE_INSUFFICIENT"}
	}}

	o := newTestOrchestrator(llm, runner)

	result, err := o.ProcessChat(t.Context(), &user.User{ID: "u1", Language: "italian"}, "what's on today?")
	require.NoError(t, err)

	assert.True(t, result.NeedsReauthorization)
	assert.NotEmpty(t, result.ReauthorizeURL)
	assert.Contains(t, result.Message, "Ricollega")
	assert.Len(t, llm.requests, 1, "the second LLM turn must never happen after a permission failure")
}

func TestProcessChat_PermissionSentinelInWrappedError(t *testing.T) {
	llm := &scriptedLLM{responses: []map[string]any{
		{"output": []any{map[string]any{
			"type":      "function_call",
			"name":      "get_calendar_events",
			"arguments": "{}",
		}}},
	}}
	runner := &fakeRunner{run: func(context.Context, *user.User, ToolCall) (map[string]any, error) {
		return nil, fmt.Errorf("tool failed: ACCESS_TOKEN_SCOPE_INSUFFICIENT")
	}}

	o := newTestOrchestrator(llm, runner)

	result, err := o.ProcessChat(t.Context(), &user.User{ID: "u1"}, "list my events")
	require.NoError(t, err)
	assert.True(t, result.NeedsReauthorization)
}

func TestProcessChat_ToolErrorFedBackToLLM(t *testing.T) {
	llm := &scriptedLLM{responses: []map[string]any{
		{"output": []any{map[string]any{
			"type":      "function_call",
			"name":      "create_calendar_event",
			"arguments": `{"title":"x","start_time":"bogus"}`,
		}}},
		{"output_text": "I could not create that event: the start time was invalid."},
	}}
	runner := &fakeRunner{run: func(context.Context, *user.User, ToolCall) (map[string]any, error) {
		return nil, fmt.Errorf("invalid start_time")
	}}

	o := newTestOrchestrator(llm, runner)

	result, err := o.ProcessChat(t.Context(), &user.User{ID: "u1"}, "schedule x at bogus")
	require.NoError(t, err)

	assert.Contains(t, result.Message, "could not create")
	require.Len(t, llm.requests, 2)

	var sawFailure bool
	for _, msg := range llm.requests[1].Messages {
		if strings.Contains(msg.Content, `"success":false`) {
			sawFailure = true
		}
	}
	assert.True(t, sawFailure, "failed tool result should be serialized into the final turn")
}

func TestProcessChat_SequentialMultiToolExecution(t *testing.T) {
	llm := &scriptedLLM{responses: []map[string]any{
		{"output": []any{
			map[string]any{"type": "function_call", "name": "get_calendar_events", "arguments": "{}"},
			map[string]any{"type": "function_call", "name": "find_free_slots", "arguments": `{"start_date":"2026-05-04","end_date":"2026-05-04"}`},
		}},
		{"output_text": "done"},
	}}
	runner := &fakeRunner{run: func(_ context.Context, _ *user.User, call ToolCall) (map[string]any, error) {
		return map[string]any{"success": true}, nil
	}}

	o := newTestOrchestrator(llm, runner)

	_, err := o.ProcessChat(t.Context(), &user.User{ID: "u1"}, "busy tomorrow? when am I free?")
	require.NoError(t, err)

	require.Len(t, runner.calls, 2)
	assert.Equal(t, "get_calendar_events", runner.calls[0].Name)
	assert.Equal(t, "find_free_slots", runner.calls[1].Name)
}

func TestProcessChat_LLMFailureReturnsLocalizedFallback(t *testing.T) {
	llm := &scriptedLLM{errs: []error{fmt.Errorf("all transports down")}}
	o := newTestOrchestrator(llm, &fakeRunner{run: func(context.Context, *user.User, ToolCall) (map[string]any, error) {
		return nil, nil
	}})

	result, err := o.ProcessChat(t.Context(), &user.User{ID: "u1", Language: "italian"}, "ciao")
	require.NoError(t, err)
	assert.Contains(t, result.Message, "Mi dispiace")

	result, err = o.ProcessChat(t.Context(), &user.User{ID: "u1"}, "hi")
	require.NoError(t, err)
	assert.Contains(t, result.Message, "Sorry")
}

func TestProcessChat_TokenRefreshErrorPropagates(t *testing.T) {
	llm := &scriptedLLM{responses: []map[string]any{
		{"output": []any{map[string]any{
			"type":      "function_call",
			"name":      "get_calendar_events",
			"arguments": "{}",
		}}},
	}}
	runner := &fakeRunner{run: func(context.Context, *user.User, ToolCall) (map[string]any, error) {
		return nil, &google.TokenRefreshError{Reason: "no refresh token available"}
	}}

	o := newTestOrchestrator(llm, runner)

	_, err := o.ProcessChat(t.Context(), &user.User{ID: "u1"}, "list events")

	var refreshErr *google.TokenRefreshError
	require.ErrorAs(t, err, &refreshErr)
}

func TestSystemPrompt(t *testing.T) {
	o := newTestOrchestrator(&scriptedLLM{}, &fakeRunner{})

	prompt := o.systemPrompt(&user.User{ID: "u1", Timezone: "Europe/Rome", Language: "italian"})
	assert.Contains(t, prompt, "Europe/Rome")
	assert.Contains(t, prompt, "italian")

	prompt = o.systemPrompt(&user.User{ID: "u2"})
	assert.Contains(t, prompt, "english")
}
