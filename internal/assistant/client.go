package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/calendai/calendai/internal/logging"
)

const (
	defaultLLMBaseURL = "https://api.openai.com/v1"
	llmTimeout        = 60 * time.Second
)

// Message is one turn of the conversation sent to the LLM.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the transport-neutral request the client translates into
// whichever API shape the negotiation lands on.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Tools       []openai.Tool
	Temperature float32
	MaxTokens   int
}

// ChatCompleter produces one LLM response as a loosely-typed payload. The
// orchestrator parses the payload with the multi-shape extractor, so the
// exact response family does not matter to callers.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req ChatRequest) (map[string]any, error)
}

// Client talks to an OpenAI-compatible LLM API. Newer models answer on the
// Responses API while older deployments only speak chat completions, so
// the client negotiates: the modern responses shape first, then the legacy
// SDK path, then a raw HTTP call against the completions endpoint.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL. Tests point it at a local server.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the HTTP client used for raw calls.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates an LLM client for the given API key.
func NewClient(apiKey string, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultLLMBaseURL,
		http:    &http.Client{Timeout: llmTimeout},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// CreateChatCompletion sends one conversation turn and returns the decoded
// response payload. Transport and shape negotiation happens here; the
// returned map follows whichever API family answered.
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatRequest) (map[string]any, error) {
	payload, err := c.createResponse(ctx, req)
	if err == nil {
		return payload, nil
	}
	c.logger.Debug("Responses API attempt failed, trying chat completions SDK", logging.Err(err))

	payload, sdkErr := c.createLegacyCompletion(ctx, req)
	if sdkErr == nil {
		return payload, nil
	}
	c.logger.Debug("Chat completions SDK attempt failed, trying raw HTTP", logging.Err(sdkErr))

	payload, rawErr := c.createRawCompletion(ctx, req)
	if rawErr == nil {
		return payload, nil
	}

	return nil, fmt.Errorf("all LLM transports failed: responses: %v; sdk: %v; raw: %w", err, sdkErr, rawErr)
}

// createResponse targets the modern Responses API.
func (c *Client) createResponse(ctx context.Context, req ChatRequest) (map[string]any, error) {
	body := map[string]any{
		"model": req.Model,
		"input": req.Messages,
	}
	if len(req.Tools) > 0 {
		// The Responses API flattens the function wrapper of the legacy
		// tool shape.
		tools := make([]map[string]any, 0, len(req.Tools))
		for _, tool := range req.Tools {
			if tool.Function == nil {
				continue
			}
			tools = append(tools, map[string]any{
				"type":        "function",
				"name":        tool.Function.Name,
				"description": tool.Function.Description,
				"parameters":  tool.Function.Parameters,
			})
		}
		body["tools"] = tools
	}
	if req.MaxTokens > 0 {
		body["max_output_tokens"] = req.MaxTokens
	}

	return c.post(ctx, "/responses", body)
}

// createLegacyCompletion uses the go-openai SDK against the chat
// completions endpoint and re-decodes the typed response into a map so all
// transports hand the extractor the same kind of payload.
func (c *Client) createLegacyCompletion(ctx context.Context, req ChatRequest) (map[string]any, error) {
	cfg := openai.DefaultConfig(c.apiKey)
	cfg.BaseURL = c.baseURL
	cfg.HTTPClient = c.http
	client := openai.NewClientWithConfig(cfg)

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Tools:       req.Tools,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode completion: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode completion: %w", err)
	}
	return payload, nil
}

// createRawCompletion is the last-resort transport: a plain HTTP POST to
// the chat completions endpoint.
func (c *Client) createRawCompletion(ctx context.Context, req ChatRequest) (map[string]any, error) {
	body := map[string]any{
		"model":    req.Model,
		"messages": req.Messages,
	}
	if len(req.Tools) > 0 {
		body["tools"] = req.Tools
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}

	return c.post(ctx, "/chat/completions", body)
}

func (c *Client) post(ctx context.Context, path string, body map[string]any) (map[string]any, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode LLM request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build LLM request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("LLM request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read LLM response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("LLM endpoint %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var payload map[string]any
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode LLM response: %w", err)
	}
	return payload, nil
}
