package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calendai/calendai/internal/logging"
	"github.com/calendai/calendai/internal/user"
)

// CalendarIntent is a structured reading of a natural-language calendar
// request, produced by the single-shot intent parser. It is a lighter
// alternative to the tool-calling orchestrator for callers that want the
// parsed fields without side effects.
type CalendarIntent struct {
	// Action is one of "create_event", "find_slot", "list_events",
	// "cancel_event", "unknown" or "error".
	Action          string   `json:"action"`
	Title           string   `json:"title,omitempty"`
	Description     string   `json:"description,omitempty"`
	StartTime       string   `json:"start_time,omitempty"`
	EndTime         string   `json:"end_time,omitempty"`
	DurationMinutes int      `json:"duration_minutes,omitempty"`
	Date            string   `json:"date,omitempty"`
	Participants    []string `json:"participants,omitempty"`
	Location        string   `json:"location,omitempty"`
	Confidence      float64  `json:"confidence"`
	RawMessage      string   `json:"raw_message"`
	Errors          []string `json:"errors,omitempty"`
}

// IntentParser turns free-form messages into CalendarIntent values via a
// single JSON-mode LLM call.
type IntentParser struct {
	llm    ChatCompleter
	logger *slog.Logger

	now func() time.Time
}

// NewIntentParser creates an intent parser.
func NewIntentParser(llm ChatCompleter, logger *slog.Logger) *IntentParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntentParser{llm: llm, logger: logger, now: time.Now}
}

// ParseCalendarMessage parses one message. It never returns an error:
// failures come back as an intent with Action "error" and zero confidence,
// so callers can always render something.
func (p *IntentParser) ParseCalendarMessage(ctx context.Context, u *user.User, message string) *CalendarIntent {
	model := u.AIModel
	if model == "" {
		model = defaultModel
	}
	timezone := u.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	payload, err := p.llm.CreateChatCompletion(ctx, ChatRequest{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: p.intentPrompt(timezone)},
			{Role: "user", Content: fmt.Sprintf("Parse this calendar request: %q", message)},
		},
		Temperature: 0.1,
		MaxTokens:   firstTurnMaxTokens,
	})
	if err != nil {
		p.logger.Error("Intent parsing LLM call failed",
			logging.Operation("parse_intent"),
			logging.UserHash(u.ID),
			logging.Err(err),
		)
		return errorIntent(message, err)
	}

	content, err := ExtractContent(payload)
	if err != nil {
		return errorIntent(message, err)
	}

	intent := &CalendarIntent{Action: "unknown", RawMessage: message}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), intent); err != nil {
		p.logger.Warn("Intent response was not valid JSON",
			logging.Operation("parse_intent"),
			logging.Err(err),
		)
		return errorIntent(message, err)
	}
	if intent.Action == "" {
		intent.Action = "unknown"
	}
	intent.RawMessage = message

	p.logger.Info("Parsed calendar intent",
		logging.Operation("parse_intent"),
		slog.String("action", intent.Action),
		slog.Float64("confidence", intent.Confidence),
	)
	return intent
}

// GenerateSmartResponse produces a short natural-language summary of an
// intent and the result of acting on it. Errors degrade to a plain
// acknowledgment instead of propagating.
func (p *IntentParser) GenerateSmartResponse(ctx context.Context, u *user.User, intent *CalendarIntent, result map[string]any) string {
	model := u.AIModel
	if model == "" {
		model = defaultModel
	}

	contextBlob, err := json.Marshal(map[string]any{
		"intent":           intent.Action,
		"success":          result != nil && result["error"] == nil,
		"result":           result,
		"original_message": intent.RawMessage,
	})
	if err != nil {
		return "Your request was processed."
	}

	payload, err := p.llm.CreateChatCompletion(ctx, ChatRequest{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: "You are a helpful calendar assistant. Generate natural, friendly responses about calendar operations. Be concise but informative. If there were errors, explain them clearly with suggested solutions."},
			{Role: "user", Content: "Generate a response for this calendar operation: " + string(contextBlob)},
		},
		Temperature: 0.7,
		MaxTokens:   300,
	})
	if err != nil {
		return "Your request was processed, but I could not generate a summary."
	}

	content, err := ExtractContent(payload)
	if err != nil {
		return "Your request was processed, but I could not generate a summary."
	}
	return strings.TrimSpace(content)
}

func (p *IntentParser) intentPrompt(timezone string) string {
	return fmt.Sprintf(`You are a calendar parsing assistant. Parse natural language messages into structured calendar intents.

Current time: %s
User timezone: %s

Return JSON with these fields:
- action: One of "create_event", "find_slot", "list_events", "cancel_event", "unknown"
- title: Event title (if creating event)
- description: Event description (optional)
- start_time: ISO datetime string (if specific time mentioned)
- end_time: ISO datetime string (if end time mentioned)
- duration_minutes: Integer duration (if mentioned or inferred)
- date: ISO date string (if date mentioned without specific time)
- participants: Array of email addresses or names (if mentioned)
- location: Location string (if mentioned)
- confidence: Float 0-1 indicating parsing confidence
- errors: Array of parsing issues or ambiguities

Be precise with datetime parsing. Consider relative dates, times, and durations.
Set confidence based on clarity and completeness of the parsed information.`,
		p.now().Format(time.RFC3339), timezone)
}

func errorIntent(message string, err error) *CalendarIntent {
	return &CalendarIntent{
		Action:     "error",
		RawMessage: message,
		Errors:     []string{fmt.Sprintf("failed to parse message: %v", err)},
	}
}
