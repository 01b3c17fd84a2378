package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calendai/calendai/internal/calendar"
	"github.com/calendai/calendai/internal/google"
	"github.com/calendai/calendai/internal/instrumentation"
	"github.com/calendai/calendai/internal/logging"
	"github.com/calendai/calendai/internal/user"
)

const (
	defaultModel = "gpt-3.5-turbo"

	firstTurnMaxTokens = 800
	finalTurnMaxTokens = 600
)

// permissionSentinel is the substring Google puts in insufficient-scope
// error bodies. Tool errors are matched against it as a fallback when the
// typed permission error got wrapped beyond errors.As reach.
const permissionSentinel = "ACCESS_TOKEN_SCOPE_INSUFFICIENT"

// ChatResult is the outcome of one chat orchestration.
type ChatResult struct {
	// Message is the natural-language reply shown to the user.
	Message string `json:"message"`

	// NeedsReauthorization is set when a tool hit a calendar scope
	// failure. The LLM never sees such failures; the user has to re-grant
	// access first.
	NeedsReauthorization bool `json:"calendar_permission_error,omitempty"`

	// ReauthorizeURL is the consent URL to send the user to, set together
	// with NeedsReauthorization.
	ReauthorizeURL string `json:"reauthorize_url,omitempty"`
}

// ToolRunner executes one tool call on behalf of a user.
type ToolRunner interface {
	Run(ctx context.Context, u *user.User, call ToolCall) (map[string]any, error)
}

// Orchestrator drives the two-turn chat protocol: one LLM turn with tools
// attached, sequential tool execution, then a final LLM turn over the
// accumulated tool results. Turns are never parallelized; the second turn
// depends on the first turn's results.
type Orchestrator struct {
	llm      ChatCompleter
	tools    ToolRunner
	calendar *calendar.Service
	oauth    google.Config
	logger   *slog.Logger
	metrics  *instrumentation.Metrics

	now func() time.Time
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithOrchestratorClock overrides the time source used in prompts.
func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator wires the chat orchestrator.
func NewOrchestrator(llm ChatCompleter, tools ToolRunner, svc *calendar.Service, oauth google.Config, logger *slog.Logger, metrics *instrumentation.Metrics, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		llm:      llm,
		tools:    tools,
		calendar: svc,
		oauth:    oauth,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.metrics == nil {
		o.metrics = &instrumentation.Metrics{}
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessChat handles one user message end to end. Auth failures
// (*google.TokenRefreshError) propagate so the HTTP layer can answer 401;
// every other failure is absorbed into a localized fallback sentence.
func (o *Orchestrator) ProcessChat(ctx context.Context, u *user.User, message string) (*ChatResult, error) {
	result, err := o.processChat(ctx, u, message)
	if err != nil {
		var refreshErr *google.TokenRefreshError
		if errors.As(err, &refreshErr) {
			return nil, err
		}
		o.logger.Error("Chat orchestration failed",
			logging.Operation("process_chat"),
			logging.UserHash(u.ID),
			logging.Err(err),
		)
		return &ChatResult{Message: fallbackMessage(u.Language)}, nil
	}
	return result, nil
}

func (o *Orchestrator) processChat(ctx context.Context, u *user.User, message string) (*ChatResult, error) {
	model := u.AIModel
	if model == "" {
		model = defaultModel
	}

	messages := []Message{
		{Role: "system", Content: o.systemPrompt(u)},
		{Role: "user", Content: message},
	}

	first, err := o.llm.CreateChatCompletion(ctx, ChatRequest{
		Model:     model,
		Messages:  messages,
		Tools:     calendarTools(),
		MaxTokens: firstTurnMaxTokens,
	})
	if err != nil {
		o.metrics.RecordChatTurn(ctx, "first", "error")
		return nil, fmt.Errorf("first LLM turn failed: %w", err)
	}
	o.metrics.RecordChatTurn(ctx, "first", "success")

	calls := ExtractToolCalls(first)
	if len(calls) == 0 {
		content, err := ExtractContent(first)
		if err != nil {
			return nil, fmt.Errorf("no tool calls and no content in first turn: %w", err)
		}
		return &ChatResult{Message: content}, nil
	}

	// Tools run strictly one at a time, in the order the model requested
	// them, accumulating results for the follow-up turn.
	toolResults := make([]map[string]any, 0, len(calls))
	for _, call := range calls {
		result, err := o.tools.Run(ctx, u, call)
		if err != nil {
			var refreshErr *google.TokenRefreshError
			if errors.As(err, &refreshErr) {
				return nil, err
			}
			if isPermissionFailure(err) {
				// The model cannot fix a scope problem; skip the second
				// turn and hand the user a consent link instead.
				o.logger.Warn("Tool execution hit calendar permission error",
					logging.Operation("process_chat"),
					logging.UserHash(u.ID),
					logging.Tool(call.Name),
				)
				return &ChatResult{
					Message:              permissionMessage(u.Language),
					NeedsReauthorization: true,
					ReauthorizeURL:       o.oauth.ReauthorizeURL("reconnect"),
				}, nil
			}
			result = map[string]any{"success": false, "error": err.Error()}
		}
		toolResults = append(toolResults, map[string]any{
			"tool":   call.Name,
			"result": result,
		})
	}

	// Tool results travel as a JSON blob in an assistant-role message.
	// The dedicated function/tool roles are not portable across the two
	// response families this client speaks.
	blob, err := json.Marshal(toolResults)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool results: %w", err)
	}
	messages = append(messages, Message{
		Role:    "assistant",
		Content: "Tool results: " + string(blob),
	})
	messages = append(messages, Message{
		Role:    "user",
		Content: "Answer the original request using the tool results above.",
	})

	final, err := o.llm.CreateChatCompletion(ctx, ChatRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: finalTurnMaxTokens,
	})
	if err != nil {
		o.metrics.RecordChatTurn(ctx, "final", "error")
		return nil, fmt.Errorf("final LLM turn failed: %w", err)
	}
	o.metrics.RecordChatTurn(ctx, "final", "success")

	content, err := ExtractContent(final)
	if err != nil {
		return nil, fmt.Errorf("no content in final turn: %w", err)
	}
	return &ChatResult{Message: content}, nil
}

func (o *Orchestrator) systemPrompt(u *user.User) string {
	loc := o.calendar.Timezone(u)
	now := o.now().In(loc)
	language := u.Language
	if language == "" {
		language = "english"
	}

	return fmt.Sprintf(`You are a calendar assistant. You help the user manage their Google Calendar.

Current time: %s
User timezone: %s
Reply language: %s

Use the provided tools to read the calendar, create events, or find free
slots. Interpret relative dates ("tomorrow", "next friday") against the
current time above. When the user gives a time without a timezone, assume
the user timezone. Always answer in the reply language.`,
		now.Format(time.RFC3339), loc.String(), language)
}

// isPermissionFailure detects calendar scope failures, either as the typed
// error or by the sentinel substring when the type got lost in wrapping.
func isPermissionFailure(err error) bool {
	if calendar.IsPermissionError(err) {
		return true
	}
	return strings.Contains(err.Error(), permissionSentinel)
}

// fallbackMessage is the generic apology returned when the whole
// orchestration failed, in the user's preferred language.
func fallbackMessage(language string) string {
	switch strings.ToLower(language) {
	case "italian", "it":
		return "Mi dispiace, si è verificato un problema nell'elaborazione della tua richiesta. Riprova tra poco."
	case "spanish", "es":
		return "Lo siento, hubo un problema al procesar tu solicitud. Inténtalo de nuevo en un momento."
	case "french", "fr":
		return "Désolé, un problème est survenu lors du traitement de votre demande. Veuillez réessayer."
	case "german", "de":
		return "Entschuldigung, bei der Verarbeitung deiner Anfrage ist ein Problem aufgetreten. Bitte versuche es erneut."
	default:
		return "Sorry, something went wrong while processing your request. Please try again in a moment."
	}
}

// permissionMessage explains a scope failure, in the user's preferred
// language.
func permissionMessage(language string) string {
	switch strings.ToLower(language) {
	case "italian", "it":
		return "Non ho i permessi necessari per accedere al tuo calendario. Ricollega Google Calendar per continuare."
	case "spanish", "es":
		return "No tengo los permisos necesarios para acceder a tu calendario. Vuelve a conectar Google Calendar para continuar."
	case "french", "fr":
		return "Je n'ai pas les autorisations nécessaires pour accéder à votre calendrier. Reconnectez Google Agenda pour continuer."
	case "german", "de":
		return "Mir fehlen die Berechtigungen für deinen Kalender. Verbinde Google Kalender erneut, um fortzufahren."
	default:
		return "I don't have the permissions needed to access your calendar. Please reconnect Google Calendar to continue."
	}
}
