package assistant

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ToolCall is a tool invocation requested by the LLM, with its arguments
// already decoded to a map.
type ToolCall struct {
	Name      string
	Arguments map[string]any
}

// ExtractContent pulls the assistant's text out of an LLM response
// payload. Different API families and SDK versions disagree on where the
// text lives, so the strategies are tried in a fixed priority order:
//
//  1. a direct output_text field (Responses API convenience field)
//  2. a text item inside output[].content[] (Responses API message items)
//  3. choices[0].message.content as a string (chat completions)
//  4. choices[0].message.content as an object carrying a text field
//  5. any top-level string field that plausibly holds the answer
//
// A payload matching none of these is a fatal parsing error.
func ExtractContent(payload map[string]any) (string, error) {
	if s, ok := payload["output_text"].(string); ok && strings.TrimSpace(s) != "" {
		return s, nil
	}

	if output, ok := payload["output"].([]any); ok {
		for _, item := range output {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if s, ok := m["text"].(string); ok && strings.TrimSpace(s) != "" {
				return s, nil
			}
			content, ok := m["content"].([]any)
			if !ok {
				continue
			}
			for _, ci := range content {
				cm, ok := ci.(map[string]any)
				if !ok {
					continue
				}
				switch cm["type"] {
				case "output_text", "text", nil:
					if s, ok := cm["text"].(string); ok && strings.TrimSpace(s) != "" {
						return s, nil
					}
				}
			}
		}
	}

	if message := firstChoiceMessage(payload); message != nil {
		if s, ok := message["content"].(string); ok && strings.TrimSpace(s) != "" {
			return s, nil
		}
		if cm, ok := message["content"].(map[string]any); ok {
			if s, ok := cm["text"].(string); ok && strings.TrimSpace(s) != "" {
				return s, nil
			}
		}
	}

	for _, key := range []string{"content", "text", "message", "response"} {
		if s, ok := payload[key].(string); ok && strings.TrimSpace(s) != "" {
			return s, nil
		}
	}

	return "", fmt.Errorf("no text content found in LLM response")
}

// ExtractToolCalls collects the tool invocations requested in an LLM
// response, across the response shapes ExtractContent tolerates: Responses
// API function_call output items (flat or nested under a message's content
// list) and legacy chat-completions tool_calls. An empty slice means the
// model answered directly.
func ExtractToolCalls(payload map[string]any) []ToolCall {
	var calls []ToolCall

	if output, ok := payload["output"].([]any); ok {
		for _, item := range output {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if call, ok := functionCallItem(m); ok {
				calls = append(calls, call)
				continue
			}
			if content, ok := m["content"].([]any); ok {
				for _, ci := range content {
					cm, ok := ci.(map[string]any)
					if !ok {
						continue
					}
					if call, ok := functionCallItem(cm); ok {
						calls = append(calls, call)
					}
				}
			}
		}
	}

	if message := firstChoiceMessage(payload); message != nil {
		if toolCalls, ok := message["tool_calls"].([]any); ok {
			for _, tc := range toolCalls {
				m, ok := tc.(map[string]any)
				if !ok {
					continue
				}
				fn, ok := m["function"].(map[string]any)
				if !ok {
					continue
				}
				name, _ := fn["name"].(string)
				if name == "" {
					continue
				}
				calls = append(calls, ToolCall{
					Name:      name,
					Arguments: decodeArguments(fn["arguments"]),
				})
			}
		}
	}

	return calls
}

// functionCallItem recognizes a Responses API function_call item.
func functionCallItem(m map[string]any) (ToolCall, bool) {
	t, _ := m["type"].(string)
	if t != "function_call" && t != "tool_call" {
		return ToolCall{}, false
	}
	name, _ := m["name"].(string)
	if name == "" {
		return ToolCall{}, false
	}
	return ToolCall{Name: name, Arguments: decodeArguments(m["arguments"])}, true
}

// decodeArguments normalizes tool arguments: already-decoded maps pass
// through, JSON-encoded strings get a second parse. Anything else yields
// an empty argument map rather than failing the whole orchestration.
func decodeArguments(v any) map[string]any {
	switch args := v.(type) {
	case map[string]any:
		return args
	case string:
		var decoded map[string]any
		if err := json.Unmarshal([]byte(args), &decoded); err == nil {
			return decoded
		}
	}
	return map[string]any{}
}

func firstChoiceMessage(payload map[string]any) map[string]any {
	choices, ok := payload["choices"].([]any)
	if !ok || len(choices) == 0 {
		return nil
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return nil
	}
	message, ok := first["message"].(map[string]any)
	if !ok {
		return nil
	}
	return message
}
