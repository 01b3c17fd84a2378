// Package assistant contains the LLM-backed calendar assistant: a client
// that negotiates between the Responses API and chat completions, a
// tolerant response parser, the two-turn tool-calling orchestrator, and a
// single-shot intent parser.
package assistant
