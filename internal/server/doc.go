// Package server exposes the calendar assistant HTTP API plus the health
// and metrics listeners. Handlers stay thin: authenticate, validate,
// delegate to the calendar service or the chat orchestrator, serialize.
package server
