// Package logging provides structured logging helpers built on log/slog.
//
// It defines canonical attribute keys used across the codebase, nil-safe
// error attributes, and PII-safe helpers for logging user identifiers and
// tokens.
package logging
