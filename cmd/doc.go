// Package cmd implements the command-line interface for calendai.
//
// This package provides the following commands:
//   - serve: Start the calendar assistant HTTP API server
//   - mcp: Start an MCP server exposing calendar tools for AI assistants
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
