// Package calendar_tools exposes the calendar assistant's operations as
// MCP tools so AI agents can list events, create events, and search for
// free slots on behalf of a stored user.
package calendar_tools
