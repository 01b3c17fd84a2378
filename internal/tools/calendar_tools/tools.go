package calendar_tools

import (
	"context"
	"errors"
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/calendai/calendai/internal/calendar"
	"github.com/calendai/calendai/internal/user"
)

// Deps carries the collaborators the calendar tools need.
type Deps struct {
	Store   user.Store
	Service *calendar.Service
}

// getUserFromArgs extracts the user ID from request arguments, defaulting to "default"
func getUserFromArgs(args map[string]interface{}) string {
	userID := "default"
	if userVal, ok := args["user"].(string); ok && userVal != "" {
		userID = userVal
	}
	return userID
}

// resolveUser loads the user named in the request arguments and verifies
// that a Google calendar is linked.
func resolveUser(ctx context.Context, args map[string]interface{}, deps Deps) (*user.User, error) {
	userID := getUserFromArgs(args)

	u, err := deps.Store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, fmt.Errorf("no stored user %q; connect a Google account first", userID)
		}
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	if !u.CalendarConnected {
		return nil, fmt.Errorf("user %q has not connected Google Calendar", userID)
	}
	return u, nil
}

// RegisterCalendarTools registers all calendar-related tools with the MCP server
func RegisterCalendarTools(s *mcpserver.MCPServer, deps Deps) error {
	if err := RegisterEventTools(s, deps); err != nil {
		return fmt.Errorf("failed to register event tools: %w", err)
	}

	if err := RegisterSchedulingTools(s, deps); err != nil {
		return fmt.Errorf("failed to register scheduling tools: %w", err)
	}

	return nil
}
