package calendar_tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/calendai/calendai/internal/calendar"
)

// RegisterSchedulingTools registers availability-search tools with the MCP server
func RegisterSchedulingTools(s *mcpserver.MCPServer, deps Deps) error {
	findSlotsTool := mcp.NewTool("calendar_find_free_slots",
		mcp.WithDescription("Find free time slots within working hours over a date range"),
		mcp.WithString("user",
			mcp.Description("Stored user ID (default: 'default')"),
		),
		mcp.WithString("start_date",
			mcp.Required(),
			mcp.Description("First day to search (YYYY-MM-DD)"),
		),
		mcp.WithString("end_date",
			mcp.Required(),
			mcp.Description("Last day to search (YYYY-MM-DD)"),
		),
		mcp.WithNumber("duration_minutes",
			mcp.Description("Required slot length in minutes (default: 60)"),
		),
	)

	s.AddTool(findSlotsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleFindFreeSlots(ctx, request, deps)
	})

	return nil
}

func handleFindFreeSlots(ctx context.Context, request mcp.CallToolRequest, deps Deps) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	u, err := resolveUser(ctx, args, deps)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	loc := deps.Service.Timezone(u)

	startStr, ok := args["start_date"].(string)
	if !ok || startStr == "" {
		return mcp.NewToolResultError("start_date is required"), nil
	}
	start, err := time.ParseInLocation("2006-01-02", startStr, loc)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid start_date format: %v", err)), nil
	}

	endStr, ok := args["end_date"].(string)
	if !ok || endStr == "" {
		return mcp.NewToolResultError("end_date is required"), nil
	}
	end, err := time.ParseInLocation("2006-01-02", endStr, loc)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid end_date format: %v", err)), nil
	}

	duration := 60
	if durationVal, ok := args["duration_minutes"].(float64); ok && durationVal > 0 {
		duration = int(durationVal)
	}

	slots, err := deps.Service.FindAvailableSlots(ctx, u, start, end,
		time.Duration(duration)*time.Minute, calendar.WorkingHours{})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to find free slots: %v", err)), nil
	}

	result := fmt.Sprintf("Found %d free %d-minute slots:\n\n", len(slots), duration)
	for i, slot := range slots {
		result += fmt.Sprintf("%d. %s - %s\n", i+1,
			slot.Start.Format(time.RFC3339), slot.End.Format(time.RFC3339))
	}

	return mcp.NewToolResultText(result), nil
}
