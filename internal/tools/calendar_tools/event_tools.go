package calendar_tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/calendai/calendai/internal/calendar"
)

// RegisterEventTools registers event-related tools with the MCP server
func RegisterEventTools(s *mcpserver.MCPServer, deps Deps) error {
	// List events tool (read-only, always available)
	listEventsTool := mcp.NewTool("calendar_list_events",
		mcp.WithDescription("List calendar events for a date or a date range"),
		mcp.WithString("user",
			mcp.Description("Stored user ID (default: 'default')"),
		),
		mcp.WithString("date",
			mcp.Description("Single day to list (YYYY-MM-DD). Ignored when start_date is given."),
		),
		mcp.WithString("start_date",
			mcp.Description("Start of the range (YYYY-MM-DD)"),
		),
		mcp.WithString("end_date",
			mcp.Description("End of the range, inclusive (YYYY-MM-DD)"),
		),
	)

	s.AddTool(listEventsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListEvents(ctx, request, deps)
	})

	// Create event tool
	createEventTool := mcp.NewTool("calendar_create_event",
		mcp.WithDescription("Create a new calendar event on the user's primary calendar"),
		mcp.WithString("user",
			mcp.Description("Stored user ID (default: 'default')"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Event title"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start time (RFC3339 or 'YYYY-MM-DDTHH:MM' in the user's timezone)"),
		),
		mcp.WithString("end",
			mcp.Description("End time. Defaults to one hour after start."),
		),
		mcp.WithString("description",
			mcp.Description("Event description"),
		),
		mcp.WithString("location",
			mcp.Description("Event location"),
		),
		mcp.WithString("attendees",
			mcp.Description("Comma-separated list of attendee email addresses"),
		),
	)

	s.AddTool(createEventTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleCreateEvent(ctx, request, deps)
	})

	// Delete event tool
	deleteEventTool := mcp.NewTool("calendar_delete_event",
		mcp.WithDescription("Delete a calendar event by ID"),
		mcp.WithString("user",
			mcp.Description("Stored user ID (default: 'default')"),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The ID of the event to delete"),
		),
	)

	s.AddTool(deleteEventTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleDeleteEvent(ctx, request, deps)
	})

	return nil
}

func handleListEvents(ctx context.Context, request mcp.CallToolRequest, deps Deps) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	u, err := resolveUser(ctx, args, deps)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	loc := deps.Service.Timezone(u)

	var events []*gcal.Event
	if startStr, ok := args["start_date"].(string); ok && startStr != "" {
		start, err := time.ParseInLocation("2006-01-02", startStr, loc)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid start_date format: %v", err)), nil
		}
		endStr, ok := args["end_date"].(string)
		if !ok || endStr == "" {
			return mcp.NewToolResultError("end_date is required when start_date is given"), nil
		}
		end, err := time.ParseInLocation("2006-01-02", endStr, loc)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid end_date format: %v", err)), nil
		}
		events, err = deps.Service.GetEvents(ctx, u, start, end.Add(24*time.Hour), 50)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list events: %v", err)), nil
		}
	} else {
		date := time.Now().In(loc)
		if dateStr, ok := args["date"].(string); ok && dateStr != "" {
			date, err = time.ParseInLocation("2006-01-02", dateStr, loc)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Invalid date format: %v", err)), nil
			}
		}
		events, err = deps.Service.EventsForDate(ctx, u, date)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list events: %v", err)), nil
		}
	}

	summaries := calendar.SummarizeEvents(events)
	result := fmt.Sprintf("Found %d events:\n\n", len(summaries))
	for i, event := range summaries {
		result += fmt.Sprintf("%d. %s\n", i+1, event.Summary)
		result += fmt.Sprintf("   ID: %s\n", event.ID)
		result += fmt.Sprintf("   Start: %s\n", event.Start.Format(time.RFC3339))
		result += fmt.Sprintf("   End: %s\n", event.End.Format(time.RFC3339))
		if event.Location != "" {
			result += fmt.Sprintf("   Location: %s\n", event.Location)
		}
		if len(event.Attendees) > 0 {
			result += fmt.Sprintf("   Attendees: %d\n", len(event.Attendees))
		}
		result += "\n"
	}

	return mcp.NewToolResultText(result), nil
}

func handleCreateEvent(ctx context.Context, request mcp.CallToolRequest, deps Deps) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	u, err := resolveUser(ctx, args, deps)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	loc := deps.Service.Timezone(u)

	title, ok := args["title"].(string)
	if !ok || title == "" {
		return mcp.NewToolResultError("title is required"), nil
	}

	startStr, ok := args["start"].(string)
	if !ok || startStr == "" {
		return mcp.NewToolResultError("start is required"), nil
	}
	start, err := calendar.ParseDateTime(startStr, loc)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid start format: %v", err)), nil
	}

	end := start.Add(time.Hour)
	if endStr, ok := args["end"].(string); ok && endStr != "" {
		end, err = calendar.ParseDateTime(endStr, loc)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid end format: %v", err)), nil
		}
	}
	if !end.After(start) {
		return mcp.NewToolResultError("end must be after start"), nil
	}

	input := calendar.EventInput{
		Summary:  title,
		Start:    start,
		End:      end,
		TimeZone: loc.String(),
	}
	if description, ok := args["description"].(string); ok {
		input.Description = description
	}
	if location, ok := args["location"].(string); ok {
		input.Location = location
	}
	if attendeesStr, ok := args["attendees"].(string); ok && attendeesStr != "" {
		for _, email := range strings.Split(attendeesStr, ",") {
			if email = strings.TrimSpace(email); email != "" {
				input.Attendees = append(input.Attendees, email)
			}
		}
	}

	event, err := deps.Service.CreateEvent(ctx, u, input)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create event: %v", err)), nil
	}

	created := calendar.SummarizeEvent(event)
	result := fmt.Sprintf("Event created: %s\n", created.Summary)
	result += fmt.Sprintf("ID: %s\n", created.ID)
	result += fmt.Sprintf("Start: %s\n", created.Start.Format(time.RFC3339))
	result += fmt.Sprintf("End: %s\n", created.End.Format(time.RFC3339))
	if created.HTMLLink != "" {
		result += fmt.Sprintf("Link: %s\n", created.HTMLLink)
	}

	return mcp.NewToolResultText(result), nil
}

func handleDeleteEvent(ctx context.Context, request mcp.CallToolRequest, deps Deps) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	u, err := resolveUser(ctx, args, deps)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	eventID, ok := args["eventId"].(string)
	if !ok || eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	deleted, err := deps.Service.DeleteEvent(ctx, u, eventID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to delete event: %v", err)), nil
	}
	if !deleted {
		return mcp.NewToolResultError(fmt.Sprintf("Event %s could not be deleted", eventID)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Event %s deleted successfully", eventID)), nil
}
