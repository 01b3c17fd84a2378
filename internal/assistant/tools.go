package assistant

import (
	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	toolCreateEvent   = "create_calendar_event"
	toolFindFreeSlots = "find_free_slots"
	toolGetEvents     = "get_calendar_events"
)

// calendarTools is the fixed tool set offered to the LLM on the first
// conversation turn. The second turn carries no tools.
func calendarTools() []openai.Tool {
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolCreateEvent,
				Description: "Create an event on the user's primary calendar.",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"title": {
							Type:        jsonschema.String,
							Description: "Event title",
						},
						"start_time": {
							Type:        jsonschema.String,
							Description: "Event start as ISO 8601 date-time, e.g. 2026-05-04T14:00:00",
						},
						"end_time": {
							Type:        jsonschema.String,
							Description: "Event end as ISO 8601 date-time. Omit to derive from duration_minutes.",
						},
						"duration_minutes": {
							Type:        jsonschema.Integer,
							Description: "Event length in minutes when end_time is omitted. Defaults to 60.",
						},
						"description": {
							Type:        jsonschema.String,
							Description: "Event description",
						},
						"location": {
							Type:        jsonschema.String,
							Description: "Event location",
						},
						"attendees": {
							Type:        jsonschema.Array,
							Description: "Attendee email addresses",
							Items: &jsonschema.Definition{
								Type: jsonschema.String,
							},
						},
					},
					Required: []string{"title", "start_time"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolFindFreeSlots,
				Description: "Find free time slots in the user's calendar within a date range.",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"start_date": {
							Type:        jsonschema.String,
							Description: "First day of the search as ISO 8601 date, e.g. 2026-05-04",
						},
						"end_date": {
							Type:        jsonschema.String,
							Description: "Last day of the search as ISO 8601 date",
						},
						"duration_minutes": {
							Type:        jsonschema.Integer,
							Description: "Required slot length in minutes. Defaults to 60.",
						},
					},
					Required: []string{"start_date", "end_date"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolGetEvents,
				Description: "List the user's calendar events for a single date or a date range.",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"date": {
							Type:        jsonschema.String,
							Description: "A single day as ISO 8601 date. Use either date or start_date+end_date.",
						},
						"start_date": {
							Type:        jsonschema.String,
							Description: "Range start as ISO 8601 date",
						},
						"end_date": {
							Type:        jsonschema.String,
							Description: "Range end as ISO 8601 date",
						},
					},
				},
			},
		},
	}
}
