package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/calendai/calendai/internal/calendar"
	"github.com/calendai/calendai/internal/instrumentation"
	"github.com/calendai/calendai/internal/user"
)

const defaultEventDuration = 60 * time.Minute

// CalendarToolRunner executes the assistant's tool calls against the
// calendar service. Argument parsing is forgiving about types (the model
// may send numbers as strings) but strict about required fields.
type CalendarToolRunner struct {
	service *calendar.Service
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// NewCalendarToolRunner creates a tool runner on top of the calendar
// service.
func NewCalendarToolRunner(service *calendar.Service, logger *slog.Logger, metrics *instrumentation.Metrics) *CalendarToolRunner {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}
	return &CalendarToolRunner{service: service, logger: logger, metrics: metrics}
}

// Run dispatches one tool call to the matching calendar operation.
func (r *CalendarToolRunner) Run(ctx context.Context, u *user.User, call ToolCall) (map[string]any, error) {
	began := time.Now()

	var result map[string]any
	var err error

	switch call.Name {
	case toolCreateEvent:
		result, err = r.createEvent(ctx, u, call.Arguments)
	case toolFindFreeSlots:
		result, err = r.findFreeSlots(ctx, u, call.Arguments)
	case toolGetEvents:
		result, err = r.getEvents(ctx, u, call.Arguments)
	default:
		err = fmt.Errorf("unknown tool %q", call.Name)
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.RecordToolExecution(ctx, call.Name, status, time.Since(began))

	return result, err
}

func (r *CalendarToolRunner) createEvent(ctx context.Context, u *user.User, args map[string]any) (map[string]any, error) {
	title := stringArg(args, "title")
	if title == "" {
		return nil, fmt.Errorf("create_calendar_event requires a title")
	}
	startStr := stringArg(args, "start_time")
	if startStr == "" {
		return nil, fmt.Errorf("create_calendar_event requires a start_time")
	}

	loc := r.service.Timezone(u)
	start, err := calendar.ParseDateTime(startStr, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid start_time: %w", err)
	}

	var end time.Time
	if endStr := stringArg(args, "end_time"); endStr != "" {
		end, err = calendar.ParseDateTime(endStr, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid end_time: %w", err)
		}
	} else if minutes := intArg(args, "duration_minutes"); minutes > 0 {
		end = start.Add(time.Duration(minutes) * time.Minute)
	} else {
		end = start.Add(defaultEventDuration)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("event end must be after start")
	}

	created, err := r.service.CreateEvent(ctx, u, calendar.EventInput{
		Summary:     title,
		Description: stringArg(args, "description"),
		Location:    stringArg(args, "location"),
		Start:       start,
		End:         end,
		TimeZone:    loc.String(),
		Attendees:   stringSliceArg(args, "attendees"),
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"success":   true,
		"event_id":  created.Id,
		"title":     created.Summary,
		"start":     start.Format(time.RFC3339),
		"end":       end.Format(time.RFC3339),
		"html_link": created.HtmlLink,
	}, nil
}

func (r *CalendarToolRunner) findFreeSlots(ctx context.Context, u *user.User, args map[string]any) (map[string]any, error) {
	loc := r.service.Timezone(u)

	start, err := parseDateArg(args, "start_date", loc)
	if err != nil {
		return nil, err
	}
	end, err := parseDateArg(args, "end_date", loc)
	if err != nil {
		return nil, err
	}

	minutes := intArg(args, "duration_minutes")
	if minutes <= 0 {
		minutes = 60
	}

	slots, err := r.service.FindAvailableSlots(ctx, u, start, end, time.Duration(minutes)*time.Minute, calendar.WorkingHours{})
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(slots))
	for _, slot := range slots {
		out = append(out, map[string]any{
			"start": slot.Start.Format(time.RFC3339),
			"end":   slot.End.Format(time.RFC3339),
		})
	}

	return map[string]any{
		"success":          true,
		"slots":            out,
		"count":            len(out),
		"duration_minutes": minutes,
	}, nil
}

func (r *CalendarToolRunner) getEvents(ctx context.Context, u *user.User, args map[string]any) (map[string]any, error) {
	loc := r.service.Timezone(u)

	var items []*gcal.Event
	var err error

	switch {
	case stringArg(args, "date") != "":
		var date time.Time
		date, err = parseDateArg(args, "date", loc)
		if err != nil {
			return nil, err
		}
		items, err = r.service.EventsForDate(ctx, u, date)
	case stringArg(args, "start_date") != "" && stringArg(args, "end_date") != "":
		var start, end time.Time
		start, err = parseDateArg(args, "start_date", loc)
		if err != nil {
			return nil, err
		}
		end, err = parseDateArg(args, "end_date", loc)
		if err != nil {
			return nil, err
		}
		items, err = r.service.GetEvents(ctx, u, start, end.Add(24*time.Hour), 50)
	default:
		// No bounds: the service defaults to the next seven days.
		items, err = r.service.GetEvents(ctx, u, time.Time{}, time.Time{}, 50)
	}
	if err != nil {
		return nil, err
	}

	events := make([]map[string]any, 0, len(items))
	for _, item := range items {
		event := map[string]any{
			"id":    item.Id,
			"title": item.Summary,
		}
		if item.Start != nil {
			if item.Start.DateTime != "" {
				event["start"] = item.Start.DateTime
			} else {
				event["start"] = item.Start.Date
			}
		}
		if item.End != nil {
			if item.End.DateTime != "" {
				event["end"] = item.End.DateTime
			} else {
				event["end"] = item.End.Date
			}
		}
		if item.Location != "" {
			event["location"] = item.Location
		}
		events = append(events, event)
	}

	return map[string]any{
		"success": true,
		"events":  events,
		"count":   len(events),
	}, nil
}

// parseDateArg reads a date-only or date-time argument, interpreting naive
// values in loc.
func parseDateArg(args map[string]any, key string, loc *time.Location) (time.Time, error) {
	value := stringArg(args, key)
	if value == "" {
		return time.Time{}, fmt.Errorf("missing %s", key)
	}
	if t, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return t, nil
	}
	t, err := calendar.ParseDateTime(value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return t, nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

func stringSliceArg(args map[string]any, key string) []string {
	items, ok := args[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
