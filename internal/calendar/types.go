package calendar

import (
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// EventInput describes an event to create. Times are rendered in TimeZone
// on the wire; an empty TimeZone means UTC.
type EventInput struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Attendees   []string
}

// EventSummary is a flattened view of a wire event with the timestamps
// parsed, for listings that do not want to deal with the raw resource.
type EventSummary struct {
	ID          string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Creator     string
	Organizer   string
	Status      string
	Attendees   []AttendeeInfo
	HTMLLink    string
}

// AttendeeInfo carries one attendee's email and response state as reported
// by the Calendar API.
type AttendeeInfo struct {
	Email          string
	DisplayName    string
	ResponseStatus string // "needsAction", "declined", "tentative", "accepted"
	Optional       bool
	Organizer      bool
}

// TimeRange represents a busy period on a calendar
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// AvailableSlot represents a free time slot found by the slot finder
type AvailableSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WorkingHours bounds the slot search to a daily window, 24h clock.
type WorkingHours struct {
	Start int
	End   int
}

// DefaultWorkingHours is the 9-to-17 window used when the caller does not
// specify one.
var DefaultWorkingHours = WorkingHours{Start: 9, End: 17}

// toWireEvent converts an EventInput into the Calendar API event resource.
func toWireEvent(input EventInput) *calendar.Event {
	tz := input.TimeZone
	if tz == "" {
		tz = "UTC"
	}

	// The wire format carries both an offset datetime and a zone name;
	// render the times in that zone so the two agree.
	start, end := input.Start, input.End
	if loc, err := time.LoadLocation(tz); err == nil {
		start = start.In(loc)
		end = end.In(loc)
	}

	event := &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Location:    input.Location,
		Start: &calendar.EventDateTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: tz,
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: tz,
		},
	}

	if len(input.Attendees) > 0 {
		var attendees []*calendar.EventAttendee
		for _, email := range input.Attendees {
			attendees = append(attendees, &calendar.EventAttendee{
				Email: email,
			})
		}
		event.Attendees = attendees
	}

	return event
}

// SummarizeEvents converts wire events into EventSummary values, in order.
func SummarizeEvents(events []*calendar.Event) []EventSummary {
	summaries := make([]EventSummary, 0, len(events))
	for _, event := range events {
		summaries = append(summaries, SummarizeEvent(event))
	}
	return summaries
}

// SummarizeEvent converts a Calendar API event to an EventSummary. All-day
// events yield midnight timestamps parsed from the date field.
func SummarizeEvent(event *calendar.Event) EventSummary {
	summary := EventSummary{
		ID:          event.Id,
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Status:      event.Status,
		HTMLLink:    event.HtmlLink,
	}

	if event.Start != nil {
		if event.Start.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, event.Start.DateTime); err == nil {
				summary.Start = t
			}
		} else if event.Start.Date != "" {
			if t, err := time.Parse("2006-01-02", event.Start.Date); err == nil {
				summary.Start = t
			}
		}
	}

	if event.End != nil {
		if event.End.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, event.End.DateTime); err == nil {
				summary.End = t
			}
		} else if event.End.Date != "" {
			if t, err := time.Parse("2006-01-02", event.End.Date); err == nil {
				summary.End = t
			}
		}
	}

	if event.Creator != nil {
		summary.Creator = event.Creator.Email
	}
	if event.Organizer != nil {
		summary.Organizer = event.Organizer.Email
	}

	for _, att := range event.Attendees {
		summary.Attendees = append(summary.Attendees, AttendeeInfo{
			Email:          att.Email,
			DisplayName:    att.DisplayName,
			ResponseStatus: att.ResponseStatus,
			Optional:       att.Optional,
			Organizer:      att.Organizer,
		})
	}

	return summary
}
