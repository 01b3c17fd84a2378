package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	calendar "google.golang.org/api/calendar/v3"

	"github.com/calendai/calendai/internal/instrumentation"
	"github.com/calendai/calendai/internal/logging"
	"github.com/calendai/calendai/internal/user"
)

const (
	primaryEventsEndpoint = "calendars/primary/events"

	defaultMaxResults = 10

	// slotStep is the cursor increment of the slot finder. Slots are probed
	// on a half-hour grid regardless of the requested duration.
	slotStep = 30 * time.Minute
)

// Service exposes the calendar operations the assistant and the HTTP API
// are built on. All methods take the user explicitly; the service itself
// holds no per-user state and is safe for concurrent use.
type Service struct {
	client  *Client
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// NewService creates a calendar service on top of the API client.
func NewService(client *Client, logger *slog.Logger, metrics *instrumentation.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}
	return &Service{client: client, logger: logger, metrics: metrics}
}

// Timezone resolves the location used to interpret the user's naive
// date/time strings: the user's configured zone when set and valid, the
// host zone otherwise, UTC as the last resort.
func (s *Service) Timezone(u *user.User) *time.Location {
	if u != nil && u.Timezone != "" {
		if loc, err := time.LoadLocation(u.Timezone); err == nil {
			return loc
		}
		s.logger.Warn("Invalid user timezone, falling back to host zone",
			logging.UserHash(u.ID),
			slog.String("timezone", u.Timezone),
		)
	}
	if time.Local != nil {
		return time.Local
	}
	return time.UTC
}

// ParseDateTime parses an ISO 8601 date-time string. Strings carrying an
// explicit UTC offset (or Z) keep it; naive strings are interpreted in loc.
func ParseDateTime(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	for _, layout := range []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date-time %q", value)
}

// toRFC3339Z renders t as an RFC 3339 UTC timestamp with a Z suffix, the
// form the events list endpoint requires for timeMin/timeMax.
func toRFC3339Z(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// GetEvents lists events from the user's primary calendar, expanded to
// single instances and ordered by start time. A zero start defaults to now,
// a zero end to seven days after start, maxResults <= 0 to 10.
func (s *Service) GetEvents(ctx context.Context, u *user.User, start, end time.Time, maxResults int) ([]*calendar.Event, error) {
	began := time.Now()

	if start.IsZero() {
		start = time.Now().UTC()
	}
	if end.IsZero() {
		end = start.Add(7 * 24 * time.Hour)
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	query := url.Values{
		"timeMin":      {toRFC3339Z(start)},
		"timeMax":      {toRFC3339Z(end)},
		"maxResults":   {strconv.Itoa(maxResults)},
		"singleEvents": {"true"},
		"orderBy":      {"startTime"},
	}

	resp, err := s.client.Request(ctx, u, http.MethodGet, primaryEventsEndpoint, RequestOptions{Query: query})
	if err != nil {
		s.metrics.RecordCalendarOperation(ctx, "get_events", "error", time.Since(began))
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		s.metrics.RecordCalendarOperation(ctx, "get_events", "error", time.Since(began))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	var events calendar.Events
	if err := resp.JSON(&events); err != nil {
		s.metrics.RecordCalendarOperation(ctx, "get_events", "error", time.Since(began))
		return nil, err
	}

	s.metrics.RecordCalendarOperation(ctx, "get_events", "success", time.Since(began))
	return events.Items, nil
}

// EventsForDate lists all events on a single calendar day, interpreted in
// the user's timezone.
func (s *Service) EventsForDate(ctx context.Context, u *user.User, date time.Time) ([]*calendar.Event, error) {
	loc := s.Timezone(u)
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.Add(24*time.Hour - time.Nanosecond)
	return s.GetEvents(ctx, u, dayStart, dayEnd, 50)
}

// CreateEvent creates an event on the user's primary calendar and returns
// the created resource.
func (s *Service) CreateEvent(ctx context.Context, u *user.User, input EventInput) (*calendar.Event, error) {
	began := time.Now()

	if input.TimeZone == "" {
		input.TimeZone = s.Timezone(u).String()
	}

	resp, err := s.client.Request(ctx, u, http.MethodPost, primaryEventsEndpoint, RequestOptions{
		Body: toWireEvent(input),
	})
	if err != nil {
		s.metrics.RecordCalendarOperation(ctx, "create_event", "error", time.Since(began))
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		s.metrics.RecordCalendarOperation(ctx, "create_event", "error", time.Since(began))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	var created calendar.Event
	if err := resp.JSON(&created); err != nil {
		s.metrics.RecordCalendarOperation(ctx, "create_event", "error", time.Since(began))
		return nil, err
	}

	s.logger.Info("Calendar event created",
		logging.Operation("create_event"),
		logging.UserHash(u.ID),
		slog.String("event_id", created.Id),
	)
	s.metrics.RecordCalendarOperation(ctx, "create_event", "success", time.Since(began))
	return &created, nil
}

// DeleteEvent removes an event from the user's primary calendar. It
// returns true when Google confirms the deletion (200 or 204) and false
// for other API responses; auth and permission failures propagate as
// errors.
func (s *Service) DeleteEvent(ctx context.Context, u *user.User, eventID string) (bool, error) {
	began := time.Now()

	resp, err := s.client.Request(ctx, u, http.MethodDelete, primaryEventsEndpoint+"/"+url.PathEscape(eventID), RequestOptions{})
	if err != nil {
		s.metrics.RecordCalendarOperation(ctx, "delete_event", "error", time.Since(began))
		return false, err
	}

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent {
		s.metrics.RecordCalendarOperation(ctx, "delete_event", "success", time.Since(began))
		return true, nil
	}

	s.logger.Warn("Calendar event deletion rejected",
		logging.Operation("delete_event"),
		logging.UserHash(u.ID),
		slog.Int("status", resp.StatusCode),
	)
	s.metrics.RecordCalendarOperation(ctx, "delete_event", "error", time.Since(began))
	return false, nil
}

// FindAvailableSlots scans the user's calendar between startDate and
// endDate for free slots of the given duration. The search walks a
// half-hour grid inside the working-hours window and treats any event with
// concrete start and end times as busy; all-day events do not block slots.
func (s *Service) FindAvailableSlots(ctx context.Context, u *user.User, startDate, endDate time.Time, duration time.Duration, hours WorkingHours) ([]AvailableSlot, error) {
	if hours == (WorkingHours{}) {
		hours = DefaultWorkingHours
	}

	events, err := s.GetEvents(ctx, u, startDate, endDate, 250)
	if err != nil {
		return nil, err
	}

	var busy []TimeRange
	for _, event := range events {
		if event.Start == nil || event.End == nil {
			continue
		}
		if event.Start.DateTime == "" || event.End.DateTime == "" {
			continue
		}
		start, err := time.Parse(time.RFC3339, event.Start.DateTime)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, event.End.DateTime)
		if err != nil {
			continue
		}
		busy = append(busy, TimeRange{Start: start, End: end})
	}

	var slots []AvailableSlot

	cursor := time.Date(startDate.Year(), startDate.Month(), startDate.Day(),
		hours.Start, 0, 0, 0, startDate.Location())
	endOfSearch := time.Date(endDate.Year(), endDate.Month(), endDate.Day(),
		hours.End, 0, 0, 0, endDate.Location())

	for !cursor.Add(duration).After(endOfSearch) {
		slotEnd := cursor.Add(duration)

		free := true
		for _, b := range busy {
			if cursor.Before(b.End) && slotEnd.After(b.Start) {
				free = false
				break
			}
		}
		if free {
			slots = append(slots, AvailableSlot{Start: cursor, End: slotEnd})
		}

		cursor = cursor.Add(slotStep)
		if cursor.Hour() >= hours.End {
			cursor = time.Date(cursor.Year(), cursor.Month(), cursor.Day(),
				hours.Start, 0, 0, 0, cursor.Location()).AddDate(0, 0, 1)
		}
	}

	return slots, nil
}
