package calendar

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calendai/calendai/internal/google"
	"github.com/calendai/calendai/internal/user"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokens := google.NewTokenManager(google.Config{TokenURL: srv.URL + "/token"}, user.NewMemoryStore(), testLogger())
	client := NewClient(tokens, testLogger(), WithBaseURL(srv.URL))
	return NewService(client, testLogger(), nil)
}

// eventsJSON builds an events list response with the given timed events.
func eventsJSON(t *testing.T, periods []TimeRange) []byte {
	t.Helper()

	items := make([]map[string]any, 0, len(periods))
	for i, p := range periods {
		items = append(items, map[string]any{
			"id":      fmt.Sprintf("evt-%d", i),
			"summary": fmt.Sprintf("busy %d", i),
			"start":   map[string]any{"dateTime": p.Start.Format(time.RFC3339)},
			"end":     map[string]any{"dateTime": p.End.Format(time.RFC3339)},
		})
	}
	data, err := json.Marshal(map[string]any{"items": items})
	require.NoError(t, err)
	return data
}

func TestGetEvents_QueryParameters(t *testing.T) {
	var gotQuery map[string]string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"timeMin":      q.Get("timeMin"),
			"timeMax":      q.Get("timeMax"),
			"maxResults":   q.Get("maxResults"),
			"singleEvents": q.Get("singleEvents"),
			"orderBy":      q.Get("orderBy"),
		}
		w.Write([]byte(`{"items":[{"id":"e1"},{"id":"e2"}]}`))
	})

	start := time.Date(2026, 5, 4, 8, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	end := time.Date(2026, 5, 5, 18, 0, 0, 0, time.UTC)

	events, err := svc.GetEvents(t.Context(), freshUser(), start, end, 25)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e1", events[0].Id)

	// Offsets are normalized to UTC with a Z suffix.
	assert.Equal(t, "2026-05-04T06:00:00Z", gotQuery["timeMin"])
	assert.Equal(t, "2026-05-05T18:00:00Z", gotQuery["timeMax"])
	assert.Equal(t, "25", gotQuery["maxResults"])
	assert.Equal(t, "true", gotQuery["singleEvents"])
	assert.Equal(t, "startTime", gotQuery["orderBy"])
}

func TestGetEvents_Defaults(t *testing.T) {
	var gotMax string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotMax = r.URL.Query().Get("maxResults")
		w.Write([]byte(`{"items":[]}`))
	})

	_, err := svc.GetEvents(t.Context(), freshUser(), time.Time{}, time.Time{}, 0)
	require.NoError(t, err)

	assert.Equal(t, "10", gotMax)
}

func TestGetEvents_APIError(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	})

	_, err := svc.GetEvents(t.Context(), freshUser(), time.Time{}, time.Time{}, 0)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestCreateEvent(t *testing.T) {
	var gotBody map[string]any
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"id":"created-1","summary":"Standup","htmlLink":"https://calendar.google.com/event?eid=x"}`))
	})

	u := freshUser()
	u.Timezone = "Europe/Rome"

	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	created, err := svc.CreateEvent(t.Context(), u, EventInput{
		Summary:     "Standup",
		Description: "Daily sync",
		Start:       start,
		End:         start.Add(30 * time.Minute),
		Attendees:   []string{"a@example.com", "b@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "created-1", created.Id)

	assert.Equal(t, "Standup", gotBody["summary"])
	assert.Equal(t, "Daily sync", gotBody["description"])

	// Aware UTC input gets rendered in the user's calendar zone so the
	// dateTime offset matches the timeZone field.
	startField, ok := gotBody["start"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2026-05-04T12:00:00+02:00", startField["dateTime"])
	assert.Equal(t, "Europe/Rome", startField["timeZone"])

	endField, ok := gotBody["end"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2026-05-04T12:30:00+02:00", endField["dateTime"])

	attendees, ok := gotBody["attendees"].([]any)
	require.True(t, ok)
	require.Len(t, attendees, 2)
	assert.Equal(t, map[string]any{"email": "a@example.com"}, attendees[0])
}

func TestDeleteEvent(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		want    bool
		wantErr bool
	}{
		{"no content", http.StatusNoContent, true, false},
		{"ok", http.StatusOK, true, false},
		{"not found", http.StatusNotFound, false, false},
		{"server error", http.StatusInternalServerError, false, false},
		{"forbidden", http.StatusForbidden, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, http.MethodDelete, r.Method)
				require.Equal(t, "/calendars/primary/events/evt-1", r.URL.Path)
				w.WriteHeader(tt.status)
			})

			ok, err := svc.DeleteEvent(t.Context(), freshUser(), "evt-1")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsPermissionError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestFindAvailableSlots_EmptyCalendar(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	})

	day := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	slots, err := svc.FindAvailableSlots(t.Context(), freshUser(), day, day, 30*time.Minute, WorkingHours{})
	require.NoError(t, err)

	// 09:00 to 17:00 on a half-hour grid: 16 half-hour slots, the last one
	// ending exactly at 17:00.
	require.Len(t, slots, 16)
	assert.Equal(t, time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC), slots[0].Start)
	assert.Equal(t, time.Date(2026, 5, 4, 16, 30, 0, 0, time.UTC), slots[15].Start)
	assert.Equal(t, time.Date(2026, 5, 4, 17, 0, 0, 0, time.UTC), slots[15].End)
}

func TestFindAvailableSlots_ExcludesBusyOverlaps(t *testing.T) {
	day := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	busy := []TimeRange{
		// 10:00-11:00 and 14:15-14:45
		{Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)},
		{Start: day.Add(14*time.Hour + 15*time.Minute), End: day.Add(14*time.Hour + 45*time.Minute)},
	}

	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(eventsJSON(t, busy))
	})

	slots, err := svc.FindAvailableSlots(t.Context(), freshUser(), day, day, 30*time.Minute, WorkingHours{})
	require.NoError(t, err)

	for _, slot := range slots {
		for _, b := range busy {
			overlaps := slot.Start.Before(b.End) && slot.End.After(b.Start)
			assert.False(t, overlaps, "slot %v-%v overlaps busy %v-%v", slot.Start, slot.End, b.Start, b.End)
		}
	}

	// 10:00 and 10:30 are blocked by the first event; 14:00 and 14:30 both
	// overlap the second even though neither contains it fully.
	starts := make(map[string]bool)
	for _, slot := range slots {
		starts[slot.Start.Format("15:04")] = true
	}
	assert.False(t, starts["10:00"])
	assert.False(t, starts["10:30"])
	assert.False(t, starts["14:00"])
	assert.False(t, starts["14:30"])
	assert.True(t, starts["09:00"])
	assert.True(t, starts["11:00"])
	assert.True(t, starts["15:00"])
}

func TestFindAvailableSlots_SpansDays(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	})

	start := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC)

	slots, err := svc.FindAvailableSlots(t.Context(), freshUser(), start, end, 30*time.Minute, WorkingHours{})
	require.NoError(t, err)

	// Day one yields a full working day; the cursor then jumps to 09:00 the
	// next day, where the window has already closed (end date at 17:00 of
	// the same day), giving 16 more slots.
	for _, slot := range slots {
		assert.GreaterOrEqual(t, slot.Start.Hour(), 9)
		assert.LessOrEqual(t, slot.End.Hour(), 17)
	}
	require.Len(t, slots, 32)
	assert.Equal(t, time.Date(2026, 5, 5, 9, 0, 0, 0, time.UTC), slots[16].Start)
}

func TestFindAvailableSlots_NoRoomForDuration(t *testing.T) {
	day := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	// One event covering the whole working day.
	busy := []TimeRange{{Start: day.Add(9 * time.Hour), End: day.Add(17 * time.Hour)}}

	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(eventsJSON(t, busy))
	})

	slots, err := svc.FindAvailableSlots(t.Context(), freshUser(), day, day, 60*time.Minute, WorkingHours{})
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestFindAvailableSlots_IgnoresAllDayEvents(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"id":"allday","start":{"date":"2026-05-04"},"end":{"date":"2026-05-05"}}]}`))
	})

	day := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	slots, err := svc.FindAvailableSlots(t.Context(), freshUser(), day, day, 30*time.Minute, WorkingHours{})
	require.NoError(t, err)
	assert.Len(t, slots, 16, "all-day events must not block slots")
}

func TestParseDateTime(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	require.NoError(t, err)

	t.Run("explicit offset is kept", func(t *testing.T) {
		got, err := ParseDateTime("2026-05-04T10:00:00+02:00", rome)
		require.NoError(t, err)
		_, offset := got.Zone()
		assert.Equal(t, 2*3600, offset)
	})

	t.Run("Z suffix means UTC", func(t *testing.T) {
		got, err := ParseDateTime("2026-05-04T10:00:00Z", rome)
		require.NoError(t, err)
		assert.Equal(t, time.UTC, got.Location())
	})

	t.Run("naive string uses the given location", func(t *testing.T) {
		got, err := ParseDateTime("2026-05-04T10:00:00", rome)
		require.NoError(t, err)
		assert.Equal(t, rome, got.Location())
		assert.Equal(t, 10, got.Hour())
	})

	t.Run("minutes-only precision", func(t *testing.T) {
		got, err := ParseDateTime("2026-05-04T10:30", rome)
		require.NoError(t, err)
		assert.Equal(t, 30, got.Minute())
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		_, err := ParseDateTime("next tuesday", rome)
		require.Error(t, err)
	})
}

func TestServiceTimezone(t *testing.T) {
	svc := NewService(nil, testLogger(), nil)

	t.Run("valid user zone wins", func(t *testing.T) {
		loc := svc.Timezone(&user.User{ID: "u1", Timezone: "Europe/Rome"})
		assert.Equal(t, "Europe/Rome", loc.String())
	})

	t.Run("invalid zone falls back", func(t *testing.T) {
		loc := svc.Timezone(&user.User{ID: "u1", Timezone: "Mars/Olympus"})
		assert.NotNil(t, loc)
	})

	t.Run("nil user falls back", func(t *testing.T) {
		assert.NotNil(t, svc.Timezone(nil))
	})
}
