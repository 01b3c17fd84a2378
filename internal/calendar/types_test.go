package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gcal "google.golang.org/api/calendar/v3"
)

func TestSummarizeEvent(t *testing.T) {
	event := &gcal.Event{
		Id:          "evt-1",
		Summary:     "Planning",
		Description: "Quarterly planning",
		Location:    "Room 4",
		Status:      "confirmed",
		HtmlLink:    "https://calendar.google.com/event?eid=x",
		Start:       &gcal.EventDateTime{DateTime: "2026-05-04T10:00:00+02:00"},
		End:         &gcal.EventDateTime{DateTime: "2026-05-04T11:00:00+02:00"},
		Creator:     &gcal.EventCreator{Email: "creator@example.com"},
		Organizer:   &gcal.EventOrganizer{Email: "organizer@example.com"},
		Attendees: []*gcal.EventAttendee{
			{Email: "a@example.com", ResponseStatus: "accepted"},
			{Email: "b@example.com", ResponseStatus: "tentative", Optional: true},
		},
	}

	summary := SummarizeEvent(event)

	assert.Equal(t, "evt-1", summary.ID)
	assert.Equal(t, "Planning", summary.Summary)
	assert.Equal(t, "Room 4", summary.Location)
	assert.Equal(t, "confirmed", summary.Status)
	assert.Equal(t, "creator@example.com", summary.Creator)
	assert.Equal(t, "organizer@example.com", summary.Organizer)
	assert.Equal(t, "2026-05-04T10:00:00+02:00", summary.Start.Format(time.RFC3339))
	assert.Equal(t, "2026-05-04T11:00:00+02:00", summary.End.Format(time.RFC3339))

	require.Len(t, summary.Attendees, 2)
	assert.Equal(t, "accepted", summary.Attendees[0].ResponseStatus)
	assert.True(t, summary.Attendees[1].Optional)
}

func TestSummarizeEvent_AllDay(t *testing.T) {
	summary := SummarizeEvent(&gcal.Event{
		Id:      "evt-2",
		Summary: "Offsite",
		Start:   &gcal.EventDateTime{Date: "2026-05-04"},
		End:     &gcal.EventDateTime{Date: "2026-05-05"},
	})

	assert.Equal(t, time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), summary.Start)
	assert.Equal(t, time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC), summary.End)
}

func TestSummarizeEvents(t *testing.T) {
	events := []*gcal.Event{
		{Id: "e1", Summary: "First"},
		{Id: "e2", Summary: "Second"},
	}

	summaries := SummarizeEvents(events)

	require.Len(t, summaries, 2)
	assert.Equal(t, "e1", summaries[0].ID)
	assert.Equal(t, "e2", summaries[1].ID)

	assert.Empty(t, SummarizeEvents(nil))
}
