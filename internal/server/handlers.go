package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/calendai/calendai/internal/assistant"
	"github.com/calendai/calendai/internal/calendar"
	"github.com/calendai/calendai/internal/google"
	"github.com/calendai/calendai/internal/logging"
	"github.com/calendai/calendai/internal/user"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"error": message})
}

// writeServiceError maps domain errors onto the HTTP taxonomy: 401 for
// token refresh failures ("log in to Google again"), 403 with a consent
// URL for scope failures ("re-grant calendar access"), 500 with a safe
// message for everything else.
func (s *Server) writeServiceError(w http.ResponseWriter, u *user.User, err error) {
	var refreshErr *google.TokenRefreshError
	if errors.As(err, &refreshErr) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error":              "Google token refresh failed, please reconnect your calendar",
			"reconnect_required": true,
		})
		return
	}

	var permErr *calendar.PermissionError
	if errors.As(err, &permErr) {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":                     "Calendar access not granted",
			"calendar_permission_error": true,
			"reauthorize_url":           s.config.OAuth.ReauthorizeURL("reconnect"),
		})
		return
	}

	s.logger.Error("Request failed",
		logging.UserHash(u.ID),
		logging.Err(err),
	)
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Internal server error"})
}

// requireConnected rejects requests from users who never linked a Google
// calendar.
func (s *Server) requireConnected(w http.ResponseWriter, u *user.User) bool {
	if !u.CalendarConnected {
		writeBadRequest(w, "Google Calendar not connected")
		return false
	}
	return true
}

func (s *Server) handleConnectStatus(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"connected":  u.CalendarConnected,
		"has_tokens": u.AccessToken != "",
	})
}

func (s *Server) handleEventsForDate(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())
	if !s.requireConnected(w, u) {
		return
	}

	loc := s.calendar.Timezone(u)
	date := time.Now().In(loc)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			writeBadRequest(w, "invalid date, expected YYYY-MM-DD")
			return
		}
		date = parsed
	}

	events, err := s.calendar.EventsForDate(r.Context(), u, date)
	if err != nil {
		s.writeServiceError(w, u, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"date":   date.Format("2006-01-02"),
	})
}

func (s *Server) handleEventsRange(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())
	if !s.requireConnected(w, u) {
		return
	}

	loc := s.calendar.Timezone(u)
	start, end, ok := parseDateRange(w, r, loc)
	if !ok {
		return
	}

	events, err := s.calendar.GetEvents(r.Context(), u, start, end.Add(24*time.Hour), 250)
	if err != nil {
		s.writeServiceError(w, u, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())
	if !s.requireConnected(w, u) {
		return
	}

	loc := s.calendar.Timezone(u)
	start, end, ok := parseDateRange(w, r, loc)
	if !ok {
		return
	}

	duration := 30
	if raw := r.URL.Query().Get("duration"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, "invalid duration, expected positive minutes")
			return
		}
		duration = parsed
	}

	slots, err := s.calendar.FindAvailableSlots(r.Context(), u, start, end,
		time.Duration(duration)*time.Minute, calendar.WorkingHours{})
	if err != nil {
		s.writeServiceError(w, u, err)
		return
	}

	out := make([]map[string]string, 0, len(slots))
	for _, slot := range slots {
		out = append(out, map[string]string{
			"start": slot.Start.Format(time.RFC3339),
			"end":   slot.End.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"available_slots": out,
		"duration":        duration,
	})
}

type createEventRequest struct {
	Title          string   `json:"title"`
	StartTime      string   `json:"start_time"`
	EndTime        string   `json:"end_time"`
	Description    string   `json:"description"`
	Attendees      []string `json:"attendees"`
	ClientTimezone string   `json:"client_timezone"`
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())
	if !s.requireConnected(w, u) {
		return
	}

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Title == "" || req.StartTime == "" || req.EndTime == "" {
		writeBadRequest(w, "title, start_time and end_time are required")
		return
	}

	// An explicit client timezone beats the server-side guess.
	loc := s.calendar.Timezone(u)
	if req.ClientTimezone != "" {
		parsed, err := time.LoadLocation(req.ClientTimezone)
		if err != nil {
			writeBadRequest(w, "invalid client_timezone")
			return
		}
		loc = parsed
	}

	start, err := calendar.ParseDateTime(req.StartTime, loc)
	if err != nil {
		writeBadRequest(w, "invalid start_time")
		return
	}
	end, err := calendar.ParseDateTime(req.EndTime, loc)
	if err != nil {
		writeBadRequest(w, "invalid end_time")
		return
	}
	if !end.After(start) {
		writeBadRequest(w, "end_time must be after start_time")
		return
	}

	event, err := s.calendar.CreateEvent(r.Context(), u, calendar.EventInput{
		Summary:     req.Title,
		Description: req.Description,
		Start:       start,
		End:         end,
		TimeZone:    loc.String(),
		Attendees:   req.Attendees,
	})
	if err != nil {
		s.writeServiceError(w, u, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"event": event})
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())
	if !s.requireConnected(w, u) {
		return
	}

	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	runner := assistant.NewCalendarToolRunner(s.calendar, s.logger, s.metrics)
	orchestrator := assistant.NewOrchestrator(s.llmForUser(u), runner, s.calendar,
		s.config.OAuth, s.logger, s.metrics)

	result, err := orchestrator.ProcessChat(r.Context(), u, req.Message)
	if err != nil {
		s.writeServiceError(w, u, err)
		return
	}

	if result.NeedsReauthorization {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":                     result.Message,
			"calendar_permission_error": true,
			"reauthorize_url":           result.ReauthorizeURL,
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())
	if !s.requireConnected(w, u) {
		return
	}

	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	parser := assistant.NewIntentParser(s.llmForUser(u), s.logger)
	intent := parser.ParseCalendarMessage(r.Context(), u, req.Message)

	var message string
	if intent.Action == "error" {
		message = "I couldn't understand your request."
		if len(intent.Errors) > 0 {
			message = "I couldn't understand your request: " + intent.Errors[0]
		}
	} else {
		message = parser.GenerateSmartResponse(r.Context(), u, intent, nil)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"intent":  intent,
		"message": message,
	})
}

func decodeChatRequest(w http.ResponseWriter, r *http.Request) (*chatRequest, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return nil, false
	}
	if req.Message == "" {
		writeBadRequest(w, "no message provided")
		return nil, false
	}
	return &req, true
}

// parseDateRange reads required start_date and end_date query parameters,
// accepting date-only or full date-time values.
func parseDateRange(w http.ResponseWriter, r *http.Request, loc *time.Location) (time.Time, time.Time, bool) {
	startRaw := r.URL.Query().Get("start_date")
	endRaw := r.URL.Query().Get("end_date")
	if startRaw == "" || endRaw == "" {
		writeBadRequest(w, "start_date and end_date parameters are required")
		return time.Time{}, time.Time{}, false
	}

	start, err := parseDateOrDateTime(startRaw, loc)
	if err != nil {
		writeBadRequest(w, "invalid start_date")
		return time.Time{}, time.Time{}, false
	}
	end, err := parseDateOrDateTime(endRaw, loc)
	if err != nil {
		writeBadRequest(w, "invalid end_date")
		return time.Time{}, time.Time{}, false
	}
	if end.Before(start) {
		writeBadRequest(w, "end_date must not be before start_date")
		return time.Time{}, time.Time{}, false
	}

	return start, end, true
}

func parseDateOrDateTime(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return t, nil
	}
	return calendar.ParseDateTime(value, loc)
}
