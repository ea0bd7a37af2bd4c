package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"orderslot/internal/metrics"
	"orderslot/internal/models"
	"orderslot/internal/schedule"
)

// UpsertScheduleRequest is the body for PUT /api/schedule.
type UpsertScheduleRequest struct {
	DayOfWeek     int           `json:"day_of_week"`
	IsOpen        bool          `json:"is_open"`
	Hours         *models.Hours `json:"hours,omitempty"`
	SlotDuration  int           `json:"slot_duration,omitempty"`
	OrdersPerSlot int           `json:"orders_per_slot,omitempty"`
}

// AddExceptionRequest is the body for POST /api/schedule/exceptions.
type AddExceptionRequest struct {
	Date        string        `json:"date"` // YYYY-MM-DD
	IsClosed    bool          `json:"is_closed"`
	CustomHours *models.Hours `json:"custom_hours,omitempty"`
	Reason      string        `json:"reason,omitempty"`
}

// handleSchedule serves the weekly schedule table.
// GET /api/schedule?day=N | PUT /api/schedule
func (s *HTTPServer) handleSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("schedule")

	switch r.Method {
	case http.MethodGet:
		day, err := strconv.Atoi(r.URL.Query().Get("day"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "day is required and must be an integer 0-6")
			return
		}
		entry, err := s.schedule.GetByDayOfWeek(r.Context(), day)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)

	case http.MethodPut:
		var req UpsertScheduleRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		entry, err := s.schedule.Upsert(r.Context(), req.DayOfWeek, schedule.WeeklyInput{
			IsOpen:        req.IsOpen,
			Hours:         req.Hours,
			SlotDuration:  req.SlotDuration,
			OrdersPerSlot: req.OrdersPerSlot,
		})
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleExceptions serves date-specific overrides.
// GET /api/schedule/exceptions?day=N | POST | DELETE ?date=YYYY-MM-DD
func (s *HTTPServer) handleExceptions(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("exceptions")

	switch r.Method {
	case http.MethodGet:
		day, err := strconv.Atoi(r.URL.Query().Get("day"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "day is required and must be an integer 0-6")
			return
		}
		exceptions, err := s.schedule.ListExceptions(r.Context(), day)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"exceptions": exceptions})

	case http.MethodPost:
		var req AddExceptionRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		date, err := models.ParseDate(req.Date)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		exc, err := s.schedule.AddException(r.Context(), schedule.ExceptionInput{
			Date:        date,
			IsClosed:    req.IsClosed,
			CustomHours: req.CustomHours,
			Reason:      req.Reason,
		})
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, exc)

	case http.MethodDelete:
		date, err := parseDateParam(r, "date")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.schedule.RemoveException(r.Context(), date); err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleEffectiveHours resolves the effective hours for one date.
// GET /api/schedule/effective?date=YYYY-MM-DD
func (s *HTTPServer) handleEffectiveHours(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("effective_hours")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	date, err := parseDateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	eh, err := s.schedule.ResolveEffectiveHours(r.Context(), date)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eh)
}
