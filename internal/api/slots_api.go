package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"orderslot/internal/metrics"
	"orderslot/internal/models"
)

// GenerateRequest is the body for POST /api/slots/generate.
type GenerateRequest struct {
	Date string `json:"date"` // YYYY-MM-DD
}

// GenerateBulkRequest is the body for POST /api/slots/generate-bulk.
type GenerateBulkRequest struct {
	StartDate string `json:"start_date"` // YYYY-MM-DD
	Days      int    `json:"days"`
}

// OrderRequest is the body for POST /api/orders/assign and /api/orders/remove.
// Assign accepts either a slot ID or an exact (date, start_time) window.
type OrderRequest struct {
	OrderID   string `json:"order_id"`
	SlotID    string `json:"slot_id,omitempty"`
	Date      string `json:"date,omitempty"`       // YYYY-MM-DD
	StartTime string `json:"start_time,omitempty"` // HH:MM
}

// SlotStatusRequest is the body for POST /api/slots/status.
type SlotStatusRequest struct {
	SlotID string `json:"slot_id"`
	Status string `json:"status"`
}

// handleSlots serves slot queries and deletion.
// GET /api/slots?date=YYYY-MM-DD | DELETE /api/slots?id=<slot id>
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slots")

	switch r.Method {
	case http.MethodGet:
		date, err := parseDateParam(r, "date")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		daySlots, err := s.store.FindByDate(r.Context(), models.DateKey(date))
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"slots": daySlots})

	case http.MethodDelete:
		slotID := r.URL.Query().Get("id")
		if slotID == "" {
			writeError(w, http.StatusBadRequest, "id is required")
			return
		}
		if err := s.store.DeleteSlot(r.Context(), slotID); err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleSlotsRange lists slots for an inclusive date range.
// GET /api/slots/range?start=&end=&only_available=true
func (s *HTTPServer) handleSlotsRange(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slots_range")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	start, err := parseDateParam(r, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := parseDateParam(r, "end")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if start.After(end) {
		writeError(w, http.StatusBadRequest, "start must be before or equal to end")
		return
	}
	onlyAvailable := r.URL.Query().Get("only_available") == "true"

	rangeSlots, err := s.store.FindByDateRange(r.Context(),
		models.DateKey(start), models.DateKey(end), onlyAvailable)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": rangeSlots})
}

// handleNextSlot finds the earliest available slot on or after a date.
// GET /api/slots/next?from=YYYY-MM-DD&max_days=N
func (s *HTTPServer) handleNextSlot(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("next_slot")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	from, err := parseDateParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxDays := 0
	if raw := r.URL.Query().Get("max_days"); raw != "" {
		maxDays, err = strconv.Atoi(raw)
		if err != nil || maxDays < 0 {
			writeError(w, http.StatusBadRequest, "max_days must be a non-negative integer")
			return
		}
	}

	slot, err := s.allocator.FindNextAvailableSlot(r.Context(), from, maxDays)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

// handleSlotStatus forces a slot status.
// POST /api/slots/status
func (s *HTTPServer) handleSlotStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slot_status")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req SlotStatusRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SlotID == "" {
		writeError(w, http.StatusBadRequest, "slot_id is required")
		return
	}

	if err := s.allocator.SetStatus(r.Context(), req.SlotID, req.Status); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleGenerate generates slots for one date.
// POST /api/slots/generate
func (s *HTTPServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("generate")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req GenerateRequest
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

	generated, err := s.generator.GenerateSlotsForDate(r.Context(), date)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  req.Date,
		"count": len(generated),
		"slots": generated,
	})
}

// handleGenerateBulk generates slots for a run of dates; per-date failures
// are reported, not propagated.
// POST /api/slots/generate-bulk
func (s *HTTPServer) handleGenerateBulk(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("generate_bulk")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req GenerateBulkRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	start, err := models.ParseDate(req.StartDate)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if req.Days <= 0 || req.Days > s.opts.BulkMaxDays {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("days must be between 1 and %d", s.opts.BulkMaxDays))
		return
	}

	report, err := s.generator.BulkGenerate(r.Context(), start, req.Days)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleAssignOrder assigns an order by slot ID or exact window.
// POST /api/orders/assign
func (s *HTTPServer) handleAssignOrder(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("assign_order")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req OrderRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var slot *models.TimeSlot
	var err error
	switch {
	case req.SlotID != "":
		slot, err = s.allocator.AddOrder(r.Context(), req.SlotID, req.OrderID)
	case req.Date != "" && req.StartTime != "":
		parsed, perr := models.ParseDate(req.Date)
		if perr != nil {
			s.writeDomainError(w, perr)
			return
		}
		slot, err = s.allocator.AssignOrderToSlot(r.Context(), req.OrderID, parsed, req.StartTime)
	default:
		writeError(w, http.StatusBadRequest, "slot_id or (date, start_time) is required")
		return
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

// handleRemoveOrder removes an order from a slot.
// POST /api/orders/remove
func (s *HTTPServer) handleRemoveOrder(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("remove_order")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req OrderRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SlotID == "" {
		writeError(w, http.StatusBadRequest, "slot_id is required")
		return
	}

	slot, err := s.allocator.RemoveOrder(r.Context(), req.SlotID, req.OrderID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

// handleOccupancyReport streams the Excel occupancy report for a range.
// GET /api/reports/occupancy?start=&end=
func (s *HTTPServer) handleOccupancyReport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("occupancy_report")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	start, err := parseDateParam(r, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := parseDateParam(r, "end")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := s.report.WriteRange(r.Context(),
		models.DateKey(start), models.DateKey(end), &buf); err != nil {
		s.writeDomainError(w, err)
		return
	}

	filename := fmt.Sprintf("occupancy_%s_%s.xlsx", models.DateKey(start), models.DateKey(end))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
