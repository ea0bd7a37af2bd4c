package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Slot statuses.
const (
	StatusActive = "active"
	StatusFull   = "full"
	StatusClosed = "closed"
)

// Bounds for weekly schedule configuration.
const (
	MinSlotDuration       = 5
	MaxSlotDuration       = 60
	MinOrdersPerSlot      = 1
	MaxOrdersPerSlot      = 10
	MaxExceptionReasonLen = 200

	DefaultSlotDuration  = 10
	DefaultOrdersPerSlot = 2
)

// DateLayout is the canonical calendar-date format used in storage and APIs.
const DateLayout = "2006-01-02"

var clockPattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

// Hours is an open/close pair of HH:MM clock strings.
type Hours struct {
	Open  string `json:"open" yaml:"open"`
	Close string `json:"close" yaml:"close"`
}

// WeeklySchedule is the recurring configuration for one day of the week.
// DayOfWeek is 0-6 with 0 = Sunday.
type WeeklySchedule struct {
	DayOfWeek     int       `json:"day_of_week"`
	IsOpen        bool      `json:"is_open"`
	Hours         *Hours    `json:"hours,omitempty"`
	SlotDuration  int       `json:"slot_duration"`
	OrdersPerSlot int       `json:"orders_per_slot"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Exception is a date-specific override of the weekly schedule. At most one
// exception exists per calendar date; it is owned by the weekly entry for
// that date's weekday.
type Exception struct {
	ID          int64     `json:"id"`
	DayOfWeek   int       `json:"day_of_week"`
	Date        string    `json:"date"` // YYYY-MM-DD
	IsClosed    bool      `json:"is_closed"`
	CustomHours *Hours    `json:"custom_hours,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EffectiveHours is the resolved open/closed state for one calendar date
// after merging the weekly entry with any exception.
type EffectiveHours struct {
	Date          string `json:"date"`
	IsOpen        bool   `json:"is_open"`
	Hours         *Hours `json:"hours,omitempty"`
	SlotDuration  int    `json:"slot_duration"`
	OrdersPerSlot int    `json:"orders_per_slot"`
}

// TimeSlot is a fixed window on a date with limited order capacity.
type TimeSlot struct {
	ID            string    `json:"id"`
	Date          string    `json:"date"` // YYYY-MM-DD
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	Capacity      int       `json:"capacity"`
	CurrentOrders int       `json:"current_orders"`
	Orders        []string  `json:"orders"`
	Status        string    `json:"status"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsAvailable reports whether the slot can accept another order.
func (s *TimeSlot) IsAvailable() bool {
	return s.Status == StatusActive && s.CurrentOrders < s.Capacity
}

// HasOrder reports whether orderID is already assigned to the slot.
func (s *TimeSlot) HasOrder(orderID string) bool {
	for _, id := range s.Orders {
		if id == orderID {
			return true
		}
	}
	return false
}

// ValidationError reports a malformed input rejected before any mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validationf builds a ValidationError for a field.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ParseClock validates an HH:MM string and returns minutes since midnight.
func ParseClock(s string) (int, error) {
	if !clockPattern.MatchString(s) {
		return 0, Validationf("time", "%q is not a valid HH:MM time", s)
	}
	parts := strings.SplitN(s, ":", 2)
	hour, _ := strconv.Atoi(parts[0])
	minute, _ := strconv.Atoi(parts[1])
	return hour*60 + minute, nil
}

// FormatClock renders minutes since midnight as HH:MM.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ValidateHours checks both clock strings and that open precedes close.
func ValidateHours(h *Hours) (openMin, closeMin int, err error) {
	if h == nil {
		return 0, 0, Validationf("hours", "hours are required")
	}
	openMin, err = ParseClock(h.Open)
	if err != nil {
		return 0, 0, Validationf("hours.open", "%q is not a valid HH:MM time", h.Open)
	}
	closeMin, err = ParseClock(h.Close)
	if err != nil {
		return 0, 0, Validationf("hours.close", "%q is not a valid HH:MM time", h.Close)
	}
	if openMin >= closeMin {
		return 0, 0, Validationf("hours", "open %s must be before close %s", h.Open, h.Close)
	}
	return openMin, closeMin, nil
}

// DateKey normalizes a time to its calendar date string; time-of-day is
// ignored everywhere dates are compared.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, Validationf("date", "%q is not a valid YYYY-MM-DD date", s)
	}
	return t, nil
}

// ValidStatus reports whether s is one of the known slot statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusFull, StatusClosed:
		return true
	}
	return false
}
