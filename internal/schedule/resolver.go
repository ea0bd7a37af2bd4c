// Package schedule owns the weekly schedule table and resolves the
// effective opening hours for calendar dates, merging weekly defaults with
// date-specific exceptions. The most specific rule wins: an exception for
// the exact date overrides the weekly entry's open state and hours, never
// its slot duration or per-slot capacity.
package schedule

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"orderslot/internal/models"
)

// Store is the schedule persistence the resolver works against.
type Store interface {
	GetByDayOfWeek(ctx context.Context, dayOfWeek int) (*models.WeeklySchedule, error)
	UpsertWeekly(ctx context.Context, s *models.WeeklySchedule) error
	GetExceptionByDate(ctx context.Context, date string) (*models.Exception, error)
	UpsertException(ctx context.Context, e *models.Exception) error
	DeleteException(ctx context.Context, date string) error
	ListExceptions(ctx context.Context, dayOfWeek int) ([]models.Exception, error)
}

// Cache holds resolved effective hours keyed by date. Implementations may
// drop entries at any time; the resolver treats it as best-effort.
type Cache interface {
	GetEffectiveHours(ctx context.Context, date string) (*models.EffectiveHours, bool)
	SetEffectiveHours(ctx context.Context, eh *models.EffectiveHours)
	InvalidateDate(ctx context.Context, date string)
	Flush(ctx context.Context)
}

// WeeklyInput is the caller-supplied configuration for one day of week.
// Zero SlotDuration and OrdersPerSlot take the defaults.
type WeeklyInput struct {
	IsOpen        bool          `json:"is_open"`
	Hours         *models.Hours `json:"hours,omitempty"`
	SlotDuration  int           `json:"slot_duration,omitempty"`
	OrdersPerSlot int           `json:"orders_per_slot,omitempty"`
}

// ExceptionInput is the caller-supplied override for one calendar date.
type ExceptionInput struct {
	Date        time.Time
	IsClosed    bool
	CustomHours *models.Hours
	Reason      string
}

// Resolver implements schedule CRUD and effective-hours resolution.
type Resolver struct {
	store  Store
	cache  Cache
	logger *zerolog.Logger
}

// NewResolver creates a resolver over a schedule store.
func NewResolver(store Store, logger *zerolog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// UseCache enables best-effort caching of resolved effective hours.
func (r *Resolver) UseCache(cache Cache) {
	r.cache = cache
}

// GetByDayOfWeek returns the weekly entry for a day (0 = Sunday).
func (r *Resolver) GetByDayOfWeek(ctx context.Context, dayOfWeek int) (*models.WeeklySchedule, error) {
	if err := validateDayOfWeek(dayOfWeek); err != nil {
		return nil, err
	}
	return r.store.GetByDayOfWeek(ctx, dayOfWeek)
}

// Upsert creates or overwrites the weekly entry for a day. Exceptions
// attached to the day are untouched.
func (r *Resolver) Upsert(ctx context.Context, dayOfWeek int, input WeeklyInput) (*models.WeeklySchedule, error) {
	if err := validateDayOfWeek(dayOfWeek); err != nil {
		return nil, err
	}

	entry := &models.WeeklySchedule{
		DayOfWeek:     dayOfWeek,
		IsOpen:        input.IsOpen,
		Hours:         input.Hours,
		SlotDuration:  input.SlotDuration,
		OrdersPerSlot: input.OrdersPerSlot,
	}
	if entry.SlotDuration == 0 {
		entry.SlotDuration = models.DefaultSlotDuration
	}
	if entry.OrdersPerSlot == 0 {
		entry.OrdersPerSlot = models.DefaultOrdersPerSlot
	}

	if entry.SlotDuration < models.MinSlotDuration || entry.SlotDuration > models.MaxSlotDuration {
		return nil, models.Validationf("slot_duration", "%d is outside %d-%d minutes",
			entry.SlotDuration, models.MinSlotDuration, models.MaxSlotDuration)
	}
	if entry.OrdersPerSlot < models.MinOrdersPerSlot || entry.OrdersPerSlot > models.MaxOrdersPerSlot {
		return nil, models.Validationf("orders_per_slot", "%d is outside %d-%d",
			entry.OrdersPerSlot, models.MinOrdersPerSlot, models.MaxOrdersPerSlot)
	}
	if entry.IsOpen {
		if _, _, err := models.ValidateHours(entry.Hours); err != nil {
			return nil, err
		}
	} else {
		entry.Hours = nil
	}

	if err := r.store.UpsertWeekly(ctx, entry); err != nil {
		return nil, err
	}
	if r.cache != nil {
		// The weekly default feeds every date of this weekday; drop everything.
		r.cache.Flush(ctx)
	}
	r.logger.Info().
		Int("day_of_week", dayOfWeek).
		Bool("is_open", entry.IsOpen).
		Int("slot_duration", entry.SlotDuration).
		Int("orders_per_slot", entry.OrdersPerSlot).
		Msg("weekly schedule upserted")
	return r.store.GetByDayOfWeek(ctx, dayOfWeek)
}

// AddException creates or replaces the exception for a calendar date. Adding
// a second exception for the same date keeps only the latest.
func (r *Resolver) AddException(ctx context.Context, input ExceptionInput) (*models.Exception, error) {
	dateKey := models.DateKey(input.Date)
	dayOfWeek := int(input.Date.Weekday())

	// The owning weekly entry must exist.
	weekly, err := r.store.GetByDayOfWeek(ctx, dayOfWeek)
	if err != nil {
		return nil, err
	}

	if len(input.Reason) > models.MaxExceptionReasonLen {
		return nil, models.Validationf("reason", "longer than %d characters", models.MaxExceptionReasonLen)
	}
	if input.IsClosed && input.CustomHours != nil {
		return nil, models.Validationf("custom_hours", "must be absent when the date is closed")
	}
	if !input.IsClosed && input.CustomHours != nil {
		if _, _, err := models.ValidateHours(input.CustomHours); err != nil {
			return nil, err
		}
	}
	// An open override without its own hours falls back to the weekly hours;
	// when the weekly entry has none, the override could never yield a window.
	if !input.IsClosed && input.CustomHours == nil && weekly.Hours == nil {
		return nil, models.Validationf("custom_hours",
			"required to open %s; day %d has no weekly hours", dateKey, dayOfWeek)
	}

	exc := &models.Exception{
		DayOfWeek:   dayOfWeek,
		Date:        dateKey,
		IsClosed:    input.IsClosed,
		CustomHours: input.CustomHours,
		Reason:      input.Reason,
	}
	if err := r.store.UpsertException(ctx, exc); err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.InvalidateDate(ctx, dateKey)
	}
	r.logger.Info().
		Str("date", dateKey).
		Bool("is_closed", input.IsClosed).
		Msg("schedule exception upserted")
	return r.store.GetExceptionByDate(ctx, dateKey)
}

// RemoveException deletes the exception for a date; removing a date with no
// exception is a no-op, not an error.
func (r *Resolver) RemoveException(ctx context.Context, date time.Time) error {
	dateKey := models.DateKey(date)
	if err := r.store.DeleteException(ctx, dateKey); err != nil {
		return err
	}
	if r.cache != nil {
		r.cache.InvalidateDate(ctx, dateKey)
	}
	return nil
}

// ListExceptions returns the exceptions owned by a weekly entry.
func (r *Resolver) ListExceptions(ctx context.Context, dayOfWeek int) ([]models.Exception, error) {
	if err := validateDayOfWeek(dayOfWeek); err != nil {
		return nil, err
	}
	return r.store.ListExceptions(ctx, dayOfWeek)
}

// ResolveEffectiveHours computes the open state and hours for a calendar
// date. Exceptions override open/closed state and hours only; slot duration
// and per-slot capacity always come from the weekly entry.
func (r *Resolver) ResolveEffectiveHours(ctx context.Context, date time.Time) (*models.EffectiveHours, error) {
	dateKey := models.DateKey(date)

	if r.cache != nil {
		if eh, ok := r.cache.GetEffectiveHours(ctx, dateKey); ok {
			return eh, nil
		}
	}

	weekly, err := r.store.GetByDayOfWeek(ctx, int(date.Weekday()))
	if err != nil {
		return nil, err
	}

	exc, err := r.store.GetExceptionByDate(ctx, dateKey)
	if err != nil {
		return nil, err
	}

	eh := Merge(dateKey, weekly, exc)
	if r.cache != nil {
		r.cache.SetEffectiveHours(ctx, eh)
	}
	return eh, nil
}

// Merge applies an exception (possibly nil) over a weekly entry.
func Merge(dateKey string, weekly *models.WeeklySchedule, exc *models.Exception) *models.EffectiveHours {
	eh := &models.EffectiveHours{
		Date:          dateKey,
		IsOpen:        weekly.IsOpen,
		Hours:         weekly.Hours,
		SlotDuration:  weekly.SlotDuration,
		OrdersPerSlot: weekly.OrdersPerSlot,
	}
	if exc == nil {
		return eh
	}
	if exc.IsClosed {
		eh.IsOpen = false
		eh.Hours = nil
		return eh
	}
	eh.IsOpen = true
	if exc.CustomHours != nil {
		eh.Hours = exc.CustomHours
	}
	return eh
}

func validateDayOfWeek(day int) error {
	if day < 0 || day > 6 {
		return models.Validationf("day_of_week", "%d is outside 0-6", day)
	}
	return nil
}
