// Package slots turns effective opening hours into persisted fixed-duration
// time slots.
package slots

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"orderslot/internal/metrics"
	"orderslot/internal/models"
)

// HoursResolver produces the effective hours for a calendar date.
type HoursResolver interface {
	ResolveEffectiveHours(ctx context.Context, date time.Time) (*models.EffectiveHours, error)
}

// SlotStore persists and queries generated slots.
type SlotStore interface {
	HasSlotsForDate(ctx context.Context, date string) (bool, error)
	InsertSlots(ctx context.Context, slots []*models.TimeSlot) error
	FindByDate(ctx context.Context, date string) ([]*models.TimeSlot, error)
}

// Per-date outcome labels in bulk generation reports.
const (
	DayGenerated = "generated"
	DayClosed    = "closed"
	DayExists    = "exists"
	DayFailed    = "failed"
)

// DayResult is the outcome of generating one date in a bulk run.
type DayResult struct {
	Date   string `json:"date"`
	Status string `json:"status"`
	Slots  int    `json:"slots"`
	Error  string `json:"error,omitempty"`
}

// BulkReport aggregates per-date outcomes of a bulk generation run. A failed
// date never aborts the remaining dates.
type BulkReport struct {
	Success int         `json:"success"`
	Failed  int         `json:"failed"`
	Details []DayResult `json:"details"`
}

// Generator creates time slots for calendar dates.
type Generator struct {
	resolver HoursResolver
	store    SlotStore
	logger   *zerolog.Logger
}

// NewGenerator creates a slot generator.
func NewGenerator(resolver HoursResolver, store SlotStore, logger *zerolog.Logger) *Generator {
	return &Generator{resolver: resolver, store: store, logger: logger}
}

// GenerateSlotsForDate creates and persists the slots for one date. A closed
// date yields no slots and no error. Generation is idempotent per date: when
// slots already exist they are returned as-is, never duplicated.
func (g *Generator) GenerateSlotsForDate(ctx context.Context, date time.Time) ([]*models.TimeSlot, error) {
	eh, err := g.resolver.ResolveEffectiveHours(ctx, date)
	if err != nil {
		return nil, err
	}
	if !eh.IsOpen {
		return nil, nil
	}

	exists, err := g.store.HasSlotsForDate(ctx, eh.Date)
	if err != nil {
		return nil, err
	}
	if exists {
		return g.store.FindByDate(ctx, eh.Date)
	}

	generated := Build(eh)
	if len(generated) == 0 {
		return nil, nil
	}
	if err := g.store.InsertSlots(ctx, generated); err != nil {
		return nil, err
	}

	metrics.AddSlotsGenerated(len(generated))
	g.logger.Info().
		Str("date", eh.Date).
		Int("slots", len(generated)).
		Str("open", eh.Hours.Open).
		Str("close", eh.Hours.Close).
		Msg("slots generated")
	return generated, nil
}

// BulkGenerate generates each date in [start, start+days) independently and
// reports per-date outcomes instead of failing the batch. A date whose
// weekly schedule is missing is reported as failed with the
// schedule-not-configured error; the run continues.
func (g *Generator) BulkGenerate(ctx context.Context, start time.Time, days int) (*BulkReport, error) {
	if days <= 0 {
		return nil, models.Validationf("days", "%d must be positive", days)
	}

	report := &BulkReport{Details: make([]DayResult, 0, days)}
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)
		result := g.generateDay(ctx, date)
		if result.Status == DayFailed {
			report.Failed++
		} else {
			report.Success++
		}
		metrics.IncGenerationDay(result.Status)
		report.Details = append(report.Details, result)
	}
	return report, nil
}

func (g *Generator) generateDay(ctx context.Context, date time.Time) DayResult {
	dateKey := models.DateKey(date)

	eh, err := g.resolver.ResolveEffectiveHours(ctx, date)
	if err != nil {
		g.logger.Warn().Err(err).Str("date", dateKey).Msg("bulk generation date failed")
		return DayResult{Date: dateKey, Status: DayFailed, Error: err.Error()}
	}
	if !eh.IsOpen {
		return DayResult{Date: dateKey, Status: DayClosed}
	}

	exists, err := g.store.HasSlotsForDate(ctx, dateKey)
	if err != nil {
		return DayResult{Date: dateKey, Status: DayFailed, Error: err.Error()}
	}
	if exists {
		return DayResult{Date: dateKey, Status: DayExists}
	}

	generated, err := g.GenerateSlotsForDate(ctx, date)
	if err != nil {
		g.logger.Warn().Err(err).Str("date", dateKey).Msg("bulk generation date failed")
		return DayResult{Date: dateKey, Status: DayFailed, Error: err.Error()}
	}
	return DayResult{Date: dateKey, Status: DayGenerated, Slots: len(generated)}
}

// Build partitions the open interval into slots of the effective duration.
// The trailing remainder shorter than one slot is dropped. Build assumes
// hours already validated; malformed hours yield no slots.
func Build(eh *models.EffectiveHours) []*models.TimeSlot {
	if eh.Hours == nil || eh.SlotDuration <= 0 {
		return nil
	}
	openMin, err := models.ParseClock(eh.Hours.Open)
	if err != nil {
		return nil
	}
	closeMin, err := models.ParseClock(eh.Hours.Close)
	if err != nil {
		return nil
	}

	var generated []*models.TimeSlot
	for cur := openMin; cur+eh.SlotDuration <= closeMin; cur += eh.SlotDuration {
		generated = append(generated, &models.TimeSlot{
			ID:        uuid.NewString(),
			Date:      eh.Date,
			StartTime: models.FormatClock(cur),
			EndTime:   models.FormatClock(cur + eh.SlotDuration),
			Capacity:  eh.OrdersPerSlot,
			Status:    models.StatusActive,
			Version:   1,
		})
	}
	return generated
}
