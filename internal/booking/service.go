// Package booking allocates orders into time slots and keeps the capacity
// and status invariants: a slot never exceeds its capacity, turns full
// exactly when the last seat is taken, and reverts to active when one frees
// up, unless a manager has forced it closed.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"orderslot/internal/metrics"
	"orderslot/internal/models"
)

// SlotStore is the slot persistence the allocator works against. AddOrder
// and RemoveOrder must be atomic per slot: the capacity check belongs to the
// write predicate, not the caller.
type SlotStore interface {
	GetSlot(ctx context.Context, slotID string) (*models.TimeSlot, error)
	GetSlotByWindow(ctx context.Context, date, startTime string) (*models.TimeSlot, error)
	AddOrder(ctx context.Context, slotID, orderID string) (*models.TimeSlot, error)
	RemoveOrder(ctx context.Context, slotID, orderID string) (*models.TimeSlot, error)
	SetSlotStatus(ctx context.Context, slotID, status string) error
	FindNextAvailable(ctx context.Context, fromDate string) (*models.TimeSlot, error)
}

// Generator creates slots for a date when the scan walks past the horizon of
// already-persisted days.
type Generator interface {
	GenerateSlotsForDate(ctx context.Context, date time.Time) ([]*models.TimeSlot, error)
}

// Service is the slot allocator.
type Service struct {
	store          SlotStore
	generator      Generator
	defaultHorizon int
	logger         *zerolog.Logger
}

// NewService creates an allocator. defaultHorizon bounds on-demand
// generation in FindNextAvailableSlot when the caller passes no limit.
func NewService(store SlotStore, generator Generator, defaultHorizon int, logger *zerolog.Logger) *Service {
	if defaultHorizon <= 0 {
		defaultHorizon = 30
	}
	return &Service{
		store:          store,
		generator:      generator,
		defaultHorizon: defaultHorizon,
		logger:         logger,
	}
}

// AddOrder assigns an order to a slot. Fails with ErrSlotNotFound,
// ErrSlotFull or ErrOrderAlreadyAssigned; on failure no state changes.
func (s *Service) AddOrder(ctx context.Context, slotID, orderID string) (*models.TimeSlot, error) {
	if err := validateOrderID(orderID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(slotID) == "" {
		return nil, models.Validationf("slot_id", "must not be empty")
	}

	slot, err := s.store.AddOrder(ctx, slotID, orderID)
	if err != nil {
		metrics.IncOrderAssigned(assignResult(err))
		return nil, err
	}

	metrics.IncOrderAssigned("ok")
	s.logger.Info().
		Str("slot_id", slot.ID).
		Str("order_id", orderID).
		Str("date", slot.Date).
		Str("start", slot.StartTime).
		Int("current_orders", slot.CurrentOrders).
		Str("status", slot.Status).
		Msg("order assigned to slot")
	return slot, nil
}

// RemoveOrder detaches an order from a slot. Removing an order that is not
// assigned is a no-op success.
func (s *Service) RemoveOrder(ctx context.Context, slotID, orderID string) (*models.TimeSlot, error) {
	if err := validateOrderID(orderID); err != nil {
		return nil, err
	}

	slot, err := s.store.RemoveOrder(ctx, slotID, orderID)
	if err != nil {
		return nil, err
	}

	metrics.IncOrderRemoved()
	s.logger.Info().
		Str("slot_id", slot.ID).
		Str("order_id", orderID).
		Int("current_orders", slot.CurrentOrders).
		Str("status", slot.Status).
		Msg("order removed from slot")
	return slot, nil
}

// AssignOrderToSlot looks up the slot by its exact (date, start time) window
// and assigns the order to it.
func (s *Service) AssignOrderToSlot(ctx context.Context, orderID string, date time.Time, startTime string) (*models.TimeSlot, error) {
	if err := validateOrderID(orderID); err != nil {
		return nil, err
	}
	if _, err := models.ParseClock(startTime); err != nil {
		return nil, err
	}

	slot, err := s.store.GetSlotByWindow(ctx, models.DateKey(date), startTime)
	if err != nil {
		return nil, err
	}
	return s.AddOrder(ctx, slot.ID, orderID)
}

// FindNextAvailableSlot returns the earliest available slot on or after
// fromDate. When persisted slots run out it generates subsequent days on
// demand, at most maxDays past fromDate (service default when maxDays <= 0),
// and fails with ErrNoAvailableSlot once the horizon is exhausted. Days
// whose weekly schedule is not configured are skipped, not fatal.
func (s *Service) FindNextAvailableSlot(ctx context.Context, fromDate time.Time, maxDays int) (*models.TimeSlot, error) {
	if maxDays <= 0 {
		maxDays = s.defaultHorizon
	}
	fromKey := models.DateKey(fromDate)

	slot, err := s.store.FindNextAvailable(ctx, fromKey)
	if err == nil {
		metrics.ObserveNextSlotScanDays(0)
		return slot, nil
	}
	if !errors.Is(err, models.ErrSlotNotFound) {
		return nil, err
	}

	for day := 0; day < maxDays; day++ {
		date := fromDate.AddDate(0, 0, day)
		if _, err := s.generator.GenerateSlotsForDate(ctx, date); err != nil {
			if errors.Is(err, models.ErrScheduleNotConfigured) {
				continue
			}
			return nil, fmt.Errorf("generate %s: %w", models.DateKey(date), err)
		}

		slot, err := s.store.FindNextAvailable(ctx, fromKey)
		if err == nil {
			metrics.ObserveNextSlotScanDays(day + 1)
			return slot, nil
		}
		if !errors.Is(err, models.ErrSlotNotFound) {
			return nil, err
		}
	}

	s.logger.Debug().
		Str("from", fromKey).
		Int("max_days", maxDays).
		Msg("next-slot scan exhausted horizon")
	return nil, fmt.Errorf("from %s within %d days: %w", fromKey, maxDays, models.ErrNoAvailableSlot)
}

// SetStatus forces a slot status. Closing is always allowed; reactivating a
// full slot fails with ErrSlotFull. The full status is derived from
// occupancy and cannot be forced.
func (s *Service) SetStatus(ctx context.Context, slotID, status string) error {
	if !models.ValidStatus(status) {
		return models.Validationf("status", "unknown status %q", status)
	}
	if status == models.StatusFull {
		return models.Validationf("status", "full is derived from occupancy and cannot be forced")
	}

	if err := s.store.SetSlotStatus(ctx, slotID, status); err != nil {
		return err
	}
	s.logger.Info().
		Str("slot_id", slotID).
		Str("status", status).
		Msg("slot status forced")
	return nil
}

func validateOrderID(orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return models.Validationf("order_id", "must not be empty")
	}
	return nil
}

func assignResult(err error) string {
	switch {
	case errors.Is(err, models.ErrSlotFull):
		return "slot_full"
	case errors.Is(err, models.ErrOrderAlreadyAssigned):
		return "duplicate"
	case errors.Is(err, models.ErrSlotNotFound):
		return "not_found"
	default:
		return "error"
	}
}
