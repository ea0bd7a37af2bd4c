package models

import "errors"

// Domain failures. Callers distinguish them with errors.Is; every failure
// path in the scheduling core resolves to exactly one of these or to a
// *ValidationError.
var (
	// ErrScheduleNotConfigured - no weekly entry exists for the requested weekday.
	ErrScheduleNotConfigured = errors.New("schedule not configured")

	// ErrSlotNotFound - no slot matches the identifier or (date, start) window.
	ErrSlotNotFound = errors.New("slot not found")

	// ErrSlotFull - the slot is at capacity or not accepting orders.
	ErrSlotFull = errors.New("slot full")

	// ErrOrderAlreadyAssigned - the order is already in the slot.
	ErrOrderAlreadyAssigned = errors.New("order already assigned to slot")

	// ErrSlotHasOrders - the slot cannot be deleted while orders remain.
	ErrSlotHasOrders = errors.New("slot has assigned orders")

	// ErrNoAvailableSlot - the scan horizon was exhausted without a free slot.
	ErrNoAvailableSlot = errors.New("no available slot")

	// ErrStoreTimeout - a store call exceeded the caller's deadline.
	ErrStoreTimeout = errors.New("store timeout")
)
