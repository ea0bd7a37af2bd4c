package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"orderslot/internal/models"
)

// InsertSlots persists a batch of generated slots in one transaction.
func (db *DB) InsertSlots(ctx context.Context, slots []*models.TimeSlot) error {
	if len(slots) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("insert slots", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO time_slots (
			id, date, start_time, end_time, capacity,
			current_orders, status, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, 0, ?, 1, ?, ?)`)
	if err != nil {
		return storeErr("insert slots", err)
	}
	defer stmt.Close()

	ts := now()
	for _, s := range slots {
		if _, err := stmt.ExecContext(ctx,
			s.ID, s.Date, s.StartTime, s.EndTime, s.Capacity, s.Status, ts, ts,
		); err != nil {
			return storeErr("insert slot "+s.Date+" "+s.StartTime, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("insert slots", err)
	}
	return nil
}

// HasSlotsForDate reports whether any slots exist for a calendar date.
func (db *DB) HasSlotsForDate(ctx context.Context, date string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM time_slots WHERE date = ?", date,
	).Scan(&count)
	if err != nil {
		return false, storeErr("count slots", err)
	}
	return count > 0, nil
}

// GetSlot returns a slot with its assigned orders.
func (db *DB) GetSlot(ctx context.Context, slotID string) (*models.TimeSlot, error) {
	row := db.QueryRowContext(ctx, selectSlots+" WHERE id = ?", slotID)
	s, err := scanSlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("slot %s: %w", slotID, models.ErrSlotNotFound)
	}
	if err != nil {
		return nil, storeErr("get slot", err)
	}
	if err := db.loadOrders(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// GetSlotByWindow returns the slot matching an exact (date, start time) window.
func (db *DB) GetSlotByWindow(ctx context.Context, date, startTime string) (*models.TimeSlot, error) {
	row := db.QueryRowContext(ctx,
		selectSlots+" WHERE date = ? AND start_time = ?", date, startTime)
	s, err := scanSlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("slot %s %s: %w", date, startTime, models.ErrSlotNotFound)
	}
	if err != nil {
		return nil, storeErr("get slot by window", err)
	}
	if err := db.loadOrders(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// FindByDate returns all slots for a date ordered by start time.
func (db *DB) FindByDate(ctx context.Context, date string) ([]*models.TimeSlot, error) {
	return db.querySlots(ctx,
		selectSlots+" WHERE date = ? ORDER BY start_time", date)
}

// FindByDateRange returns slots with start <= date <= end ordered by
// (date, start time), optionally filtered to available slots only.
func (db *DB) FindByDateRange(ctx context.Context, start, end string, onlyAvailable bool) ([]*models.TimeSlot, error) {
	query := selectSlots + " WHERE date >= ? AND date <= ?"
	if onlyAvailable {
		query += " AND status = 'active' AND current_orders < capacity"
	}
	query += " ORDER BY date, start_time"
	return db.querySlots(ctx, query, start, end)
}

// FindNextAvailable returns the earliest available slot on or after fromDate,
// or ErrSlotNotFound when none is persisted yet.
func (db *DB) FindNextAvailable(ctx context.Context, fromDate string) (*models.TimeSlot, error) {
	row := db.QueryRowContext(ctx, selectSlots+`
		WHERE date >= ? AND status = 'active' AND current_orders < capacity
		ORDER BY date, start_time
		LIMIT 1`,
		fromDate,
	)
	s, err := scanSlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("from %s: %w", fromDate, models.ErrSlotNotFound)
	}
	if err != nil {
		return nil, storeErr("find next available", err)
	}
	if err := db.loadOrders(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// AddOrder assigns an order to a slot. The capacity check is part of the
// write predicate, so two concurrent calls can never over-fill the slot:
// the membership insert and the guarded counter update commit together or
// not at all.
func (db *DB) AddOrder(ctx context.Context, slotID, orderID string) (*models.TimeSlot, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("add order", err)
	}
	defer tx.Rollback()

	var capacity, current int
	var status string
	err = tx.QueryRowContext(ctx,
		"SELECT capacity, current_orders, status FROM time_slots WHERE id = ?",
		slotID,
	).Scan(&capacity, &current, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("slot %s: %w", slotID, models.ErrSlotNotFound)
	}
	if err != nil {
		return nil, storeErr("add order", err)
	}

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM slot_orders WHERE slot_id = ? AND order_id = ?",
		slotID, orderID,
	).Scan(&exists)
	if err != nil {
		return nil, storeErr("add order", err)
	}
	if exists > 0 {
		return nil, fmt.Errorf("order %s in slot %s: %w", orderID, slotID, models.ErrOrderAlreadyAssigned)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO slot_orders (slot_id, order_id, created_at) VALUES (?, ?, ?)",
		slotID, orderID, now(),
	); err != nil {
		return nil, storeErr("add order", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE time_slots
		SET current_orders = current_orders + 1,
		    status = CASE WHEN current_orders + 1 >= capacity THEN 'full' ELSE status END,
		    version = version + 1,
		    updated_at = ?
		WHERE id = ? AND status = 'active' AND current_orders < capacity`,
		now(), slotID,
	)
	if err != nil {
		return nil, storeErr("add order", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, storeErr("add order", err)
	}
	if affected == 0 {
		// Rollback discards the membership row; no partial assignment remains.
		return nil, fmt.Errorf("slot %s: %w", slotID, models.ErrSlotFull)
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("add order", err)
	}
	return db.GetSlot(ctx, slotID)
}

// RemoveOrder removes an order from a slot. Removing an order that is not
// assigned succeeds without mutation.
func (db *DB) RemoveOrder(ctx context.Context, slotID, orderID string) (*models.TimeSlot, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("remove order", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM time_slots WHERE id = ?", slotID,
	).Scan(&exists)
	if err != nil {
		return nil, storeErr("remove order", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("slot %s: %w", slotID, models.ErrSlotNotFound)
	}

	res, err := tx.ExecContext(ctx,
		"DELETE FROM slot_orders WHERE slot_id = ? AND order_id = ?",
		slotID, orderID,
	)
	if err != nil {
		return nil, storeErr("remove order", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return nil, storeErr("remove order", err)
	}
	if deleted == 0 {
		// Order was not assigned; nothing to do.
		return db.GetSlot(ctx, slotID)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE time_slots
		SET current_orders = current_orders - 1,
		    status = CASE WHEN status = 'full' AND current_orders - 1 < capacity
		                  THEN 'active' ELSE status END,
		    version = version + 1,
		    updated_at = ?
		WHERE id = ?`,
		now(), slotID,
	); err != nil {
		return nil, storeErr("remove order", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("remove order", err)
	}
	return db.GetSlot(ctx, slotID)
}

// SetSlotStatus forces a slot status. Closing is allowed regardless of
// occupancy; reactivating a slot at capacity fails with ErrSlotFull.
func (db *DB) SetSlotStatus(ctx context.Context, slotID, status string) error {
	switch status {
	case models.StatusClosed:
		res, err := db.ExecContext(ctx,
			"UPDATE time_slots SET status = 'closed', version = version + 1, updated_at = ? WHERE id = ?",
			now(), slotID,
		)
		if err != nil {
			return storeErr("set slot status", err)
		}
		return requireAffected(res, slotID)

	case models.StatusActive:
		res, err := db.ExecContext(ctx, `
			UPDATE time_slots
			SET status = 'active', version = version + 1, updated_at = ?
			WHERE id = ? AND current_orders < capacity`,
			now(), slotID,
		)
		if err != nil {
			return storeErr("set slot status", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return storeErr("set slot status", err)
		}
		if affected > 0 {
			return nil
		}
		// Distinguish a missing slot from a full one.
		if _, err := db.GetSlot(ctx, slotID); err != nil {
			return err
		}
		return fmt.Errorf("slot %s: %w", slotID, models.ErrSlotFull)

	default:
		return models.Validationf("status", "%q cannot be forced; use %q or %q",
			status, models.StatusActive, models.StatusClosed)
	}
}

// DeleteSlot removes an empty slot. A slot with assigned orders is protected.
func (db *DB) DeleteSlot(ctx context.Context, slotID string) error {
	res, err := db.ExecContext(ctx,
		"DELETE FROM time_slots WHERE id = ? AND current_orders = 0", slotID)
	if err != nil {
		return storeErr("delete slot", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr("delete slot", err)
	}
	if affected > 0 {
		return nil
	}

	var current int
	err = db.QueryRowContext(ctx,
		"SELECT current_orders FROM time_slots WHERE id = ?", slotID,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("slot %s: %w", slotID, models.ErrSlotNotFound)
	}
	if err != nil {
		return storeErr("delete slot", err)
	}
	return fmt.Errorf("slot %s holds %d orders: %w", slotID, current, models.ErrSlotHasOrders)
}

const selectSlots = `
	SELECT id, date, start_time, end_time, capacity, current_orders,
	       status, version, created_at, updated_at
	FROM time_slots`

func scanSlot(row scanner) (*models.TimeSlot, error) {
	var s models.TimeSlot
	err := row.Scan(
		&s.ID, &s.Date, &s.StartTime, &s.EndTime, &s.Capacity, &s.CurrentOrders,
		&s.Status, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) querySlots(ctx context.Context, query string, args ...any) ([]*models.TimeSlot, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("query slots", err)
	}
	defer rows.Close()

	var slots []*models.TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, storeErr("query slots", err)
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("query slots", err)
	}

	for _, s := range slots {
		if err := db.loadOrders(ctx, s); err != nil {
			return nil, err
		}
	}
	return slots, nil
}

func (db *DB) loadOrders(ctx context.Context, s *models.TimeSlot) error {
	rows, err := db.QueryContext(ctx,
		"SELECT order_id FROM slot_orders WHERE slot_id = ? ORDER BY created_at, order_id",
		s.ID,
	)
	if err != nil {
		return storeErr("load slot orders", err)
	}
	defer rows.Close()

	s.Orders = s.Orders[:0]
	for rows.Next() {
		var orderID string
		if err := rows.Scan(&orderID); err != nil {
			return storeErr("load slot orders", err)
		}
		s.Orders = append(s.Orders, orderID)
	}
	return rows.Err()
}

func requireAffected(res sql.Result, slotID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr("set slot status", err)
	}
	if affected == 0 {
		return fmt.Errorf("slot %s: %w", slotID, models.ErrSlotNotFound)
	}
	return nil
}
