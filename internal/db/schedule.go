package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"orderslot/internal/models"
)

// GetByDayOfWeek returns the weekly entry for a day (0 = Sunday).
func (db *DB) GetByDayOfWeek(ctx context.Context, dayOfWeek int) (*models.WeeklySchedule, error) {
	var s models.WeeklySchedule
	var openTime, closeTime sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT day_of_week, is_open, open_time, close_time,
		       slot_duration, orders_per_slot, created_at, updated_at
		FROM weekly_schedules
		WHERE day_of_week = ?`,
		dayOfWeek,
	).Scan(
		&s.DayOfWeek, &s.IsOpen, &openTime, &closeTime,
		&s.SlotDuration, &s.OrdersPerSlot, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("day %d: %w", dayOfWeek, models.ErrScheduleNotConfigured)
	}
	if err != nil {
		return nil, storeErr("get weekly schedule", err)
	}
	if openTime.Valid && closeTime.Valid {
		s.Hours = &models.Hours{Open: openTime.String, Close: closeTime.String}
	}
	return &s, nil
}

// UpsertWeekly creates or overwrites the entry for its day of week.
// Exceptions for the day are left untouched.
func (db *DB) UpsertWeekly(ctx context.Context, s *models.WeeklySchedule) error {
	var openTime, closeTime any
	if s.Hours != nil {
		openTime, closeTime = s.Hours.Open, s.Hours.Close
	}
	ts := now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO weekly_schedules (
			day_of_week, is_open, open_time, close_time,
			slot_duration, orders_per_slot, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(day_of_week) DO UPDATE SET
			is_open = excluded.is_open,
			open_time = excluded.open_time,
			close_time = excluded.close_time,
			slot_duration = excluded.slot_duration,
			orders_per_slot = excluded.orders_per_slot,
			updated_at = excluded.updated_at`,
		s.DayOfWeek, s.IsOpen, openTime, closeTime,
		s.SlotDuration, s.OrdersPerSlot, ts, ts,
	)
	if err != nil {
		return storeErr("upsert weekly schedule", err)
	}
	return nil
}

// GetExceptionByDate returns the exception for a calendar date, or nil when
// none exists.
func (db *DB) GetExceptionByDate(ctx context.Context, date string) (*models.Exception, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, day_of_week, date, is_closed, open_time, close_time,
		       reason, created_at, updated_at
		FROM schedule_exceptions
		WHERE date = ?`,
		date,
	)
	e, err := scanException(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get exception", err)
	}
	return e, nil
}

// UpsertException creates or replaces the exception for its date.
func (db *DB) UpsertException(ctx context.Context, e *models.Exception) error {
	var openTime, closeTime any
	if e.CustomHours != nil {
		openTime, closeTime = e.CustomHours.Open, e.CustomHours.Close
	}
	var reason any
	if e.Reason != "" {
		reason = e.Reason
	}
	ts := now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO schedule_exceptions (
			day_of_week, date, is_closed, open_time, close_time,
			reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			day_of_week = excluded.day_of_week,
			is_closed = excluded.is_closed,
			open_time = excluded.open_time,
			close_time = excluded.close_time,
			reason = excluded.reason,
			updated_at = excluded.updated_at`,
		e.DayOfWeek, e.Date, e.IsClosed, openTime, closeTime, reason, ts, ts,
	)
	if err != nil {
		return storeErr("upsert exception", err)
	}
	return nil
}

// DeleteException removes the exception for a date. Deleting a date with no
// exception is not an error.
func (db *DB) DeleteException(ctx context.Context, date string) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM schedule_exceptions WHERE date = ?", date)
	if err != nil {
		return storeErr("delete exception", err)
	}
	return nil
}

// ListExceptions returns all exceptions owned by a weekly entry, ordered by date.
func (db *DB) ListExceptions(ctx context.Context, dayOfWeek int) ([]models.Exception, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, day_of_week, date, is_closed, open_time, close_time,
		       reason, created_at, updated_at
		FROM schedule_exceptions
		WHERE day_of_week = ?
		ORDER BY date`,
		dayOfWeek,
	)
	if err != nil {
		return nil, storeErr("list exceptions", err)
	}
	defer rows.Close()

	var exceptions []models.Exception
	for rows.Next() {
		e, err := scanException(rows)
		if err != nil {
			return nil, storeErr("list exceptions", err)
		}
		exceptions = append(exceptions, *e)
	}
	return exceptions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanException(row scanner) (*models.Exception, error) {
	var e models.Exception
	var openTime, closeTime, reason sql.NullString
	err := row.Scan(
		&e.ID, &e.DayOfWeek, &e.Date, &e.IsClosed, &openTime, &closeTime,
		&reason, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if openTime.Valid && closeTime.Valid {
		e.CustomHours = &models.Hours{Open: openTime.String, Close: closeTime.String}
	}
	if reason.Valid {
		e.Reason = reason.String
	}
	return &e, nil
}
