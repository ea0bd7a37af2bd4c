package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"orderslot/internal/models"
)

// DB wraps sql.DB for the scheduling service.
type DB struct {
	*sql.DB
}

// NewDB opens database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Weekly recurring schedule, one row per day of week (0 = Sunday)
		`CREATE TABLE IF NOT EXISTS weekly_schedules (
			day_of_week INTEGER PRIMARY KEY CHECK (day_of_week BETWEEN 0 AND 6),
			is_open BOOLEAN NOT NULL DEFAULT 0,
			open_time TEXT,
			close_time TEXT,
			slot_duration INTEGER NOT NULL DEFAULT 10,
			orders_per_slot INTEGER NOT NULL DEFAULT 2,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Date-specific exceptions, owned by the weekly entry for that weekday
		`CREATE TABLE IF NOT EXISTS schedule_exceptions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			day_of_week INTEGER NOT NULL,
			date TEXT NOT NULL UNIQUE,
			is_closed BOOLEAN NOT NULL DEFAULT 0,
			open_time TEXT,
			close_time TEXT,
			reason TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (day_of_week) REFERENCES weekly_schedules(day_of_week) ON DELETE CASCADE
		)`,

		// Generated time slots; dates and clock times are stored as text so
		// lexicographic order equals temporal order
		`CREATE TABLE IF NOT EXISTS time_slots (
			id TEXT PRIMARY KEY,
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			capacity INTEGER NOT NULL CHECK (capacity >= 1),
			current_orders INTEGER NOT NULL DEFAULT 0 CHECK (current_orders >= 0),
			status TEXT NOT NULL DEFAULT 'active',
			version INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(date, start_time)
		)`,

		// Order membership per slot; unique pair rejects duplicate assignment
		`CREATE TABLE IF NOT EXISTS slot_orders (
			slot_id TEXT NOT NULL,
			order_id TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (slot_id, order_id),
			FOREIGN KEY (slot_id) REFERENCES time_slots(id) ON DELETE CASCADE
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_exceptions_day ON schedule_exceptions(day_of_week)`,
		`CREATE INDEX IF NOT EXISTS idx_slots_date_start ON time_slots(date, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_slots_status ON time_slots(status)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// storeErr wraps a store failure, surfacing deadline expiry as ErrStoreTimeout.
func storeErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, models.ErrStoreTimeout)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func now() time.Time {
	return time.Now().UTC()
}
