package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"orderslot/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	// A file-backed DB is required here: ":memory:" gives each pool
	// connection its own empty database, and RemoveOrder's no-op path
	// reads on a second connection while the transaction holds the first.
	database, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func seedWeekly(t *testing.T, database *DB, day int) {
	t.Helper()
	err := database.UpsertWeekly(context.Background(), &models.WeeklySchedule{
		DayOfWeek:     day,
		IsOpen:        true,
		Hours:         &models.Hours{Open: "09:00", Close: "18:00"},
		SlotDuration:  10,
		OrdersPerSlot: 2,
	})
	if err != nil {
		t.Fatalf("seed weekly day %d: %v", day, err)
	}
}

func seedSlot(t *testing.T, database *DB, date, start, end string, capacity int) *models.TimeSlot {
	t.Helper()
	slot := &models.TimeSlot{
		ID:        uuid.NewString(),
		Date:      date,
		StartTime: start,
		EndTime:   end,
		Capacity:  capacity,
		Status:    models.StatusActive,
	}
	if err := database.InsertSlots(context.Background(), []*models.TimeSlot{slot}); err != nil {
		t.Fatalf("seed slot: %v", err)
	}
	return slot
}

func TestWeeklyScheduleUpsert(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	_, err := database.GetByDayOfWeek(ctx, 1)
	if !errors.Is(err, models.ErrScheduleNotConfigured) {
		t.Fatalf("expected ErrScheduleNotConfigured, got %v", err)
	}

	seedWeekly(t, database, 1)

	got, err := database.GetByDayOfWeek(ctx, 1)
	if err != nil {
		t.Fatalf("get weekly: %v", err)
	}
	if !got.IsOpen || got.Hours == nil || got.Hours.Open != "09:00" {
		t.Fatalf("unexpected weekly entry: %+v", got)
	}

	// Overwrite the same day; the entry is replaced, not duplicated.
	err = database.UpsertWeekly(ctx, &models.WeeklySchedule{
		DayOfWeek:     1,
		IsOpen:        false,
		SlotDuration:  15,
		OrdersPerSlot: 3,
	})
	if err != nil {
		t.Fatalf("overwrite weekly: %v", err)
	}

	got, err = database.GetByDayOfWeek(ctx, 1)
	if err != nil {
		t.Fatalf("get weekly after overwrite: %v", err)
	}
	if got.IsOpen || got.Hours != nil || got.SlotDuration != 15 {
		t.Fatalf("overwrite did not replace entry: %+v", got)
	}
}

func TestExceptionUpsertByDate(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	seedWeekly(t, database, 2)

	got, err := database.GetExceptionByDate(ctx, "2025-06-10")
	if err != nil || got != nil {
		t.Fatalf("expected no exception, got %+v err %v", got, err)
	}

	err = database.UpsertException(ctx, &models.Exception{
		DayOfWeek: 2,
		Date:      "2025-06-10",
		IsClosed:  true,
		Reason:    "holiday",
	})
	if err != nil {
		t.Fatalf("upsert exception: %v", err)
	}

	// Second upsert for the same date replaces the first.
	err = database.UpsertException(ctx, &models.Exception{
		DayOfWeek:   2,
		Date:        "2025-06-10",
		IsClosed:    false,
		CustomHours: &models.Hours{Open: "10:00", Close: "14:00"},
	})
	if err != nil {
		t.Fatalf("replace exception: %v", err)
	}

	got, err = database.GetExceptionByDate(ctx, "2025-06-10")
	if err != nil {
		t.Fatalf("get exception: %v", err)
	}
	if got == nil || got.IsClosed || got.CustomHours == nil || got.CustomHours.Open != "10:00" {
		t.Fatalf("latest upsert should win: %+v", got)
	}
	if got.Reason != "" {
		t.Errorf("replaced exception kept stale reason %q", got.Reason)
	}

	list, err := database.ListExceptions(ctx, 2)
	if err != nil {
		t.Fatalf("list exceptions: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected exactly one exception for the date, got %d", len(list))
	}

	if err := database.DeleteException(ctx, "2025-06-10"); err != nil {
		t.Fatalf("delete exception: %v", err)
	}
	// Deleting again is a no-op.
	if err := database.DeleteException(ctx, "2025-06-10"); err != nil {
		t.Fatalf("delete absent exception: %v", err)
	}
}

func TestAddOrderCapacityGuard(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	slot := seedSlot(t, database, "2025-06-11", "09:00", "09:10", 2)

	got, err := database.AddOrder(ctx, slot.ID, "ord-1")
	if err != nil {
		t.Fatalf("first add: %v", err)
	}
	if got.CurrentOrders != 1 || got.Status != models.StatusActive {
		t.Fatalf("after first add: %+v", got)
	}

	got, err = database.AddOrder(ctx, slot.ID, "ord-2")
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if got.CurrentOrders != 2 || got.Status != models.StatusFull {
		t.Fatalf("slot should be full at capacity: %+v", got)
	}

	_, err = database.AddOrder(ctx, slot.ID, "ord-3")
	if !errors.Is(err, models.ErrSlotFull) {
		t.Fatalf("expected ErrSlotFull, got %v", err)
	}

	// The rejected assignment must leave no membership row behind.
	got, err = database.GetSlot(ctx, slot.ID)
	if err != nil {
		t.Fatalf("get slot: %v", err)
	}
	if len(got.Orders) != 2 || got.HasOrder("ord-3") {
		t.Fatalf("failed add leaked state: %+v", got.Orders)
	}

	// Freeing a seat reactivates the slot and admits one more order.
	got, err = database.RemoveOrder(ctx, slot.ID, "ord-1")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got.Status != models.StatusActive {
		t.Fatalf("slot should revert to active: %+v", got)
	}
	got, err = database.AddOrder(ctx, slot.ID, "ord-3")
	if err != nil {
		t.Fatalf("add after free: %v", err)
	}
	if got.CurrentOrders != 2 || got.Status != models.StatusFull {
		t.Fatalf("refilled slot: %+v", got)
	}
}

func TestAddOrderDuplicateAndMissing(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	slot := seedSlot(t, database, "2025-06-11", "10:00", "10:10", 3)

	if _, err := database.AddOrder(ctx, slot.ID, "ord-1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err := database.AddOrder(ctx, slot.ID, "ord-1")
	if !errors.Is(err, models.ErrOrderAlreadyAssigned) {
		t.Fatalf("expected ErrOrderAlreadyAssigned, got %v", err)
	}

	_, err = database.AddOrder(ctx, "no-such-slot", "ord-1")
	if !errors.Is(err, models.ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound, got %v", err)
	}
}

func TestRemoveOrderReactivatesFullSlot(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	slot := seedSlot(t, database, "2025-06-12", "09:00", "09:10", 1)

	if _, err := database.AddOrder(ctx, slot.ID, "ord-1"); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := database.RemoveOrder(ctx, slot.ID, "ord-1")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got.CurrentOrders != 0 || got.Status != models.StatusActive {
		t.Fatalf("removal should reactivate the slot: %+v", got)
	}

	// Removing an unassigned order succeeds without mutation.
	before := got.Version
	got, err = database.RemoveOrder(ctx, slot.ID, "ord-ghost")
	if err != nil {
		t.Fatalf("no-op remove: %v", err)
	}
	if got.Version != before || got.CurrentOrders != 0 {
		t.Fatalf("no-op remove mutated slot: %+v", got)
	}

	_, err = database.RemoveOrder(ctx, "no-such-slot", "ord-1")
	if !errors.Is(err, models.ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound, got %v", err)
	}
}

func TestRemoveOrderClosedSlotStaysClosed(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	slot := seedSlot(t, database, "2025-06-12", "10:00", "10:10", 2)

	if _, err := database.AddOrder(ctx, slot.ID, "ord-1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := database.SetSlotStatus(ctx, slot.ID, models.StatusClosed); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := database.RemoveOrder(ctx, slot.ID, "ord-1")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got.Status != models.StatusClosed {
		t.Fatalf("removal must not reopen a closed slot: %+v", got)
	}
}

func TestSetSlotStatus(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	slot := seedSlot(t, database, "2025-06-13", "09:00", "09:10", 1)

	if err := database.SetSlotStatus(ctx, slot.ID, models.StatusClosed); err != nil {
		t.Fatalf("close: %v", err)
	}
	got, _ := database.GetSlot(ctx, slot.ID)
	if got.Status != models.StatusClosed {
		t.Fatalf("slot not closed: %+v", got)
	}

	if err := database.SetSlotStatus(ctx, slot.ID, models.StatusActive); err != nil {
		t.Fatalf("reopen: %v", err)
	}

	// Fill the slot, close it, then reopening must fail while it is at capacity.
	if _, err := database.AddOrder(ctx, slot.ID, "ord-1"); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if err := database.SetSlotStatus(ctx, slot.ID, models.StatusClosed); err != nil {
		t.Fatalf("close full slot: %v", err)
	}
	err := database.SetSlotStatus(ctx, slot.ID, models.StatusActive)
	if !errors.Is(err, models.ErrSlotFull) {
		t.Fatalf("expected ErrSlotFull on reopening a full slot, got %v", err)
	}

	err = database.SetSlotStatus(ctx, "no-such-slot", models.StatusClosed)
	if !errors.Is(err, models.ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound, got %v", err)
	}

	var verr *models.ValidationError
	err = database.SetSlotStatus(ctx, slot.ID, "full")
	if !errors.As(err, &verr) {
		t.Fatalf("forcing 'full' should be a validation error, got %v", err)
	}
}

func TestDeleteSlotProtection(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	slot := seedSlot(t, database, "2025-06-14", "09:00", "09:10", 2)

	if _, err := database.AddOrder(ctx, slot.ID, "ord-1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	err := database.DeleteSlot(ctx, slot.ID)
	if !errors.Is(err, models.ErrSlotHasOrders) {
		t.Fatalf("expected ErrSlotHasOrders, got %v", err)
	}

	if _, err := database.RemoveOrder(ctx, slot.ID, "ord-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := database.DeleteSlot(ctx, slot.ID); err != nil {
		t.Fatalf("delete empty slot: %v", err)
	}

	err = database.DeleteSlot(ctx, slot.ID)
	if !errors.Is(err, models.ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound after delete, got %v", err)
	}
}

func TestFindByDateRange(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	seedSlot(t, database, "2025-06-10", "09:00", "09:10", 1)
	full := seedSlot(t, database, "2025-06-11", "09:00", "09:10", 1)
	seedSlot(t, database, "2025-06-12", "09:00", "09:10", 1)
	seedSlot(t, database, "2025-06-20", "09:00", "09:10", 1)

	if _, err := database.AddOrder(ctx, full.ID, "ord-1"); err != nil {
		t.Fatalf("fill slot: %v", err)
	}

	all, err := database.FindByDateRange(ctx, "2025-06-10", "2025-06-12", false)
	if err != nil {
		t.Fatalf("range query: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 slots in range, got %d", len(all))
	}
	// Ordered by (date, start_time); range bounds are inclusive.
	if all[0].Date != "2025-06-10" || all[2].Date != "2025-06-12" {
		t.Fatalf("range not ordered by date: %s .. %s", all[0].Date, all[2].Date)
	}

	available, err := database.FindByDateRange(ctx, "2025-06-10", "2025-06-12", true)
	if err != nil {
		t.Fatalf("available range query: %v", err)
	}
	if len(available) != 2 {
		t.Fatalf("full slot should be filtered out, got %d slots", len(available))
	}
	for _, s := range available {
		if !s.IsAvailable() {
			t.Errorf("unavailable slot in filtered result: %+v", s)
		}
	}
}

func TestFindNextAvailable(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	full := seedSlot(t, database, "2025-06-10", "09:00", "09:10", 1)
	seedSlot(t, database, "2025-06-10", "09:10", "09:20", 1)
	seedSlot(t, database, "2025-06-11", "09:00", "09:10", 1)

	if _, err := database.AddOrder(ctx, full.ID, "ord-1"); err != nil {
		t.Fatalf("fill slot: %v", err)
	}

	got, err := database.FindNextAvailable(ctx, "2025-06-10")
	if err != nil {
		t.Fatalf("find next: %v", err)
	}
	if got.Date != "2025-06-10" || got.StartTime != "09:10" {
		t.Fatalf("expected earliest available slot, got %s %s", got.Date, got.StartTime)
	}

	got, err = database.FindNextAvailable(ctx, "2025-06-11")
	if err != nil {
		t.Fatalf("find next from later date: %v", err)
	}
	if got.Date != "2025-06-11" {
		t.Fatalf("fromDate bound ignored: %+v", got)
	}

	_, err = database.FindNextAvailable(ctx, "2025-07-01")
	if !errors.Is(err, models.ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound past the horizon, got %v", err)
	}
}

func TestInsertSlotsAndHasSlotsForDate(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	ok, err := database.HasSlotsForDate(ctx, "2025-06-15")
	if err != nil || ok {
		t.Fatalf("expected no slots yet, got ok=%v err=%v", ok, err)
	}

	batch := []*models.TimeSlot{
		{ID: uuid.NewString(), Date: "2025-06-15", StartTime: "09:00", EndTime: "09:10", Capacity: 2, Status: models.StatusActive},
		{ID: uuid.NewString(), Date: "2025-06-15", StartTime: "09:10", EndTime: "09:20", Capacity: 2, Status: models.StatusActive},
	}
	if err := database.InsertSlots(ctx, batch); err != nil {
		t.Fatalf("insert batch: %v", err)
	}
	if err := database.InsertSlots(ctx, nil); err != nil {
		t.Fatalf("empty batch should be a no-op: %v", err)
	}

	ok, err = database.HasSlotsForDate(ctx, "2025-06-15")
	if err != nil || !ok {
		t.Fatalf("expected slots for date, got ok=%v err=%v", ok, err)
	}

	slots, err := database.FindByDate(ctx, "2025-06-15")
	if err != nil {
		t.Fatalf("find by date: %v", err)
	}
	if len(slots) != 2 || slots[0].StartTime != "09:00" {
		t.Fatalf("unexpected slots: %+v", slots)
	}
}

func TestExpiredContextSurfacesStoreTimeout(t *testing.T) {
	database := newTestDB(t)
	slot := seedSlot(t, database, "2025-06-17", "09:00", "09:10", 2)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Millisecond))
	defer cancel()

	_, err := database.GetByDayOfWeek(ctx, 1)
	if !errors.Is(err, models.ErrStoreTimeout) {
		t.Fatalf("read past deadline: expected ErrStoreTimeout, got %v", err)
	}

	_, err = database.AddOrder(ctx, slot.ID, "ord-1")
	if !errors.Is(err, models.ErrStoreTimeout) {
		t.Fatalf("write past deadline: expected ErrStoreTimeout, got %v", err)
	}

	// The failed write must not have touched the slot.
	got, err := database.GetSlot(context.Background(), slot.ID)
	if err != nil {
		t.Fatalf("get slot: %v", err)
	}
	if got.CurrentOrders != 0 || len(got.Orders) != 0 {
		t.Fatalf("timed-out write mutated slot: %+v", got)
	}
}

func TestGetSlotByWindow(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	seedSlot(t, database, "2025-06-16", "14:00", "14:10", 2)

	got, err := database.GetSlotByWindow(ctx, "2025-06-16", "14:00")
	if err != nil {
		t.Fatalf("get by window: %v", err)
	}
	if got.EndTime != "14:10" {
		t.Fatalf("unexpected slot: %+v", got)
	}

	_, err = database.GetSlotByWindow(ctx, "2025-06-16", "15:00")
	if !errors.Is(err, models.ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound, got %v", err)
	}
}
