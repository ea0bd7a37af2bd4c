// Package export builds slot occupancy reports for a date range, one sheet
// per date.
package export

import (
	"context"
	"fmt"
	"io"
	"strings"

	"orderslot/internal/models"
)

// SlotSource provides the slots covered by a report.
type SlotSource interface {
	FindByDateRange(ctx context.Context, start, end string, onlyAvailable bool) ([]*models.TimeSlot, error)
}

// OccupancyReport exports slot occupancy for a date range as an Excel
// workbook.
type OccupancyReport struct {
	source   SlotSource
	workbook func() Workbook
}

// NewOccupancyReport creates a report over a slot source. workbookFactory
// yields a fresh workbook per export.
func NewOccupancyReport(source SlotSource, workbookFactory func() Workbook) *OccupancyReport {
	return &OccupancyReport{source: source, workbook: workbookFactory}
}

var reportColumns = []string{"Start", "End", "Capacity", "Orders", "Status", "Order IDs"}

// WriteRange writes the report for start..end (inclusive, YYYY-MM-DD) to w.
func (r *OccupancyReport) WriteRange(ctx context.Context, start, end string, w io.Writer) error {
	slotsInRange, err := r.source.FindByDateRange(ctx, start, end, false)
	if err != nil {
		return fmt.Errorf("load slots: %w", err)
	}

	workbook := r.workbook()
	if workbook == nil {
		return fmt.Errorf("failed to create workbook")
	}
	defer workbook.Close()

	if len(slotsInRange) == 0 {
		if err := workbook.StartSheet("Empty", []string{"No slots in range"}); err != nil {
			return err
		}
		return workbook.Save(w)
	}

	currentDate := ""
	for _, slot := range slotsInRange {
		if slot.Date != currentDate {
			currentDate = slot.Date
			if err := workbook.StartSheet(currentDate, reportColumns); err != nil {
				return fmt.Errorf("sheet %s: %w", currentDate, err)
			}
		}

		row := []any{
			slot.StartTime,
			slot.EndTime,
			slot.Capacity,
			slot.CurrentOrders,
			slot.Status,
			strings.Join(slot.Orders, ", "),
		}
		if err := workbook.AppendRow(row); err != nil {
			return fmt.Errorf("sheet %s: %w", currentDate, err)
		}
	}

	return workbook.Save(w)
}
