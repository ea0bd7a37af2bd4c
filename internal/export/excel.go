package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Workbook renders report sheets. StartSheet opens a named sheet and writes
// its header row; AppendRow adds data rows below it.
type Workbook interface {
	StartSheet(name string, columns []string) error
	AppendRow(cells []any) error
	Save(w io.Writer) error
	Close() error
}

type xlsxWorkbook struct {
	file  *excelize.File
	sheet string
	row   int
}

// NewWorkbook creates an empty Excel workbook.
func NewWorkbook() Workbook {
	return &xlsxWorkbook{file: excelize.NewFile()}
}

func (b *xlsxWorkbook) StartSheet(name string, columns []string) error {
	// Excel caps sheet names at 31 chars
	if len(name) > 31 {
		name = name[:31]
	}
	if b.sheet == "" {
		b.file.SetSheetName("Sheet1", name)
	} else if _, err := b.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	b.sheet = name
	b.row = 1

	cells := make([]any, len(columns))
	for i, col := range columns {
		cells[i] = col
	}
	if err := b.AppendRow(cells); err != nil {
		return err
	}
	return b.boldRow(1, len(columns))
}

func (b *xlsxWorkbook) AppendRow(cells []any) error {
	if b.sheet == "" {
		return fmt.Errorf("no active sheet")
	}
	for i, val := range cells {
		cell, err := excelize.CoordinatesToCellName(i+1, b.row)
		if err != nil {
			return err
		}
		if err := b.file.SetCellValue(b.sheet, cell, val); err != nil {
			return err
		}
	}
	b.row++
	return nil
}

func (b *xlsxWorkbook) boldRow(row, width int) error {
	if width == 0 {
		return nil
	}
	style, err := b.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return nil
	}
	start, _ := excelize.CoordinatesToCellName(1, row)
	end, _ := excelize.CoordinatesToCellName(width, row)
	return b.file.SetCellStyle(b.sheet, start, end, style)
}

// Save writes the workbook to w.
func (b *xlsxWorkbook) Save(w io.Writer) error {
	return b.file.Write(w)
}

// Close releases resources.
func (b *xlsxWorkbook) Close() error {
	return b.file.Close()
}
