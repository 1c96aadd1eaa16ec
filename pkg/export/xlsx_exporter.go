package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Summary"
	entriesSheet = "Entries"
)

// XLSXExporter renders datasets into a two-sheet workbook.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// ContentType of rendered output.
func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension of rendered output.
func (e *XLSXExporter) Extension() string { return "xlsx" }

// Render writes the summary block to one sheet and the table to another.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("rename summary sheet: %w", err)
	}
	row := 1
	if data.Title != "" {
		if err := f.SetCellValue(summarySheet, "A1", data.Title); err != nil {
			return nil, fmt.Errorf("write title: %w", err)
		}
		row = 3
	}
	for _, line := range data.Summary {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", row), &[]interface{}{line.Label, line.Value}); err != nil {
			return nil, fmt.Errorf("write summary row: %w", err)
		}
		row++
	}

	if _, err := f.NewSheet(entriesSheet); err != nil {
		return nil, fmt.Errorf("create entries sheet: %w", err)
	}
	for i, header := range data.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(entriesSheet, cell, header); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	for r, record := range data.Rows {
		for c, header := range data.Headers {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(entriesSheet, cell, record[header]); err != nil {
				return nil, fmt.Errorf("write cell %s: %w", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
