package service

import (
	"context"
	"fmt"
	"time"

	"github.com/AnTengye/keydates/model"
	"github.com/AnTengye/keydates/pkg/logger"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding exported date events.
const SheetName = "Key Dates"

var exportHeaders = []string{
	"Type",
	"Date Text",
	"Date (ISO)",
	"Summary",
	"Page",
	"Section",
	"Confidence",
	"Source File",
}

// ExportService renders extraction results as XLSX workbooks.
type ExportService struct{}

func NewExportService() *ExportService {
	return &ExportService{}
}

// Workbook returns the XLSX bytes for result. Null fields become empty cells.
func (s *ExportService) Workbook(ctx context.Context, result *model.ExtractionResult) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(SheetName, 1, 1, style)
	}

	for i, item := range result.Items {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetName, cell, v)
		}

		write(1, string(item.Type))
		write(2, item.DateText)
		if item.DateISO != nil {
			write(3, *item.DateISO)
		}
		write(4, item.Summary)
		if item.Page != nil {
			write(5, *item.Page)
		}
		if item.Section != nil {
			write(6, *item.Section)
		}
		if item.Confidence != nil {
			write(7, *item.Confidence)
		}
		write(8, item.SourceFile)
	}

	_ = f.SetColWidth(SheetName, "A", "A", 12) // type
	_ = f.SetColWidth(SheetName, "B", "C", 20) // dates
	_ = f.SetColWidth(SheetName, "D", "D", 48) // summary
	_ = f.SetColWidth(SheetName, "E", "E", 8)
	_ = f.SetColWidth(SheetName, "F", "F", 24)
	_ = f.SetColWidth(SheetName, "G", "G", 12)
	_ = f.SetColWidth(SheetName, "H", "H", 32)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	logger.Info(ctx, "export.xlsx.ok",
		"rows", len(result.Items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
