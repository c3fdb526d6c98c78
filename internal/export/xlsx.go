package export

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXWriter implements SheetWriter by saving the report as an Excel workbook.
type XLSXWriter struct {
	path string
}

// NewXLSXWriter creates an XLSXWriter that overwrites path on every write.
func NewXLSXWriter(path string) *XLSXWriter {
	return &XLSXWriter{path: path}
}

// Write builds a workbook with a single VALUATIONS sheet and saves it.
func (w *XLSXWriter) Write(_ context.Context, rows []ValuationRow) error {
	f, err := buildWorkbook(rows)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("saving %s: %w", w.path, err)
	}
	return nil
}

func buildWorkbook(rows []ValuationRow) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", valuationsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	for i, values := range buildValuations(rows) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(valuationsSheet, cell, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	if err := formatWorkbook(f, len(rows)); err != nil {
		f.Close()
		return nil, fmt.Errorf("formatting workbook: %w", err)
	}
	return f, nil
}

func formatWorkbook(f *excelize.File, dataRows int) error {
	lastCol, err := excelize.ColumnNumberToName(len(reportHeader))
	if err != nil {
		return err
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(valuationsSheet, "A1", lastCol+"1", header); err != nil {
		return err
	}

	if dataRows > 0 {
		numFmt := "#,##0"
		number, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
		if err != nil {
			return err
		}
		for _, col := range numberCols {
			name, err := excelize.ColumnNumberToName(int(col) + 1)
			if err != nil {
				return err
			}
			if err := f.SetCellStyle(valuationsSheet, fmt.Sprintf("%s2", name), fmt.Sprintf("%s%d", name, dataRows+1), number); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(valuationsSheet, "A", "A", 30); err != nil {
		return err
	}
	return f.SetPanes(valuationsSheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      1,
		TopLeftCell: "B2",
		ActivePane:  "bottomRight",
	})
}
