// Package export writes the result table in spreadsheet form.
package export

import (
	"fmt"
	"io"

	"fjacquet/bill-csv/internal/models"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the bills.
const SheetName = "Bills"

var columnWidths = []float64{12, 36, 14, 14, 14, 24, 24, 24}

// WriteXLSX writes the table as a single-sheet workbook with the same header
// and row order as the CSV export. Invoice ids and amounts are numeric cells.
func WriteXLSX(w io.Writer, table models.ResultTable) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}

	for i, key := range models.SchemaKeys {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, key); err != nil {
			return fmt.Errorf("xlsx header: %w", err)
		}
	}

	for r, record := range table {
		row := r + 2
		values := record.Row().Values()
		for c, v := range values {
			var value any = v
			switch {
			case c == 0 && record.InvoiceID != nil:
				value = *record.InvoiceID
			case c == 4 && record.Amount.Valid:
				value = record.Amount.Decimal.InexactFloat64()
			case v == "":
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, row)
			if err := f.SetCellValue(SheetName, cell, value); err != nil {
				return fmt.Errorf("xlsx row %d: %w", row, err)
			}
		}
	}

	for i, width := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(SheetName, col, col, width)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
