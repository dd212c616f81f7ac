package models

import "github.com/shopspring/decimal"

// ResultTable is the ordered list of extracted records, in upload order.
type ResultTable []BillRecord

// Append adds a record at the end of the table.
func (t *ResultTable) Append(record BillRecord) {
	*t = append(*t, record)
}

// Len returns the number of rows.
func (t ResultTable) Len() int {
	return len(t)
}

// Rows renders every record.
func (t ResultTable) Rows() []CSVRow {
	rows := make([]CSVRow, 0, len(t))
	for _, r := range t {
		rows = append(rows, r.Row())
	}
	return rows
}

// AverageAmount returns the arithmetic mean of the present amounts.
// The second result is false when no record has an amount.
func AverageAmount(records []BillRecord) (decimal.Decimal, bool) {
	sum := decimal.Zero
	n := 0
	for _, r := range records {
		if !r.HasAmount() {
			continue
		}
		sum = sum.Add(r.Amount.Decimal)
		n++
	}
	if n == 0 {
		return decimal.Zero, false
	}
	return sum.Div(decimal.NewFromInt(int64(n))), true
}
