package models

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// BillRecord holds the fields extracted from one bill.
// A nil InvoiceID, an invalid Amount or an empty string marks a missing value.
type BillRecord struct {
	InvoiceID   *int64              `json:"invoice_id"`
	Description string              `json:"description"`
	IssueDate   string              `json:"issue_date"`
	UnitPrice   string              `json:"unit_price"`
	Amount      decimal.NullDecimal `json:"amount"`
	BillFor     string              `json:"bill_for"`
	From        string              `json:"from"`
	Terms       string              `json:"terms"`
}

// CSVRow is the textual form of a BillRecord, one cell per schema key.
type CSVRow struct {
	InvoiceID   string `csv:"Invoice ID" json:"Invoice ID" yaml:"Invoice ID"`
	Description string `csv:"DESCRIPTION" json:"DESCRIPTION" yaml:"DESCRIPTION"`
	IssueDate   string `csv:"Issue Date" json:"Issue Date" yaml:"Issue Date"`
	UnitPrice   string `csv:"UNIT PRICE" json:"UNIT PRICE" yaml:"UNIT PRICE"`
	Amount      string `csv:"AMOUNT" json:"AMOUNT" yaml:"AMOUNT"`
	BillFor     string `csv:"Bill For" json:"Bill For" yaml:"Bill For"`
	From        string `csv:"From" json:"From" yaml:"From"`
	Terms       string `csv:"Terms" json:"Terms" yaml:"Terms"`
}

// SetInvoiceID stores id as the invoice number.
func (r *BillRecord) SetInvoiceID(id int64) {
	r.InvoiceID = &id
}

// SetAmount stores a present amount.
func (r *BillRecord) SetAmount(amount decimal.Decimal) {
	r.Amount = decimal.NullDecimal{Decimal: amount, Valid: true}
}

// HasAmount reports whether the record carries an amount.
func (r BillRecord) HasAmount() bool {
	return r.Amount.Valid
}

// Row renders the record for CSV and report output.
// Missing values become empty cells; amounts keep every digit, with at least two decimals.
func (r BillRecord) Row() CSVRow {
	row := CSVRow{
		Description: r.Description,
		IssueDate:   r.IssueDate,
		UnitPrice:   r.UnitPrice,
		BillFor:     r.BillFor,
		From:        r.From,
		Terms:       r.Terms,
	}
	if r.InvoiceID != nil {
		row.InvoiceID = strconv.FormatInt(*r.InvoiceID, 10)
	}
	if r.HasAmount() {
		row.Amount = formatAmount(r.Amount.Decimal)
	}
	return row
}

// formatAmount writes at least two decimals and never rounds away digits
// the model returned.
func formatAmount(d decimal.Decimal) string {
	places := int32(2)
	if exp := -d.Exponent(); exp > places {
		places = exp
	}
	return d.StringFixed(places)
}

// Values returns the row cells in SchemaKeys order.
func (c CSVRow) Values() []string {
	return []string{c.InvoiceID, c.Description, c.IssueDate, c.UnitPrice, c.Amount, c.BillFor, c.From, c.Terms}
}
