package models

import "strings"

// Keys of the bill mapping returned by the model. They double as CSV column headers.
const (
	KeyInvoiceID   = "Invoice ID"
	KeyDescription = "DESCRIPTION"
	KeyIssueDate   = "Issue Date"
	KeyUnitPrice   = "UNIT PRICE"
	KeyAmount      = "AMOUNT"
	KeyBillFor     = "Bill For"
	KeyFrom        = "From"
	KeyTerms       = "Terms"
)

// SchemaKeys lists the bill keys in column order.
var SchemaKeys = []string{
	KeyInvoiceID,
	KeyDescription,
	KeyIssueDate,
	KeyUnitPrice,
	KeyAmount,
	KeyBillFor,
	KeyFrom,
	KeyTerms,
}

// keyAliases maps a normalized spelling to its canonical key.
var keyAliases = map[string]string{
	"invoiceid":   KeyInvoiceID,
	"invoice":     KeyInvoiceID,
	"invoiceno":   KeyInvoiceID,
	"description": KeyDescription,
	"issuedate":   KeyIssueDate,
	"date":        KeyIssueDate,
	"unitprice":   KeyUnitPrice,
	"amount":      KeyAmount,
	"billfor":     KeyBillFor,
	"from":        KeyFrom,
	"terms":       KeyTerms,
}

// CanonicalKey resolves a key as written by the model to its schema key.
// Matching ignores case, spaces, underscores, hyphens and dots, so "invoice_id",
// "InvoiceID" and "Invoice ID" all resolve to KeyInvoiceID.
func CanonicalKey(key string) (string, bool) {
	canonical, ok := keyAliases[normalizeKey(key)]
	return canonical, ok
}

func normalizeKey(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(key) {
		switch r {
		case ' ', '_', '-', '.', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
