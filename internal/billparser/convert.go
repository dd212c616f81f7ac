package billparser

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"fjacquet/bill-csv/internal/currencyutils"
	"fjacquet/bill-csv/internal/literal"
	"fjacquet/bill-csv/internal/models"

	"github.com/shopspring/decimal"
)

// Canonicalize renames the keys of m to schema keys. Values under keys that are
// already canonical win over values reached through an alias. Keys outside the
// schema are returned separately, sorted.
func Canonicalize(m *literal.Mapping) (map[string]any, []string) {
	fields := make(map[string]any, len(models.SchemaKeys))
	exact := make(map[string]bool)
	var unknown []string

	for _, key := range m.Keys() {
		canonical, ok := models.CanonicalKey(key)
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		if exact[canonical] {
			continue
		}
		value, _ := m.Get(key)
		fields[canonical] = literal.Plain(value)
		if key == canonical {
			exact[canonical] = true
		}
	}
	sort.Strings(unknown)
	return fields, unknown
}

// fieldError reports a value that has the right JSON type but cannot be converted.
type fieldError struct {
	Field string
	Value any
	Err   error
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("%s: cannot convert %v: %v", e.Field, e.Value, e.Err)
}

func (e *fieldError) Unwrap() error { return e.Err }

// ToBillRecord converts canonical fields to a BillRecord. Absent and None values
// become missing values. Conversion failures are returned as *fieldError values
// joined together.
func ToBillRecord(fields map[string]any) (models.BillRecord, error) {
	var record models.BillRecord
	var errs []error

	id, err := invoiceID(fields[models.KeyInvoiceID])
	if err != nil {
		errs = append(errs, &fieldError{Field: models.KeyInvoiceID, Value: fields[models.KeyInvoiceID], Err: err})
	} else if id != nil {
		record.SetInvoiceID(*id)
	}

	amount, ok, err := amountValue(fields[models.KeyAmount])
	if err != nil {
		errs = append(errs, &fieldError{Field: models.KeyAmount, Value: fields[models.KeyAmount], Err: err})
	} else if ok {
		record.SetAmount(amount)
	}

	record.Description = text(fields[models.KeyDescription])
	record.IssueDate = text(fields[models.KeyIssueDate])
	record.UnitPrice = text(fields[models.KeyUnitPrice])
	record.BillFor = text(fields[models.KeyBillFor])
	record.From = text(fields[models.KeyFrom])
	record.Terms = text(fields[models.KeyTerms])

	return record, errors.Join(errs...)
}

func invoiceID(v any) (*int64, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		d, err := decimal.NewFromString(string(t))
		if err != nil {
			return nil, err
		}
		if !d.IsInteger() {
			return nil, fmt.Errorf("not an integer")
		}
		n := d.IntPart()
		return &n, nil
	case string:
		s := strings.TrimSpace(strings.NewReplacer("#", "", " ", "").Replace(t))
		if s == "" {
			return nil, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer")
		}
		return &n, nil
	default:
		return nil, fmt.Errorf("unexpected %s", literal.TypeName(v))
	}
}

func amountValue(v any) (decimal.Decimal, bool, error) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false, nil
	case json.Number:
		d, err := decimal.NewFromString(string(t))
		return d, err == nil, err
	case string:
		d, err := currencyutils.ParseAmount(t)
		if errors.Is(err, currencyutils.ErrEmptyAmount) {
			return decimal.Zero, false, nil
		}
		return d, err == nil, err
	default:
		return decimal.Zero, false, fmt.Errorf("unexpected %s", literal.TypeName(v))
	}
}

// text renders a scalar as a cell. Lists are joined with "; ".
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "True"
		}
		return "False"
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, text(e))
		}
		return strings.Join(parts, "; ")
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
