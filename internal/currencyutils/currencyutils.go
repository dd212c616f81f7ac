// Package currencyutils normalizes the monetary strings found in bills.
package currencyutils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrEmptyAmount is returned for an amount string with no digits left after cleaning.
var ErrEmptyAmount = errors.New("empty amount")

var (
	symbolPattern = regexp.MustCompile(`[€$£¥₣₤₧₹₺₽₩฿₫₲₴₸₼₪\s]`)
	codePattern   = regexp.MustCompile(`(?i)^(usd|eur|gbp|chf|cad|aud)|(usd|eur|gbp|chf|cad|aud)$`)
)

// StandardizeAmount strips currency symbols and codes, whitespace, and the comma and
// apostrophe thousands separators used on US and Swiss bills. "$1,100.00" becomes "1100.00".
// A parenthesized amount is rewritten as a negative one.
func StandardizeAmount(amountStr string) string {
	s := symbolPattern.ReplaceAllString(amountStr, "")
	s = codePattern.ReplaceAllString(s, "")
	s = strings.NewReplacer(",", "", "'", "").Replace(s)

	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	return s
}

// ParseAmount parses a bill amount. It returns ErrEmptyAmount when nothing remains
// after StandardizeAmount.
func ParseAmount(amountStr string) (decimal.Decimal, error) {
	standardized := StandardizeAmount(amountStr)
	if standardized == "" || standardized == "-" {
		return decimal.Zero, ErrEmptyAmount
	}

	amount, err := decimal.NewFromString(standardized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
	}
	return amount, nil
}

// FormatAmount renders an amount with two decimals and no thousands separators.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// FormatAverage renders a display average, or "n/a" when there is none.
func FormatAverage(avg decimal.NullDecimal) string {
	if !avg.Valid {
		return "n/a"
	}
	return FormatAmount(avg.Decimal)
}
