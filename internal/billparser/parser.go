package billparser

import (
	"errors"
	"unicode/utf8"

	"fjacquet/bill-csv/internal/literal"
	"fjacquet/bill-csv/internal/logging"
	"fjacquet/bill-csv/internal/models"
	"fjacquet/bill-csv/internal/parsererror"
	"fjacquet/bill-csv/internal/validation"
)

const snippetLen = 120

// Parser converts raw completions into bill records.
type Parser struct {
	validator *validation.RecordValidator
	logger    logging.Logger
}

// NewParser creates a Parser. A nil validator skips schema validation.
func NewParser(validator *validation.RecordValidator, logger logging.Logger) *Parser {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	return &Parser{validator: validator, logger: logger}
}

// Parse turns the completion returned for document into a BillRecord.
// Unreadable text yields *parsererror.ParseError; a mapping with missing keys
// (when required) or unconvertible values yields *parsererror.ValidationError.
func (p *Parser) Parse(document, response string) (models.BillRecord, error) {
	body := StripCodeFence(CleanResponse(response))

	mapping, err := literal.ParseMapping(body)
	if err != nil {
		return models.BillRecord{}, &parsererror.ParseError{
			Parser: "literal",
			Field:  "response",
			Value:  snippet(body),
			Err:    err,
		}
	}

	p.logger.Debug("Parsed model reply",
		logging.Field{Key: logging.FieldDocument, Value: document},
		logging.Field{Key: logging.FieldCount, Value: mapping.Len()})

	fields, unknown := Canonicalize(mapping)
	if len(unknown) > 0 {
		p.logger.Debug("Ignoring keys outside the bill schema",
			logging.Field{Key: logging.FieldDocument, Value: document},
			logging.Field{Key: "keys", Value: unknown})
	}

	if p.validator != nil {
		if err := p.validator.Validate(document, fields); err != nil {
			return models.BillRecord{}, err
		}
	}

	record, err := ToBillRecord(fields)
	if err != nil {
		return models.BillRecord{}, &parsererror.ValidationError{
			FilePath: document,
			Reason:   "values cannot be converted",
			Fields:   failedFields(err),
			Err:      err,
		}
	}
	return record, nil
}

func failedFields(err error) []string {
	var fields []string
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			var fe *fieldError
			if errors.As(e, &fe) {
				fields = append(fields, fe.Field)
			}
		}
	}
	return fields
}

func snippet(s string) string {
	if len(s) <= snippetLen {
		return s
	}
	cut := snippetLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
