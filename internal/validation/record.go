package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"fjacquet/bill-csv/internal/models"
	"fjacquet/bill-csv/internal/parsererror"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "bill-record.json"

// BuildBillSchema returns the JSON schema of a bill mapping keyed by schema keys.
// With requireAll every schema key must be present; values may always be null.
func BuildBillSchema(requireAll bool) map[string]any {
	text := map[string]any{"type": []string{"string", "number", "null"}}
	props := map[string]any{
		models.KeyInvoiceID:   map[string]any{"type": []string{"integer", "string", "null"}},
		models.KeyDescription: text,
		models.KeyIssueDate:   text,
		models.KeyUnitPrice:   text,
		models.KeyAmount:      text,
		models.KeyBillFor:     text,
		models.KeyFrom:        text,
		models.KeyTerms:       text,
	}

	schema := map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": props,
	}
	if requireAll {
		schema["required"] = models.SchemaKeys
	}
	return schema
}

// RecordValidator validates canonicalized bill mappings.
type RecordValidator struct {
	schema     *jsonschema.Schema
	requireAll bool
}

// NewRecordValidator compiles the bill schema.
func NewRecordValidator(requireAll bool) (*RecordValidator, error) {
	b, err := json.Marshal(BuildBillSchema(requireAll))
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &RecordValidator{schema: schema, requireAll: requireAll}, nil
}

// RequireAll reports whether missing keys are rejected.
func (v *RecordValidator) RequireAll() bool {
	return v.requireAll
}

// Validate checks record, a mapping from schema keys to JSON-compatible values.
// It returns a *parsererror.ValidationError naming the offending keys.
func (v *RecordValidator) Validate(document string, record map[string]any) error {
	b, err := json.Marshal(record)
	if err != nil {
		return &parsererror.ValidationError{FilePath: document, Reason: "record is not serializable", Err: err}
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return &parsererror.ValidationError{FilePath: document, Reason: "record is not valid JSON", Err: err}
	}

	err = v.schema.Validate(doc)
	if err == nil {
		return nil
	}

	var schemaErr *jsonschema.ValidationError
	if !errors.As(err, &schemaErr) {
		return &parsererror.ValidationError{FilePath: document, Reason: "schema validation failed", Err: err}
	}

	fields, missing := offendingFields(schemaErr, record)
	reason := "record does not match the bill schema"
	if len(missing) > 0 && len(missing) == len(fields) {
		reason = "missing keys"
	}
	return &parsererror.ValidationError{FilePath: document, Reason: reason, Fields: fields, Err: err}
}

// offendingFields lists the keys named by the leaf causes of err. Required-key
// failures carry no instance location, so missing keys are computed from record.
func offendingFields(err *jsonschema.ValidationError, record map[string]any) (fields, missing []string) {
	seen := make(map[string]bool)
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, c := range e.Causes {
				walk(c)
			}
			return
		}
		if strings.HasSuffix(e.KeywordLocation, "/required") {
			for _, k := range models.SchemaKeys {
				if _, ok := record[k]; !ok && !seen[k] {
					seen[k] = true
					missing = append(missing, k)
				}
			}
			return
		}
		if key := topLevelKey(e.InstanceLocation); key != "" && !seen[key] {
			seen[key] = true
			fields = append(fields, key)
		}
	}
	walk(err)

	sort.Strings(fields)
	return append(missing, fields...), missing
}

func topLevelKey(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return ""
	}
	if i := strings.IndexByte(pointer, '/'); i >= 0 {
		pointer = pointer[:i]
	}
	key := strings.NewReplacer("~1", "/", "~0", "~").Replace(pointer)
	if unescaped, err := url.PathUnescape(key); err == nil {
		return unescaped
	}
	return key
}
