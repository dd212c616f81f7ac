// Package parsererror defines the typed errors raised while turning bills into records.
package parsererror

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fjacquet/bill-csv/internal/models"
)

// ErrEmptyText is returned when a PDF has no extractable text layer.
var ErrEmptyText = errors.New("document has no extractable text")

// ErrMissingAPIKey is returned when no key is configured for the model provider.
var ErrMissingAPIKey = errors.New("API key is not configured")

// ExtractionError is raised when a document's text cannot be extracted.
type ExtractionError struct {
	Document string
	Reason   string
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("text extraction failed for %s: %s: %v", e.Document, e.Reason, e.Err)
	}
	return fmt.Sprintf("text extraction failed for %s: %s", e.Document, e.Reason)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// RemoteServiceError is raised when the language model call fails: network,
// authentication, non-success status or deadline.
type RemoteServiceError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *RemoteServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *RemoteServiceError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the call could succeed.
// Client errors other than 408 and 429 are permanent.
func (e *RemoteServiceError) Retryable() bool {
	if e.StatusCode == 0 {
		return !errors.Is(e.Err, context.Canceled) && !errors.Is(e.Err, ErrMissingAPIKey)
	}
	return e.StatusCode == 408 || e.StatusCode == 429 || e.StatusCode >= 500
}

// ParseError represents an error during parsing
type ParseError struct {
	Parser string
	Field  string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: failed to parse %s='%s': %v",
		e.Parser, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError represents a record or file that does not match the expected shape.
type ValidationError struct {
	FilePath string
	Reason   string
	Fields   []string
	Err      error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("validation failed for %s: %s (fields: %s)", e.FilePath, e.Reason, strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("validation failed for %s: %s", e.FilePath, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// InvalidFormatError represents an error where the input file does not conform
// to the expected format.
type InvalidFormatError struct {
	FilePath             string
	ExpectedFormat       string
	ActualContentSnippet string
	Msg                  string
}

func (e *InvalidFormatError) Error() string {
	if e.ActualContentSnippet != "" {
		return fmt.Sprintf("invalid format in file '%s': %s. Expected: %s. Content snippet: '%s'",
			e.FilePath, e.Msg, e.ExpectedFormat, e.ActualContentSnippet)
	}
	return fmt.Sprintf("invalid format in file '%s': %s. Expected: %s",
		e.FilePath, e.Msg, e.ExpectedFormat)
}

// KindOf classifies err for batch reporting. Deadlines win over the wrapping
// error type so that a model call cut short by the per-document timeout is
// reported as a timeout.
func KindOf(err error) models.FailureKind {
	if err == nil {
		return models.FailureNone
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.FailureTimeout
	}
	if errors.Is(err, context.Canceled) {
		return models.FailureCanceled
	}

	var (
		extractionErr *ExtractionError
		remoteErr     *RemoteServiceError
		parseErr      *ParseError
		validationErr *ValidationError
		formatErr     *InvalidFormatError
	)
	switch {
	case errors.As(err, &validationErr):
		return models.FailureValidation
	case errors.As(err, &parseErr):
		return models.FailureParse
	case errors.As(err, &remoteErr):
		return models.FailureRemoteService
	case errors.As(err, &extractionErr), errors.As(err, &formatErr):
		return models.FailureExtraction
	default:
		return models.FailureInternal
	}
}
