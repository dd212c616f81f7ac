package pdfparser

import (
	"context"
	"fmt"
	"sync"

	"fjacquet/bill-csv/internal/config"
	"fjacquet/bill-csv/internal/logging"
	"fjacquet/bill-csv/internal/models"
)

// PDFExtractor turns a PDF document into its page text.
// Implementations return the text of every page in physical order, concatenated
// without separators, or a *parsererror.ExtractionError.
type PDFExtractor interface {
	ExtractText(ctx context.Context, doc models.Document) (string, error)
}

// NewExtractor returns the extractor for the configured engine.
func NewExtractor(engine string, logger logging.Logger) (PDFExtractor, error) {
	switch engine {
	case "", config.EngineNative:
		return NewNativeExtractor(logger), nil
	case config.EnginePdftotext:
		e := NewPdftotextExtractor(logger)
		if !e.Available() && logger != nil {
			logger.Warn("pdftotext not found in PATH, extraction will fail",
				logging.Field{Key: "engine", Value: engine})
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown PDF engine: %s", engine)
	}
}

// MockPDFExtractor implements PDFExtractor for testing purposes.
// Texts and Errs override MockText and MockErr per document name.
type MockPDFExtractor struct {
	MockText string
	MockErr  error
	Texts    map[string]string
	Errs     map[string]error

	mu    sync.Mutex
	calls []string
}

// NewMockPDFExtractor creates a new MockPDFExtractor with the given mock data.
func NewMockPDFExtractor(mockText string, mockErr error) *MockPDFExtractor {
	return &MockPDFExtractor{
		MockText: mockText,
		MockErr:  mockErr,
	}
}

// ExtractText returns the predefined text or error for doc.
func (e *MockPDFExtractor) ExtractText(ctx context.Context, doc models.Document) (string, error) {
	e.mu.Lock()
	e.calls = append(e.calls, doc.Name)
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err, ok := e.Errs[doc.Name]; ok {
		return "", err
	}
	if text, ok := e.Texts[doc.Name]; ok {
		return text, nil
	}
	if e.MockErr != nil {
		return "", e.MockErr
	}
	return e.MockText, nil
}

// Calls returns the document names seen so far, in call order.
func (e *MockPDFExtractor) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}
