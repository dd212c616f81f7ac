package pdfparser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"fjacquet/bill-csv/internal/logging"
	"fjacquet/bill-csv/internal/models"
	"fjacquet/bill-csv/internal/parsererror"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// NativeExtractor extracts text in-process. pdfcpu validates the document and
// counts its pages; ledongthuc/pdf decodes each page's text.
type NativeExtractor struct {
	logger logging.Logger
	conf   *model.Configuration
}

// NewNativeExtractor creates a NativeExtractor.
func NewNativeExtractor(logger logging.Logger) *NativeExtractor {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &NativeExtractor{logger: logger, conf: conf}
}

// PageCount validates doc with pdfcpu and returns its number of pages.
func (e *NativeExtractor) PageCount(doc models.Document) (int, error) {
	n, err := api.PageCount(bytes.NewReader(doc.Data), e.conf)
	if err != nil {
		return 0, &parsererror.ExtractionError{Document: doc.Name, Reason: "not a readable PDF", Err: err}
	}
	return n, nil
}

// ExtractText implements PDFExtractor.
func (e *NativeExtractor) ExtractText(ctx context.Context, doc models.Document) (string, error) {
	start := time.Now()

	pages, err := e.PageCount(doc)
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return "", &parsererror.ExtractionError{Document: doc.Name, Reason: "cannot open PDF", Err: err}
	}
	if reader.NumPage() != pages {
		e.logger.Debug("Page count mismatch between readers",
			logging.Field{Key: logging.FieldDocument, Value: doc.Name},
			logging.Field{Key: "pdfcpu_pages", Value: pages},
			logging.Field{Key: "reader_pages", Value: reader.NumPage()})
	}

	var text strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", &parsererror.ExtractionError{Document: doc.Name, Reason: fmt.Sprintf("page %d", i), Err: err}
		}
		text.WriteString(pageText)
	}

	result := text.String()
	if strings.TrimSpace(result) == "" {
		return "", &parsererror.ExtractionError{Document: doc.Name, Reason: "no text layer", Err: parsererror.ErrEmptyText}
	}

	e.logger.Debug("Extracted PDF text",
		logging.Field{Key: logging.FieldDocument, Value: doc.Name},
		logging.Field{Key: logging.FieldPages, Value: pages},
		logging.Field{Key: logging.FieldTextLength, Value: len(result)},
		logging.Field{Key: logging.FieldDuration, Value: time.Since(start).Milliseconds()})
	return result, nil
}
