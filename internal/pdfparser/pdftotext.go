package pdfparser

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"fjacquet/bill-csv/internal/logging"
	"fjacquet/bill-csv/internal/models"
	"fjacquet/bill-csv/internal/parsererror"
)

// PdftotextExtractor shells out to poppler's pdftotext.
type PdftotextExtractor struct {
	logger logging.Logger
	binary string
}

// NewPdftotextExtractor creates a PdftotextExtractor using the pdftotext found on PATH.
func NewPdftotextExtractor(logger logging.Logger) *PdftotextExtractor {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	return &PdftotextExtractor{logger: logger, binary: "pdftotext"}
}

// Available reports whether the pdftotext binary can be found.
func (e *PdftotextExtractor) Available() bool {
	_, err := exec.LookPath(e.binary)
	return err == nil
}

// ExtractText implements PDFExtractor. Form feeds emitted between pages are dropped.
func (e *PdftotextExtractor) ExtractText(ctx context.Context, doc models.Document) (string, error) {
	if !hasPDFHeader(doc.Data) {
		return "", &parsererror.ExtractionError{Document: doc.Name, Reason: "not a readable PDF", Err: errMissingHeader}
	}

	tempFile, err := os.CreateTemp("", "bill-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary PDF file: %w", err)
	}
	defer func() {
		if err := os.Remove(tempFile.Name()); err != nil {
			e.logger.WithError(err).Warn("Failed to remove temporary file",
				logging.Field{Key: logging.FieldFile, Value: tempFile.Name()})
		}
	}()

	if _, err := tempFile.Write(doc.Data); err != nil {
		_ = tempFile.Close()
		return "", fmt.Errorf("failed to write temporary PDF file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close temporary PDF file: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary, "-enc", "UTF-8", tempFile.Name(), "-") // #nosec G204 -- fixed binary, temp path
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &parsererror.ExtractionError{
			Document: doc.Name,
			Reason:   strings.TrimSpace("pdftotext failed " + stderr.String()),
			Err:      err,
		}
	}

	text := strings.ReplaceAll(string(out), "\f", "")
	if strings.TrimSpace(text) == "" {
		return "", &parsererror.ExtractionError{Document: doc.Name, Reason: "no text layer", Err: parsererror.ErrEmptyText}
	}
	return text, nil
}
