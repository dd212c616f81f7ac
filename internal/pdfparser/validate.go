package pdfparser

import (
	"bytes"
	"errors"
	"unicode"

	"fjacquet/bill-csv/internal/models"
	"fjacquet/bill-csv/internal/parsererror"
)

var errMissingHeader = errors.New("missing %PDF- header")

// FormatInfo describes a document that passed ValidateFormat.
type FormatInfo struct {
	Name  string `json:"name" yaml:"name"`
	Pages int    `json:"pages" yaml:"pages"`
	Bytes int    `json:"bytes" yaml:"bytes"`
}

// ValidateFormat checks that doc is a readable PDF and returns its page count.
// Documents without a PDF header yield *parsererror.InvalidFormatError; documents
// pdfcpu cannot read yield *parsererror.ExtractionError.
func ValidateFormat(doc models.Document) (FormatInfo, error) {
	if !hasPDFHeader(doc.Data) {
		return FormatInfo{}, &parsererror.InvalidFormatError{
			FilePath:             doc.Name,
			ExpectedFormat:       "PDF",
			ActualContentSnippet: snippet(doc.Data, 16),
			Msg:                  "file does not start with a PDF header",
		}
	}

	pages, err := NewNativeExtractor(nil).PageCount(doc)
	if err != nil {
		return FormatInfo{}, err
	}
	return FormatInfo{Name: doc.Name, Pages: pages, Bytes: doc.Size()}, nil
}

func hasPDFHeader(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, []byte("%PDF-"))
}

func snippet(data []byte, n int) string {
	if len(data) > n {
		data = data[:n]
	}
	return string(bytes.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return '.'
	}, data))
}
