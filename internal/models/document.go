// Package models defines the core data structures of bill-csv: the uploaded
// documents, the fixed bill schema and the per-batch results.
package models

import "path/filepath"

// Document is one uploaded PDF. The payload is consumed once by the text extractor.
type Document struct {
	Name string
	Data []byte
}

// NewDocument builds a Document named after the base name of path.
func NewDocument(path string, data []byte) Document {
	return Document{Name: filepath.Base(path), Data: data}
}

// Size returns the payload length in bytes.
func (d Document) Size() int {
	return len(d.Data)
}
