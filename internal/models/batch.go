package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FailureKind classifies why a document produced no record.
type FailureKind string

const (
	FailureNone          FailureKind = ""
	FailureExtraction    FailureKind = "extraction"
	FailureRemoteService FailureKind = "remote_service"
	FailureParse         FailureKind = "parse"
	FailureValidation    FailureKind = "validation"
	FailureTimeout       FailureKind = "timeout"
	FailureCanceled      FailureKind = "canceled"
	FailureInternal      FailureKind = "internal"
)

// DocumentResult is the outcome of processing one document.
type DocumentResult struct {
	Index  int
	Name   string
	Record *BillRecord
	Err    error
	Kind   FailureKind
}

// OK reports whether the document produced a record.
func (r DocumentResult) OK() bool {
	return r.Err == nil && r.Record != nil
}

// DocumentFailure describes a document left out of the table.
type DocumentFailure struct {
	Index   int         `json:"index" yaml:"index"`
	Name    string      `json:"name" yaml:"name"`
	Kind    FailureKind `json:"kind" yaml:"kind"`
	Message string      `json:"message" yaml:"message"`
}

// BatchReport is the result of one extraction batch.
type BatchReport struct {
	BatchID   string
	StartedAt time.Time
	Duration  time.Duration
	Documents int
	Table     ResultTable
	Failures  []DocumentFailure
}

// Average returns the mean amount of the table, if any row has an amount.
func (b *BatchReport) Average() decimal.NullDecimal {
	avg, ok := AverageAmount(b.Table)
	return decimal.NullDecimal{Decimal: avg, Valid: ok}
}

// Succeeded returns the number of documents that produced a row.
func (b *BatchReport) Succeeded() int {
	return len(b.Table)
}
