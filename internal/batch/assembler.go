// Package batch turns an ordered list of bills into a result table.
//
// Each document goes through text extraction, the model call and response
// parsing. Failures are isolated per document unless fail-fast is enabled, and
// the table always follows upload order whatever the number of workers.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fjacquet/bill-csv/internal/logging"
	"fjacquet/bill-csv/internal/models"
	"fjacquet/bill-csv/internal/parsererror"
	"fjacquet/bill-csv/internal/pdfparser"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RecordSource produces the raw model completion for a page text.
type RecordSource interface {
	Extract(ctx context.Context, pageText string) (string, error)
}

// ResponseParser converts a completion into a record.
type ResponseParser interface {
	Parse(document, response string) (models.BillRecord, error)
}

// Options controls how a batch is processed.
type Options struct {
	Workers         int
	FailFast        bool
	DocumentTimeout time.Duration
}

// Assembler runs documents through the extraction pipeline.
type Assembler struct {
	extractor pdfparser.PDFExtractor
	records   RecordSource
	parser    ResponseParser
	opts      Options
	logger    logging.Logger
}

// NewAssembler creates an Assembler. Workers below one are treated as one.
func NewAssembler(extractor pdfparser.PDFExtractor, records RecordSource, parser ResponseParser, opts Options, logger logging.Logger) *Assembler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	return &Assembler{
		extractor: extractor,
		records:   records,
		parser:    parser,
		opts:      opts,
		logger:    logger,
	}
}

// Options returns the options the assembler runs with.
func (a *Assembler) Options() Options {
	return a.opts
}

// Run processes docs and returns the batch report.
//
// With fail-fast disabled, failed documents are listed in the report and the
// table holds the others in upload order. With fail-fast enabled, the first
// failure aborts the batch and no report is returned. Cancellation of ctx
// stops the remaining work and is returned as an error.
func (a *Assembler) Run(ctx context.Context, docs []models.Document) (*models.BatchReport, error) {
	report := &models.BatchReport{
		BatchID:   uuid.New().String(),
		StartedAt: time.Now(),
		Documents: len(docs),
		Table:     models.ResultTable{},
	}
	log := a.logger.WithFields(logging.Field{Key: logging.FieldBatchID, Value: report.BatchID})
	log.Info("Starting batch",
		logging.Field{Key: logging.FieldCount, Value: len(docs)},
		logging.Field{Key: logging.FieldWorkers, Value: a.opts.Workers})

	var (
		results []models.DocumentResult
		err     error
	)
	if a.opts.Workers == 1 || len(docs) < 2 {
		results, err = a.runSequential(ctx, docs, log)
	} else {
		results, err = a.runParallel(ctx, docs, log)
	}
	if err != nil {
		log.WithError(err).Error("Batch aborted")
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		log.WithError(ctxErr).Warn("Batch canceled")
		return nil, fmt.Errorf("batch canceled: %w", ctxErr)
	}

	for _, res := range results {
		if res.OK() {
			report.Table.Append(*res.Record)
			continue
		}
		report.Failures = append(report.Failures, models.DocumentFailure{
			Index:   res.Index,
			Name:    res.Name,
			Kind:    res.Kind,
			Message: res.Err.Error(),
		})
	}
	report.Duration = time.Since(report.StartedAt)

	log.Info("Batch finished",
		logging.Field{Key: "succeeded", Value: report.Succeeded()},
		logging.Field{Key: "failed", Value: len(report.Failures)},
		logging.Field{Key: logging.FieldDuration, Value: report.Duration.Milliseconds()})
	return report, nil
}

func (a *Assembler) runSequential(ctx context.Context, docs []models.Document, log logging.Logger) ([]models.DocumentResult, error) {
	results := make([]models.DocumentResult, len(docs))
	for i, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		results[i] = a.ProcessDocument(ctx, i, doc)
		if !results[i].OK() {
			a.logFailure(log, results[i])
			if a.opts.FailFast {
				return nil, abortError(results[i])
			}
		}
	}
	return results, nil
}

func (a *Assembler) runParallel(ctx context.Context, docs []models.Document, log logging.Logger) ([]models.DocumentResult, error) {
	results := make([]models.DocumentResult, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)

	for i, doc := range docs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res := a.ProcessDocument(gctx, i, doc)
			results[i] = res
			if res.OK() {
				return nil
			}
			if a.opts.FailFast {
				// Documents canceled because of an earlier failure are not reported.
				if res.Kind == models.FailureCanceled && ctx.Err() == nil {
					return nil
				}
				a.logFailure(log, res)
				return abortError(res)
			}
			a.logFailure(log, res)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ProcessDocument runs one document through extraction, the model call and
// parsing. It never panics on bad input; failures are described in the result.
func (a *Assembler) ProcessDocument(ctx context.Context, index int, doc models.Document) models.DocumentResult {
	result := models.DocumentResult{Index: index, Name: doc.Name}
	start := time.Now()

	dctx := ctx
	if a.opts.DocumentTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, a.opts.DocumentTimeout)
		defer cancel()
	}

	record, err := a.process(dctx, doc)
	if err != nil {
		result.Err = err
		result.Kind = parsererror.KindOf(err)
		if errors.Is(dctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			result.Kind = models.FailureTimeout
		}
		return result
	}

	result.Record = &record
	a.logger.Debug("Processed document",
		logging.Field{Key: logging.FieldIndex, Value: index},
		logging.Field{Key: logging.FieldDocument, Value: doc.Name},
		logging.Field{Key: logging.FieldDuration, Value: time.Since(start).Milliseconds()})
	return result
}

func (a *Assembler) process(ctx context.Context, doc models.Document) (models.BillRecord, error) {
	text, err := a.extractor.ExtractText(ctx, doc)
	if err != nil {
		return models.BillRecord{}, err
	}

	response, err := a.records.Extract(ctx, text)
	if err != nil {
		return models.BillRecord{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.BillRecord{}, err
	}

	return a.parser.Parse(doc.Name, response)
}

func (a *Assembler) logFailure(log logging.Logger, res models.DocumentResult) {
	log.WithError(res.Err).Warn("Document skipped",
		logging.Field{Key: logging.FieldIndex, Value: res.Index},
		logging.Field{Key: logging.FieldDocument, Value: res.Name},
		logging.Field{Key: logging.FieldKind, Value: string(res.Kind)})
}

// AbortError is returned by Run when fail-fast stops a batch.
type AbortError struct {
	Index    int
	Document string
	Kind     models.FailureKind
	Err      error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("batch aborted at document %d (%s): %v", e.Index, e.Document, e.Err)
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

func abortError(res models.DocumentResult) error {
	return &AbortError{Index: res.Index, Document: res.Name, Kind: res.Kind, Err: res.Err}
}
