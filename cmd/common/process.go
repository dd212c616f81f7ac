// Package common contains shared functionality for command handlers
package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fjacquet/bill-csv/internal/batch"
	"fjacquet/bill-csv/internal/common"
	"fjacquet/bill-csv/internal/container"
	"fjacquet/bill-csv/internal/currencyutils"
	"fjacquet/bill-csv/internal/export"
	"fjacquet/bill-csv/internal/fileutils"
	"fjacquet/bill-csv/internal/logging"
	"fjacquet/bill-csv/internal/models"
	"fjacquet/bill-csv/internal/pdfparser"
	"fjacquet/bill-csv/internal/report"
	"fjacquet/bill-csv/internal/validation"
)

// ErrNoInput is returned when no input path was given.
var ErrNoInput = errors.New("no input files or directories given")

// ExtractOptions describes one run of the extract command.
type ExtractOptions struct {
	Inputs    []string
	Output    string
	Format    string
	Report    string
	Validate  bool
	Batch     batch.Options
	Delimiter rune
}

// OutputFormat resolves the table format from the flag, then the output extension.
func OutputFormat(flag, output string) (string, error) {
	format := strings.ToLower(flag)
	if format == "" {
		format = validation.FormatCSV
		if strings.EqualFold(filepath.Ext(output), ".xlsx") {
			format = validation.FormatXLSX
		}
	}
	if err := validation.IsValidOutputFormat(format); err != nil {
		return "", err
	}
	return format, nil
}

// LoadInputs expands the input paths and reads the PDFs they name.
func LoadInputs(inputs []string) ([]models.Document, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInput
	}
	for _, in := range inputs {
		if err := validation.IsValidPath(in); err != nil {
			return nil, err
		}
	}
	files, err := fileutils.CollectPDFs(inputs)
	if err != nil {
		return nil, err
	}
	return fileutils.LoadDocuments(files)
}

// ValidateDocuments checks that every document is a readable PDF.
func ValidateDocuments(docs []models.Document) ([]pdfparser.FormatInfo, error) {
	infos := make([]pdfparser.FormatInfo, 0, len(docs))
	for _, doc := range docs {
		info, err := pdfparser.ValidateFormat(doc)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Extract runs a batch over the inputs, writes the table and the optional
// failure report, and prints a summary to out.
func Extract(ctx context.Context, c *container.Container, opts ExtractOptions, out io.Writer) (*models.BatchReport, error) {
	log := c.GetLogger()

	format, err := OutputFormat(opts.Format, opts.Output)
	if err != nil {
		return nil, err
	}
	if opts.Report != "" {
		if err := validation.IsValidReportFormat(report.FormatFromPath(opts.Report)); err != nil {
			return nil, err
		}
	}

	docs, err := LoadInputs(opts.Inputs)
	if err != nil {
		return nil, err
	}

	if opts.Validate {
		log.Info("Validating input documents...", logging.Field{Key: logging.FieldCount, Value: len(docs)})
		if _, err := ValidateDocuments(docs); err != nil {
			return nil, fmt.Errorf("input validation failed: %w", err)
		}
	}

	assembler := c.NewAssembler(opts.Batch)
	log.Info("Processing documents",
		logging.Field{Key: logging.FieldCount, Value: len(docs)},
		logging.Field{Key: logging.FieldWorkers, Value: assembler.Options().Workers},
		logging.Field{Key: "fail_fast", Value: assembler.Options().FailFast})
	batchReport, err := assembler.Run(ctx, docs)
	if err != nil {
		return nil, err
	}

	if err := writeTable(opts.Output, format, batchReport.Table, opts.Delimiter, log); err != nil {
		return nil, err
	}

	if opts.Report != "" {
		body, err := c.GetReportGenerator().Generate(batchReport, report.FormatFromPath(opts.Report))
		if err != nil {
			return nil, err
		}
		if err := fileutils.WriteFile(opts.Report, body, models.PermissionReportFile); err != nil {
			return nil, fmt.Errorf("failed to write report: %w", err)
		}
	}

	PrintSummary(out, batchReport, opts.Output)
	return batchReport, nil
}

func writeTable(path, format string, table models.ResultTable, delimiter rune, log logging.Logger) error {
	if format == validation.FormatCSV {
		return common.WriteRecordsCSVFile(path, table, delimiter, log)
	}

	if err := fileutils.EnsureDirectoryExists(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.Create(path) // #nosec G304 -- output path chosen by the user
	if err != nil {
		return fmt.Errorf("error creating XLSX file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.WithError(err).Warn("Failed to close file")
		}
	}()
	log.Info("Writing bills to XLSX file",
		logging.Field{Key: logging.FieldOutputFile, Value: path},
		logging.Field{Key: logging.FieldCount, Value: table.Len()})
	return export.WriteXLSX(f, table)
}

// PrintSummary writes the human-readable batch outcome.
func PrintSummary(out io.Writer, r *models.BatchReport, output string) {
	_, _ = fmt.Fprintf(out, "Extracted %d of %d bills into %s\n", r.Succeeded(), r.Documents, output)
	_, _ = fmt.Fprintf(out, "Average AMOUNT: %s\n", currencyutils.FormatAverage(r.Average()))
	for _, f := range r.Failures {
		_, _ = fmt.Fprintf(out, "  skipped %s (%s): %s\n", f.Name, f.Kind, f.Message)
	}
}
