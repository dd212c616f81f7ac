// Package common provides the CSV serialization shared by the CLI and the HTTP server.
package common

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"fjacquet/bill-csv/internal/logging"
	"fjacquet/bill-csv/internal/models"

	"github.com/gocarina/gocsv"
)

// DefaultDelimiter separates CSV columns unless configured otherwise.
const DefaultDelimiter rune = ','

// WriteRecordsCSV serializes the table to w: a header line with the schema
// keys, then one line per record in table order. Missing values are empty cells.
// An empty table produces the header line only.
func WriteRecordsCSV(w io.Writer, table models.ResultTable, delimiter rune) error {
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}

	rows := table.Rows()

	csvWriter := csv.NewWriter(w)
	csvWriter.Comma = delimiter

	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(csvWriter)); err != nil {
		return fmt.Errorf("error writing CSV data: %w", err)
	}
	return nil
}

// WriteRecordsCSVFile writes the table to csvFile, creating parent directories as needed.
func WriteRecordsCSVFile(csvFile string, table models.ResultTable, delimiter rune, logger logging.Logger) error {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	logger.Info("Writing bills to CSV file",
		logging.Field{Key: logging.FieldOutputFile, Value: csvFile},
		logging.Field{Key: logging.FieldCount, Value: table.Len()},
		logging.Field{Key: logging.FieldDelimiter, Value: string(delimiter)})

	if dir := filepath.Dir(csvFile); dir != "." {
		if err := os.MkdirAll(dir, models.PermissionDirectory); err != nil {
			return fmt.Errorf("error creating directory: %w", err)
		}
	}

	file, err := os.Create(csvFile) // #nosec G304 -- output path chosen by the user
	if err != nil {
		return fmt.Errorf("error creating CSV file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close file")
		}
	}()

	if err := WriteRecordsCSV(file, table, delimiter); err != nil {
		logger.WithError(err).Error("Failed to write bills to CSV")
		return err
	}
	return nil
}
