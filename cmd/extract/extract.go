// Package extract handles the bill extraction command
package extract

import (
	"errors"
	"fmt"

	"fjacquet/bill-csv/cmd/common"
	"fjacquet/bill-csv/cmd/root"
	"fjacquet/bill-csv/internal/batch"
	"fjacquet/bill-csv/internal/config"
	"fjacquet/bill-csv/internal/container"
	"fjacquet/bill-csv/internal/logging"

	"github.com/spf13/cobra"
)

var (
	format    string
	report    string
	workers   int
	failFast  bool
	delimiter string
)

// Cmd represents the extract command
var Cmd = &cobra.Command{
	Use:   "extract [files or dirs...]",
	Short: "Extract bill fields from PDFs into CSV",
	Long: `Extract the invoice fields of every PDF bill into one CSV (or XLSX) table.

Inputs are PDF files or directories; directories are scanned for *.pdf files.
Documents that fail are skipped and listed in the summary and the optional report.

Example:
  bill-csv extract -i bills/ -o CSV_Bills.csv --report failures.json`,
	RunE: extractFunc,
}

func init() {
	addFlags(Cmd)
}

func addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&format, "format", "", "Output format (csv, xlsx); defaults to the output file extension")
	cmd.Flags().StringVar(&report, "report", "", "Write a JSON or YAML batch report to this file")
	cmd.Flags().IntVar(&workers, "workers", 0, "Number of documents processed concurrently (overrides batch.workers)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Abort the batch on the first failed document")
	cmd.Flags().StringVar(&delimiter, "delimiter", "", "CSV delimiter (overrides csv.delimiter)")
}

func extractFunc(cmd *cobra.Command, args []string) error {
	appContainer := root.GetContainer()
	if appContainer == nil {
		return errors.New("container not initialized")
	}
	return run(cmd, args, appContainer)
}

func run(cmd *cobra.Command, args []string, c *container.Container) error {
	opts, err := optionsFrom(cmd, args, c.GetConfig())
	if err != nil {
		return err
	}

	log := c.GetLogger()
	log.Info("Extracting bills",
		logging.Field{Key: "inputs", Value: opts.Inputs},
		logging.Field{Key: logging.FieldOutputFile, Value: opts.Output})

	if _, err := common.Extract(cmd.Context(), c, opts, cmd.OutOrStdout()); err != nil {
		return err
	}
	log.Info("Extraction completed")
	return nil
}

// optionsFrom merges the configuration with the flags set on cmd.
func optionsFrom(cmd *cobra.Command, args []string, cfg *config.Config) (common.ExtractOptions, error) {
	inputs := append(append([]string(nil), root.SharedFlags.Input...), args...)

	output := root.SharedFlags.Output
	if output == "" {
		output = cfg.CSV.FileName
	}

	opts := common.ExtractOptions{
		Inputs:    inputs,
		Output:    output,
		Format:    format,
		Report:    report,
		Validate:  root.SharedFlags.Validate,
		Delimiter: cfg.CSV.DelimiterRune(),
		Batch: batch.Options{
			Workers:         cfg.Batch.Workers,
			FailFast:        cfg.Batch.FailFast,
			DocumentTimeout: cfg.Batch.DocumentTimeout(),
		},
	}

	if cmd.Flags().Changed("workers") {
		if workers < 1 {
			return opts, fmt.Errorf("--workers must be at least 1, got: %d", workers)
		}
		opts.Batch.Workers = workers
	}
	if cmd.Flags().Changed("fail-fast") {
		opts.Batch.FailFast = failFast
	}
	if cmd.Flags().Changed("delimiter") {
		r := []rune(delimiter)
		if len(r) != 1 {
			return opts, fmt.Errorf("--delimiter must be a single character, got: %q", delimiter)
		}
		opts.Delimiter = r[0]
	}
	return opts, nil
}
