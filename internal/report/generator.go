// Package report renders a batch outcome as a JSON or YAML document.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fjacquet/bill-csv/internal/currencyutils"
	"fjacquet/bill-csv/internal/logging"
	"fjacquet/bill-csv/internal/models"

	"gopkg.in/yaml.v3"
)

// Supported report formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// BatchView is the serialized form of a batch report.
type BatchView struct {
	BatchID    string                   `json:"batch_id" yaml:"batch_id"`
	StartedAt  time.Time                `json:"started_at" yaml:"started_at"`
	DurationMS int64                    `json:"duration_ms" yaml:"duration_ms"`
	Documents  int                      `json:"documents" yaml:"documents"`
	Succeeded  int                      `json:"succeeded" yaml:"succeeded"`
	Average    string                   `json:"average_amount" yaml:"average_amount"`
	Rows       []models.CSVRow          `json:"rows" yaml:"rows"`
	Failures   []models.DocumentFailure `json:"failures" yaml:"failures"`
}

// NewBatchView flattens a report for serialization.
// Rows and failures are never nil so empty batches encode as empty lists.
func NewBatchView(r *models.BatchReport) BatchView {
	failures := r.Failures
	if failures == nil {
		failures = []models.DocumentFailure{}
	}
	return BatchView{
		BatchID:    r.BatchID,
		StartedAt:  r.StartedAt.UTC(),
		DurationMS: r.Duration.Milliseconds(),
		Documents:  r.Documents,
		Succeeded:  r.Succeeded(),
		Average:    currencyutils.FormatAverage(r.Average()),
		Rows:       r.Table.Rows(),
		Failures:   failures,
	}
}

// Generator renders batch reports.
type Generator struct {
	logger logging.Logger
}

// NewGenerator creates a report generator.
func NewGenerator(logger logging.Logger) *Generator {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	return &Generator{logger: logger}
}

// Generate renders the report as json or yaml (yml is accepted as an alias).
func (g *Generator) Generate(r *models.BatchReport, format string) ([]byte, error) {
	view := NewBatchView(r)

	switch strings.ToLower(format) {
	case FormatJSON:
		out, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			g.logger.WithError(err).Error("Failed to marshal JSON report")
			return nil, fmt.Errorf("failed to marshal JSON report: %w", err)
		}
		return append(out, '\n'), nil
	case FormatYAML, "yml":
		out, err := yaml.Marshal(view)
		if err != nil {
			g.logger.WithError(err).Error("Failed to marshal YAML report")
			return nil, fmt.Errorf("failed to marshal YAML report: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

// FormatFromPath picks the report format from a file extension, defaulting to json.
func FormatFromPath(path string) string {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return FormatYAML
	}
	return FormatJSON
}
