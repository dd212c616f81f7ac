// Package container provides dependency injection for the bill-csv application.
// It centralizes the creation and wiring of all application dependencies,
// making them explicit and testable.
package container

import (
	"fmt"
	"io"

	"fjacquet/bill-csv/internal/batch"
	"fjacquet/bill-csv/internal/billparser"
	"fjacquet/bill-csv/internal/config"
	"fjacquet/bill-csv/internal/llm"
	"fjacquet/bill-csv/internal/logging"
	"fjacquet/bill-csv/internal/pdfparser"
	"fjacquet/bill-csv/internal/report"
	"fjacquet/bill-csv/internal/validation"
)

// Container holds all application dependencies and provides methods to access them.
//
// Container is immutable after creation - all fields are private and can only
// be accessed through getter methods.
type Container struct {
	logger    logging.Logger
	config    *config.Config
	extractor pdfparser.PDFExtractor
	completer llm.Completer
	records   *llm.RecordExtractor
	validator *validation.RecordValidator
	parser    *billparser.Parser
	assembler *batch.Assembler
	reports   *report.Generator
}

// Option overrides a dependency, mainly for tests.
type Option func(*overrides)

type overrides struct {
	logger    logging.Logger
	extractor pdfparser.PDFExtractor
	completer llm.Completer
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(logger logging.Logger) Option {
	return func(o *overrides) { o.logger = logger }
}

// WithExtractor replaces the configured PDF engine.
func WithExtractor(extractor pdfparser.PDFExtractor) Option {
	return func(o *overrides) { o.extractor = extractor }
}

// WithCompleter replaces the configured model provider.
func WithCompleter(completer llm.Completer) Option {
	return func(o *overrides) { o.completer = completer }
}

// NewContainer creates and wires all application dependencies.
func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	var o overrides
	for _, opt := range opts {
		opt(&o)
	}

	// Create logger first as it's needed by other components
	logger := o.logger
	if logger == nil {
		logger = logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)
	}

	extractor := o.extractor
	if extractor == nil {
		var err error
		extractor, err = pdfparser.NewExtractor(cfg.Parsers.PDF.Engine, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create PDF extractor: %w", err)
		}
	}

	completer := o.completer
	if completer == nil {
		completer = newCompleter(cfg.AI, logger)
	}

	records := llm.NewRecordExtractor(completer, llm.ExtractorConfig{
		Provider:          cfg.AI.Provider,
		RequestsPerMinute: cfg.AI.RequestsPerMinute,
		MaxRetries:        cfg.AI.MaxRetries,
	}, logger)

	validator, err := validation.NewRecordValidator(cfg.Extraction.RequireAllFields)
	if err != nil {
		return nil, fmt.Errorf("failed to create record validator: %w", err)
	}
	parser := billparser.NewParser(validator, logger)

	assembler := batch.NewAssembler(extractor, records, parser, batch.Options{
		Workers:         cfg.Batch.Workers,
		FailFast:        cfg.Batch.FailFast,
		DocumentTimeout: cfg.Batch.DocumentTimeout(),
	}, logger)

	if cfg.AI.APIKey() == "" && o.completer == nil {
		logger.Warn("No API key configured for the model provider",
			logging.Field{Key: logging.FieldProvider, Value: cfg.AI.Provider})
	}

	logger.Debug("Container initialized",
		logging.Field{Key: logging.FieldProvider, Value: cfg.AI.Provider},
		logging.Field{Key: logging.FieldModel, Value: cfg.AI.Model},
		logging.Field{Key: "engine", Value: cfg.Parsers.PDF.Engine},
		logging.Field{Key: "require_all_fields", Value: validator.RequireAll()},
		logging.Field{Key: logging.FieldWorkers, Value: cfg.Batch.Workers})

	return &Container{
		logger:    logger,
		config:    cfg,
		extractor: extractor,
		completer: completer,
		records:   records,
		validator: validator,
		parser:    parser,
		assembler: assembler,
		reports:   report.NewGenerator(logger),
	}, nil
}

func newCompleter(ai config.AIConfig, logger logging.Logger) llm.Completer {
	if ai.Provider == config.ProviderGemini {
		return llm.NewGeminiClient(llm.GeminiConfig{
			APIKey:      ai.GeminiAPIKey,
			Model:       ai.Model,
			Temperature: ai.Temperature,
		}, logger)
	}
	return llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:      ai.OpenAIAPIKey,
		BaseURL:     ai.BaseURL,
		Model:       ai.Model,
		Temperature: ai.Temperature,
		Timeout:     ai.Timeout(),
	}, logger)
}

// GetLogger returns the container's logger instance.
func (c *Container) GetLogger() logging.Logger {
	return c.logger
}

// GetConfig returns the container's configuration instance.
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetExtractor returns the PDF text extractor.
func (c *Container) GetExtractor() pdfparser.PDFExtractor {
	return c.extractor
}

// GetCompleter returns the model client.
func (c *Container) GetCompleter() llm.Completer {
	return c.completer
}

// GetRecordExtractor returns the rate-limited record extractor.
func (c *Container) GetRecordExtractor() *llm.RecordExtractor {
	return c.records
}

// GetValidator returns the record validator.
func (c *Container) GetValidator() *validation.RecordValidator {
	return c.validator
}

// GetParser returns the completion parser.
func (c *Container) GetParser() *billparser.Parser {
	return c.parser
}

// GetAssembler returns the batch assembler configured from the batch section.
func (c *Container) GetAssembler() *batch.Assembler {
	return c.assembler
}

// NewAssembler returns an assembler sharing the container's components with
// different batch options, for per-invocation overrides.
func (c *Container) NewAssembler(opts batch.Options) *batch.Assembler {
	return batch.NewAssembler(c.extractor, c.records, c.parser, opts, c.logger)
}

// GetReportGenerator returns the batch report generator.
func (c *Container) GetReportGenerator() *report.Generator {
	return c.reports
}

// Close releases resources held by the model client.
func (c *Container) Close() error {
	if closer, ok := c.completer.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("failed to close model client: %w", err)
		}
	}
	c.logger.Debug("Container closed")
	return nil
}
