package container

import (
	"context"
	"testing"
	"time"

	"fjacquet/bill-csv/internal/batch"
	"fjacquet/bill-csv/internal/config"
	"fjacquet/bill-csv/internal/llm"
	"fjacquet/bill-csv/internal/logging"
	"fjacquet/bill-csv/internal/models"
	"fjacquet/bill-csv/internal/pdfparser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContainer(t *testing.T) {
	gemini := config.Default()
	gemini.AI.Provider = config.ProviderGemini
	gemini.AI.GeminiAPIKey = "key"

	pdftotext := config.Default()
	pdftotext.Parsers.PDF.Engine = config.EnginePdftotext

	badEngine := config.Default()
	badEngine.Parsers.PDF.Engine = "ocr"

	tests := []struct {
		name          string
		config        *config.Config
		expectError   bool
		errorMsg      string
		wantCompleter any
		wantExtractor any
	}{
		{name: "nil config", config: nil, expectError: true, errorMsg: "configuration cannot be nil"},
		{name: "defaults", config: config.Default(), wantCompleter: &llm.OpenAIClient{}, wantExtractor: &pdfparser.NativeExtractor{}},
		{name: "gemini provider", config: gemini, wantCompleter: &llm.GeminiClient{}, wantExtractor: &pdfparser.NativeExtractor{}},
		{name: "pdftotext engine", config: pdftotext, wantCompleter: &llm.OpenAIClient{}, wantExtractor: &pdfparser.PdftotextExtractor{}},
		{name: "unknown engine", config: badEngine, expectError: true, errorMsg: "failed to create PDF extractor: unknown PDF engine: ocr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewContainer(tt.config, WithLogger(logging.NewMockLogger()))
			if tt.expectError {
				require.Error(t, err)
				assert.EqualError(t, err, tt.errorMsg)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, c)

			assert.IsType(t, tt.wantCompleter, c.GetCompleter())
			assert.IsType(t, tt.wantExtractor, c.GetExtractor())
			assert.Same(t, tt.config, c.GetConfig())
			assert.NotNil(t, c.GetRecordExtractor())
			assert.NotNil(t, c.GetParser())
			assert.NotNil(t, c.GetAssembler())
			assert.NotNil(t, c.GetReportGenerator())
			assert.Equal(t, tt.config.Extraction.RequireAllFields, c.GetValidator().RequireAll())
			assert.NoError(t, c.Close())
		})
	}
}

func TestNewContainer_WarnsWithoutAPIKey(t *testing.T) {
	logger := logging.NewMockLogger()
	_, err := NewContainer(config.Default(), WithLogger(logger))
	require.NoError(t, err)

	assert.True(t, logger.HasEntry("WARN", "No API key configured for the model provider"))
}

func TestNewContainer_LogsValidationMode(t *testing.T) {
	cfg := config.Default()
	cfg.Extraction.RequireAllFields = false
	logger := logging.NewMockLogger()

	_, err := NewContainer(cfg, WithLogger(logger))
	require.NoError(t, err)

	requireAll, ok := logger.FieldValue("Container initialized", "require_all_fields")
	require.True(t, ok)
	assert.Equal(t, false, requireAll)
}

func TestNewContainer_BatchOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Batch.Workers = 4
	cfg.Batch.FailFast = true
	cfg.Batch.DocumentTimeoutSeconds = 30

	c, err := NewContainer(cfg, WithLogger(logging.NewMockLogger()))
	require.NoError(t, err)

	assert.Equal(t, batch.Options{Workers: 4, FailFast: true, DocumentTimeout: 30 * time.Second}, c.GetAssembler().Options())
	assert.Equal(t, batch.Options{Workers: 2}, c.NewAssembler(batch.Options{Workers: 2}).Options())
}

func TestNewContainer_Overrides(t *testing.T) {
	extractor := pdfparser.NewMockPDFExtractor("Invoice 7", nil)
	completer := llm.NewMockCompleter("{'Invoice ID': '7', 'DESCRIPTION': 'Desk', 'Issue Date': '1/2/2024', "+
		"'UNIT PRICE': '250', 'AMOUNT': '250', 'Bill For': 'ann', 'From': 'acme', 'Terms': 'net 30'}", nil)
	logger := logging.NewMockLogger()

	c, err := NewContainer(config.Default(), WithLogger(logger), WithExtractor(extractor), WithCompleter(completer))
	require.NoError(t, err)

	assert.Same(t, logger, c.GetLogger())
	assert.False(t, logger.HasEntry("WARN", "No API key configured for the model provider"))

	report, err := c.GetAssembler().Run(context.Background(), []models.Document{{Name: "desk.pdf", Data: []byte("%PDF")}})
	require.NoError(t, err)

	require.Equal(t, 1, report.Table.Len())
	assert.Equal(t, "250.00", report.Table[0].Row().Amount)
	assert.Equal(t, 1, completer.Calls())
}
