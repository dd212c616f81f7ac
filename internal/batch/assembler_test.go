package batch

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"fjacquet/bill-csv/internal/billparser"
	"fjacquet/bill-csv/internal/common"
	"fjacquet/bill-csv/internal/llm"
	"fjacquet/bill-csv/internal/logging"
	"fjacquet/bill-csv/internal/models"
	"fjacquet/bill-csv/internal/parsererror"
	"fjacquet/bill-csv/internal/pdfparser"
	"fjacquet/bill-csv/internal/validation"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cryptoRandIntn returns a random int in [0, n) using crypto/rand
func cryptoRandIntn(n int) int {
	if n <= 0 {
		return 0
	}
	result, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(result.Int64())
}

func billResponse(id int, amount string) string {
	return fmt.Sprintf("{'Invoice ID': '%d', 'DESCRIPTION': 'Item %d', 'Issue Date': '5/4/2023', "+
		"'UNIT PRICE': '$%s', 'AMOUNT': '$%s', 'Bill For': 'james', 'From': 'excel company', 'Terms': 'net 30'}",
		id, id, amount, amount)
}

// fixture wires mock text extraction and canned completions to the real parser.
type fixture struct {
	docs      []models.Document
	extractor *pdfparser.MockPDFExtractor
	completer *llm.MockCompleter
	responses map[string]string
	logger    *logging.MockLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		extractor: &pdfparser.MockPDFExtractor{Texts: map[string]string{}, Errs: map[string]error{}},
		responses: map[string]string{},
		logger:    logging.NewMockLogger(),
	}
	f.completer = &llm.MockCompleter{Responses: f.responses}
	return f
}

// add registers a document whose page text is answered with response.
func (f *fixture) add(name, response string) {
	text := "page text of " + name
	f.docs = append(f.docs, models.Document{Name: name, Data: []byte("%PDF-1.4")})
	f.extractor.Texts[name] = text
	f.responses[llm.BuildPrompt(text)] = response
}

func (f *fixture) assembler(t *testing.T, opts Options) *Assembler {
	t.Helper()
	validator, err := validation.NewRecordValidator(true)
	require.NoError(t, err)
	records := llm.NewRecordExtractor(f.completer, llm.ExtractorConfig{Provider: llm.ProviderOpenAI}, f.logger)
	return NewAssembler(f.extractor, records, billparser.NewParser(validator, f.logger), opts, f.logger)
}

func TestAssembler_SingleBill(t *testing.T) {
	f := newFixture(t)
	f.add("bill.pdf", "{'Invoice ID': '1001329', 'DESCRIPTION': 'Office Chair', 'Issue Date': '5/4/2023', "+
		"'UNIT PRICE': '$1,100.00', 'AMOUNT': '$1,100.00', 'Bill For': 'james', 'From': 'excel company', 'Terms': 'pay this now'}\n")

	report, err := f.assembler(t, Options{Workers: 1}).Run(context.Background(), f.docs)
	require.NoError(t, err)

	require.Equal(t, 1, report.Table.Len())
	assert.Empty(t, report.Failures)
	assert.NotEmpty(t, report.BatchID)
	assert.Equal(t, 1, report.Documents)

	row := report.Table[0].Row()
	assert.Equal(t, "1001329", row.InvoiceID)
	assert.Equal(t, "1100.00", row.Amount)
	assert.Equal(t, "1,100.00", row.UnitPrice)
	assert.Equal(t, "pay this now", row.Terms)

	avg := report.Average()
	require.True(t, avg.Valid)
	assert.True(t, avg.Decimal.Equal(decimal.NewFromInt(1100)))

	assert.True(t, f.logger.HasEntry("INFO", "Batch finished"))
}

func TestAssembler_IsolatesFailures(t *testing.T) {
	f := newFixture(t)
	f.add("a.pdf", billResponse(1, "10.00"))
	f.add("broken.pdf", "{'Invoice ID': '2', 'AMOUNT': '20.00'")
	f.add("c.pdf", billResponse(3, "30.00"))

	report, err := f.assembler(t, Options{Workers: 1}).Run(context.Background(), f.docs)
	require.NoError(t, err)

	require.Equal(t, 2, report.Table.Len())
	assert.Equal(t, "1", report.Table[0].Row().InvoiceID)
	assert.Equal(t, "3", report.Table[1].Row().InvoiceID)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, 1, report.Failures[0].Index)
	assert.Equal(t, "broken.pdf", report.Failures[0].Name)
	assert.Equal(t, models.FailureParse, report.Failures[0].Kind)

	assert.True(t, report.Average().Decimal.Equal(decimal.NewFromInt(20)))
	assert.Len(t, f.logger.GetEntriesByLevel("WARN"), 1)
}

func TestAssembler_FailureKinds(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fixture)
		wantKind models.FailureKind
	}{
		{
			name: "no text layer",
			setup: func(f *fixture) {
				f.extractor.Errs["bill.pdf"] = &parsererror.ExtractionError{Document: "bill.pdf", Reason: "no text layer", Err: parsererror.ErrEmptyText}
			},
			wantKind: models.FailureExtraction,
		},
		{
			name: "model unavailable",
			setup: func(f *fixture) {
				f.completer.Err = &parsererror.RemoteServiceError{Provider: "openai", StatusCode: 503}
			},
			wantKind: models.FailureRemoteService,
		},
		{
			name: "missing key",
			setup: func(f *fixture) {
				f.responses[llm.BuildPrompt(f.extractor.Texts["bill.pdf"])] = "{'Invoice ID': '1', 'AMOUNT': '5'}"
			},
			wantKind: models.FailureValidation,
		},
		{
			name: "expression instead of literal",
			setup: func(f *fixture) {
				f.responses[llm.BuildPrompt(f.extractor.Texts["bill.pdf"])] = "{'AMOUNT': __import__('os').getcwd()}"
			},
			wantKind: models.FailureParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.add("bill.pdf", billResponse(1, "5.00"))
			tt.setup(f)

			report, err := f.assembler(t, Options{Workers: 1}).Run(context.Background(), f.docs)
			require.NoError(t, err)

			assert.Equal(t, 0, report.Table.Len())
			require.Len(t, report.Failures, 1)
			assert.Equal(t, tt.wantKind, report.Failures[0].Kind)
			assert.False(t, report.Average().Valid)
		})
	}
}

func TestAssembler_EmptyBatch(t *testing.T) {
	f := newFixture(t)

	report, err := f.assembler(t, Options{Workers: 4}).Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Table.Len())
	assert.Empty(t, report.Failures)
	assert.False(t, report.Average().Valid)

	var buf bytes.Buffer
	require.NoError(t, common.WriteRecordsCSV(&buf, report.Table, ','))
	assert.Equal(t, "Invoice ID,DESCRIPTION,Issue Date,UNIT PRICE,AMOUNT,Bill For,From,Terms\n", buf.String())
	assert.Equal(t, 0, f.completer.Calls())
}

func TestAssembler_IdempotentCSV(t *testing.T) {
	f := newFixture(t)
	for i := 1; i <= 4; i++ {
		f.add(fmt.Sprintf("%d.pdf", i), billResponse(i, fmt.Sprintf("%d.50", i)))
	}
	assembler := f.assembler(t, Options{Workers: 2})

	render := func() []byte {
		report, err := assembler.Run(context.Background(), f.docs)
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, common.WriteRecordsCSV(&buf, report.Table, ','))
		return buf.Bytes()
	}

	assert.Equal(t, render(), render())
}

func TestAssembler_FailFast(t *testing.T) {
	f := newFixture(t)
	f.add("a.pdf", billResponse(1, "10.00"))
	f.add("broken.pdf", "not a dictionary")
	f.add("c.pdf", billResponse(3, "30.00"))

	report, err := f.assembler(t, Options{Workers: 1, FailFast: true}).Run(context.Background(), f.docs)
	require.Error(t, err)
	assert.Nil(t, report)

	var abort *AbortError
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, 1, abort.Index)
	assert.Equal(t, "broken.pdf", abort.Document)
	assert.Equal(t, models.FailureParse, abort.Kind)
	assert.Equal(t, models.FailureParse, parsererror.KindOf(err))

	assert.Equal(t, []string{"a.pdf", "broken.pdf"}, f.extractor.Calls())
}

func TestAssembler_FailFastParallel(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 6; i++ {
		f.add(fmt.Sprintf("%d.pdf", i), billResponse(i, "1.00"))
	}
	f.extractor.Errs["3.pdf"] = &parsererror.ExtractionError{Document: "3.pdf", Reason: "not a readable PDF"}

	report, err := f.assembler(t, Options{Workers: 3, FailFast: true}).Run(context.Background(), f.docs)
	require.Error(t, err)
	assert.Nil(t, report)

	var abort *AbortError
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, "3.pdf", abort.Document)
	assert.Equal(t, models.FailureExtraction, abort.Kind)
}

// Property: for any worker count and any completion latency, the table lists
// records in upload order.
func TestProperty_ParallelPreservesUploadOrder(t *testing.T) {
	for i := 0; i < 20; i++ {
		t.Run(fmt.Sprintf("iteration_%d", i), func(t *testing.T) {
			f := newFixture(t)
			count := cryptoRandIntn(12) + 2
			for n := 0; n < count; n++ {
				f.add(fmt.Sprintf("bill-%02d.pdf", n), billResponse(n+1, "1.00"))
			}
			f.completer.Fn = func(ctx context.Context, prompt string) (string, error) {
				time.Sleep(time.Duration(cryptoRandIntn(3)) * time.Millisecond)
				return f.responses[prompt], nil
			}

			workers := cryptoRandIntn(7) + 2
			report, err := f.assembler(t, Options{Workers: workers}).Run(context.Background(), f.docs)
			require.NoError(t, err)

			require.Equal(t, count, report.Table.Len())
			for n, record := range report.Table {
				require.NotNil(t, record.InvoiceID)
				assert.Equal(t, int64(n+1), *record.InvoiceID)
			}
		})
	}
}

func TestAssembler_WorkerLimit(t *testing.T) {
	f := newFixture(t)
	for n := 0; n < 8; n++ {
		f.add(fmt.Sprintf("%d.pdf", n), billResponse(n, "1.00"))
	}

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	f.completer.Fn = func(ctx context.Context, prompt string) (string, error) {
		mu.Lock()
		active++
		if active > maxSeen {
			maxSeen = active
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return f.responses[prompt], nil
	}

	report, err := f.assembler(t, Options{Workers: 3}).Run(context.Background(), f.docs)
	require.NoError(t, err)

	assert.Equal(t, 8, report.Table.Len())
	assert.LessOrEqual(t, maxSeen, 3)
}

type blockingExtractor struct{}

func (blockingExtractor) ExtractText(ctx context.Context, doc models.Document) (string, error) {
	<-ctx.Done()
	return "", &parsererror.ExtractionError{Document: doc.Name, Reason: "interrupted", Err: ctx.Err()}
}

func TestAssembler_DocumentTimeout(t *testing.T) {
	f := newFixture(t)
	f.add("slow.pdf", billResponse(1, "1.00"))

	records := llm.NewRecordExtractor(f.completer, llm.ExtractorConfig{}, f.logger)
	assembler := NewAssembler(blockingExtractor{}, records, billparser.NewParser(nil, f.logger),
		Options{Workers: 1, DocumentTimeout: 20 * time.Millisecond}, f.logger)

	report, err := assembler.Run(context.Background(), f.docs)
	require.NoError(t, err)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, models.FailureTimeout, report.Failures[0].Kind)
	assert.Equal(t, 0, f.completer.Calls())
}

func TestAssembler_Canceled(t *testing.T) {
	f := newFixture(t)
	f.add("a.pdf", billResponse(1, "1.00"))
	f.add("b.pdf", billResponse(2, "2.00"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 2} {
		report, err := f.assembler(t, Options{Workers: workers}).Run(ctx, f.docs)
		require.Error(t, err)
		assert.Nil(t, report)
		assert.True(t, errors.Is(err, context.Canceled))
	}
}

func TestNewAssembler_DefaultsWorkers(t *testing.T) {
	a := NewAssembler(pdfparser.NewMockPDFExtractor("", nil), nil, nil, Options{Workers: 0}, nil)
	assert.Equal(t, 1, a.Options().Workers)
}
