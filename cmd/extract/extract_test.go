package extract

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"fjacquet/bill-csv/cmd/root"
	"fjacquet/bill-csv/internal/config"
	"fjacquet/bill-csv/internal/container"
	"fjacquet/bill-csv/internal/llm"
	"fjacquet/bill-csv/internal/logging"
	"fjacquet/bill-csv/internal/pdfparser"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCommand(t *testing.T) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "extract"}
	addFlags(cmd)
	cmd.SetContext(context.Background())

	saved := root.SharedFlags
	t.Cleanup(func() { root.SharedFlags = saved })
	root.SharedFlags = root.CommonFlags{}
	return cmd
}

func TestExtractCommand_Metadata(t *testing.T) {
	assert.Equal(t, "extract [files or dirs...]", Cmd.Use)
	assert.Contains(t, Cmd.Short, "CSV")
	assert.NotNil(t, Cmd.RunE)
	for _, name := range []string{"format", "report", "workers", "fail-fast", "delimiter"} {
		assert.NotNil(t, Cmd.Flags().Lookup(name), name)
	}
}

func TestOptionsFrom_Defaults(t *testing.T) {
	cmd := newTestCommand(t)
	root.SharedFlags.Input = []string{"bills"}
	cfg := config.Default()

	opts, err := optionsFrom(cmd, []string{"extra.pdf"}, cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"bills", "extra.pdf"}, opts.Inputs)
	assert.Equal(t, cfg.CSV.FileName, opts.Output)
	assert.Equal(t, cfg.Batch.Workers, opts.Batch.Workers)
	assert.Equal(t, cfg.Batch.FailFast, opts.Batch.FailFast)
	assert.Equal(t, ',', opts.Delimiter)
}

func TestOptionsFrom_FlagsOverrideConfig(t *testing.T) {
	cmd := newTestCommand(t)
	require.NoError(t, cmd.Flags().Set("workers", "7"))
	require.NoError(t, cmd.Flags().Set("fail-fast", "true"))
	require.NoError(t, cmd.Flags().Set("delimiter", ";"))
	root.SharedFlags.Output = "out.csv"

	opts, err := optionsFrom(cmd, nil, config.Default())
	require.NoError(t, err)

	assert.Equal(t, "out.csv", opts.Output)
	assert.Equal(t, 7, opts.Batch.Workers)
	assert.True(t, opts.Batch.FailFast)
	assert.Equal(t, ';', opts.Delimiter)
}

func TestOptionsFrom_InvalidFlags(t *testing.T) {
	tests := []struct {
		flag  string
		value string
	}{
		{flag: "workers", value: "0"},
		{flag: "delimiter", value: ";;"},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			cmd := newTestCommand(t)
			require.NoError(t, cmd.Flags().Set(tt.flag, tt.value))

			_, err := optionsFrom(cmd, nil, config.Default())
			assert.Error(t, err)
		})
	}
}

func TestRun_WritesCSVAndSummary(t *testing.T) {
	cmd := newTestCommand(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "chair.pdf")
	require.NoError(t, os.WriteFile(input, []byte("%PDF-1.4"), 0600))
	output := filepath.Join(dir, "bills.csv")
	root.SharedFlags.Output = output

	c, err := container.NewContainer(config.Default(),
		container.WithLogger(logging.NewMockLogger()),
		container.WithExtractor(pdfparser.NewMockPDFExtractor("Invoice 1001329", nil)),
		container.WithCompleter(llm.NewMockCompleter("{'Invoice ID': '1001329', 'DESCRIPTION': 'Office Chair', "+
			"'Issue Date': '5/4/2023', 'UNIT PRICE': '1100.00', 'AMOUNT': '1100.00', 'Bill For': 'james', "+
			"'From': 'excel company', 'Terms': 'pay this now'}", nil)))
	require.NoError(t, err)

	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, run(cmd, []string{input}, c))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "1001329,Office Chair,5/4/2023,1100.00,1100.00,james,excel company,pay this now")
	assert.Contains(t, out.String(), "Average AMOUNT: 1100.00")
}

func TestRun_NoInput(t *testing.T) {
	cmd := newTestCommand(t)
	c, err := container.NewContainer(config.Default(),
		container.WithLogger(logging.NewMockLogger()),
		container.WithCompleter(llm.NewMockCompleter("", nil)))
	require.NoError(t, err)

	err = run(cmd, nil, c)
	assert.ErrorContains(t, err, "no input")
}
