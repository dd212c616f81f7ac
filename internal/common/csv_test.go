package common

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"fjacquet/bill-csv/internal/logging"
	"fjacquet/bill-csv/internal/models"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "Invoice ID,DESCRIPTION,Issue Date,UNIT PRICE,AMOUNT,Bill For,From,Terms\n"

func officeChair() models.BillRecord {
	record := models.BillRecord{
		Description: "Office Chair",
		IssueDate:   "5/4/2023",
		UnitPrice:   "1,100.00",
		BillFor:     "james",
		From:        "excel company",
		Terms:       "pay this now",
	}
	record.SetInvoiceID(1001329)
	record.SetAmount(decimal.RequireFromString("1100"))
	return record
}

func TestWriteRecordsCSV(t *testing.T) {
	partial := models.BillRecord{Description: "Desk"}

	tests := []struct {
		name      string
		table     models.ResultTable
		delimiter rune
		want      string
	}{
		{
			name:  "empty table writes header only",
			table: models.ResultTable{},
			want:  header,
		},
		{
			name:  "one record",
			table: models.ResultTable{officeChair()},
			want:  header + "1001329,Office Chair,5/4/2023,\"1,100.00\",1100.00,james,excel company,pay this now\n",
		},
		{
			name:  "missing values are empty cells",
			table: models.ResultTable{partial},
			want:  header + ",Desk,,,,,,\n",
		},
		{
			name:      "custom delimiter",
			table:     models.ResultTable{officeChair()},
			delimiter: ';',
			want: "Invoice ID;DESCRIPTION;Issue Date;UNIT PRICE;AMOUNT;Bill For;From;Terms\n" +
				"1001329;Office Chair;5/4/2023;1,100.00;1100.00;james;excel company;pay this now\n",
		},
		{
			name:  "zero delimiter falls back to comma",
			table: models.ResultTable{},
			want:  header,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteRecordsCSV(&buf, tt.table, tt.delimiter))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriteRecordsCSV_PreservesOrder(t *testing.T) {
	var table models.ResultTable
	for _, name := range []string{"first", "second", "third"} {
		table.Append(models.BillRecord{Description: name})
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRecordsCSV(&buf, table, ','))
	assert.Equal(t, header+",first,,,,,,\n,second,,,,,,\n,third,,,,,,\n", buf.String())
}

func TestWriteRecordsCSV_Idempotent(t *testing.T) {
	table := models.ResultTable{officeChair(), {Description: "Desk"}}

	var first, second bytes.Buffer
	require.NoError(t, WriteRecordsCSV(&first, table, ','))
	require.NoError(t, WriteRecordsCSV(&second, table, ','))
	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestWriteRecordsCSVFile_RoundTrip(t *testing.T) {
	csvFile := filepath.Join(t.TempDir(), "out", "CSV_Bills.csv")
	logger := logging.NewMockLogger()

	require.NoError(t, WriteRecordsCSVFile(csvFile, models.ResultTable{officeChair()}, ',', logger))
	assert.True(t, logger.HasEntry("INFO", "Writing bills to CSV file"))

	data, err := os.ReadFile(csvFile)
	require.NoError(t, err)
	var rows []models.CSVRow
	require.NoError(t, gocsv.UnmarshalBytes(data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, officeChair().Row(), rows[0])
}

func TestWriteRecordsCSVFile_Unwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	err := WriteRecordsCSVFile(filepath.Join(blocker, "out.csv"), models.ResultTable{}, ',', nil)
	assert.Error(t, err)
}
