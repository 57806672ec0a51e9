package ingestion

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"credit-engine/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeSheet(t *testing.T, path, sheet string, rows [][]interface{}) {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheet)
	require.NoError(t, err)
	f.SetActiveSheet(index)

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestExcelSource(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("should decode customer rows with normalized headers", func(t *testing.T) {
		dir := t.TempDir()
		writeSheet(t, filepath.Join(dir, "customer_data.xlsx"), "Sheet1", [][]interface{}{
			{"Customer ID", "First Name", "Last Name", "Age", "Phone Number", "Monthly Salary", "Approved Limit", "Current Debt"},
			{1, "Asha", "Verma", 31, "9876543210", 50000, 1800000, 0},
			{2, "Ravi", "Iyer", 45, "9123456780", 33000, 1200000, 120000},
		})

		source := NewExcelSource(config.IngestionConfig{
			DataDir:      dir,
			CustomerFile: "customer_data.xlsx",
		}, logger)

		rows, malformed, err := source.CustomerRows()
		assert.NoError(t, err)
		assert.Zero(t, malformed)
		require.Len(t, rows, 2)
		assert.Equal(t, int64(1), rows[0].CustomerID)
		assert.Equal(t, "Asha", rows[0].FirstName)
		require.NotNil(t, rows[0].Age)
		assert.Equal(t, 31, *rows[0].Age)
		assert.Equal(t, 1_800_000.0, rows[0].ApprovedLimit)
		assert.Equal(t, 120_000.0, rows[1].CurrentDebt)
	})

	t.Run("should count malformed customer rows instead of failing", func(t *testing.T) {
		dir := t.TempDir()
		writeSheet(t, filepath.Join(dir, "customer_data.xlsx"), "Sheet1", [][]interface{}{
			{"Customer ID", "First Name", "Last Name", "Monthly Salary", "Approved Limit"},
			{1, "Asha", "Verma", 50000, 1800000},
			{"not-a-number", "Bad", "Row", 1000, 100000},
			{3, "", "Missing", 1000, 100000},
		})

		source := NewExcelSource(config.IngestionConfig{
			DataDir:      dir,
			CustomerFile: "customer_data.xlsx",
		}, logger)

		rows, malformed, err := source.CustomerRows()
		assert.NoError(t, err)
		assert.Equal(t, 2, malformed)
		assert.Len(t, rows, 1)
	})

	t.Run("should decode loan rows with dates", func(t *testing.T) {
		dir := t.TempDir()
		writeSheet(t, filepath.Join(dir, "loan_data.xlsx"), "Sheet1", [][]interface{}{
			{"Loan ID", "Customer ID", "Loan Amount", "Tenure", "Interest Rate", "Monthly Repayment", "EMIs paid on Time", "Start Date", "End Date"},
			{10, 1, 100000, 12, "11.5", "8861.89", 6, "2022-03-01", "2023-03-01"},
		})

		source := NewExcelSource(config.IngestionConfig{
			DataDir:  dir,
			LoanFile: "loan_data.xlsx",
		}, logger)

		rows, malformed, err := source.LoanRows()
		assert.NoError(t, err)
		assert.Zero(t, malformed)
		require.Len(t, rows, 1)
		assert.Equal(t, int64(10), rows[0].LoanID)
		assert.Equal(t, 12, rows[0].Tenure)
		assert.Equal(t, 11.5, rows[0].InterestRate)
		assert.Equal(t, 6, rows[0].EMIsPaidOnTime)
		assert.Equal(t, 2022, rows[0].StartDate.Year())
		assert.Equal(t, 2023, rows[0].EndDate.Year())
	})

	t.Run("should fail when the file does not exist", func(t *testing.T) {
		source := NewExcelSource(config.IngestionConfig{
			DataDir:      t.TempDir(),
			CustomerFile: "missing.xlsx",
		}, logger)

		_, _, err := source.CustomerRows()
		assert.Error(t, err)
	})
}
