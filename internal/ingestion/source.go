package ingestion

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"credit-engine/internal/config"

	"github.com/xuri/excelize/v2"
)

// CustomerRow is one record of the customer extract, columns matching the
// historical spreadsheet headers.
type CustomerRow struct {
	CustomerID    int64
	FirstName     string
	LastName      string
	Age           *int
	PhoneNumber   string
	MonthlySalary float64
	ApprovedLimit float64
	CurrentDebt   float64
}

type LoanRow struct {
	LoanID           int64
	CustomerID       int64
	LoanAmount       float64
	Tenure           int
	InterestRate     float64
	MonthlyRepayment float64
	EMIsPaidOnTime   int
	StartDate        time.Time
	EndDate          time.Time
}

// Source yields the two tabular extracts. Each call reports how many rows
// were dropped as malformed so the pipeline can account for them; only an
// unreadable source is an error.
type Source interface {
	CustomerRows() (rows []CustomerRow, malformed int, err error)
	LoanRows() (rows []LoanRow, malformed int, err error)
}

type ExcelSource struct {
	cfg    config.IngestionConfig
	logger *slog.Logger
}

var _ Source = (*ExcelSource)(nil)

func NewExcelSource(cfg config.IngestionConfig, logger *slog.Logger) *ExcelSource {
	return &ExcelSource{cfg: cfg, logger: logger.With("component", "ExcelSource")}
}

func (s *ExcelSource) CustomerRows() ([]CustomerRow, int, error) {
	records, err := s.readSheet(s.cfg.CustomerFile, s.cfg.CustomerSheet)
	if err != nil {
		return nil, 0, err
	}

	rows := make([]CustomerRow, 0, len(records))
	malformed := 0
	for i, rec := range records {
		row, err := decodeCustomerRow(rec)
		if err != nil {
			malformed++
			s.logger.Warn("Skipping malformed customer row", "row", i+2, "error", err)
			continue
		}
		rows = append(rows, row)
	}
	return rows, malformed, nil
}

func (s *ExcelSource) LoanRows() ([]LoanRow, int, error) {
	records, err := s.readSheet(s.cfg.LoanFile, s.cfg.LoanSheet)
	if err != nil {
		return nil, 0, err
	}

	rows := make([]LoanRow, 0, len(records))
	malformed := 0
	for i, rec := range records {
		row, err := decodeLoanRow(rec)
		if err != nil {
			malformed++
			s.logger.Warn("Skipping malformed loan row", "row", i+2, "error", err)
			continue
		}
		rows = append(rows, row)
	}
	return rows, malformed, nil
}

// readSheet returns one map per data row, keyed by normalized header name.
func (s *ExcelSource) readSheet(file, sheet string) ([]map[string]string, error) {
	path := filepath.Join(s.cfg.DataDir, file)

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			s.logger.Warn("Failed to close spreadsheet", "path", path, "error", closeErr)
		}
	}()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}

	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q of %s: %w", sheet, path, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	headers := make([]string, len(raw[0]))
	for i, h := range raw[0] {
		headers[i] = normalizeHeader(h)
	}

	records := make([]map[string]string, 0, len(raw)-1)
	for _, cells := range raw[1:] {
		rec := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(cells) {
				rec[h] = strings.TrimSpace(cells[i])
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func normalizeHeader(h string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
}

func decodeCustomerRow(rec map[string]string) (CustomerRow, error) {
	var row CustomerRow
	var err error

	if row.CustomerID, err = parseInt(rec, "customer_id"); err != nil {
		return row, err
	}
	if row.FirstName = rec["first_name"]; row.FirstName == "" {
		return row, fmt.Errorf("missing first_name")
	}
	if row.LastName = rec["last_name"]; row.LastName == "" {
		return row, fmt.Errorf("missing last_name")
	}
	row.PhoneNumber = rec["phone_number"]

	if ageStr := rec["age"]; ageStr != "" {
		age, err := strconv.Atoi(ageStr)
		if err != nil {
			return row, fmt.Errorf("invalid age %q: %w", ageStr, err)
		}
		row.Age = &age
	}

	if row.MonthlySalary, err = parseFloat(rec, "monthly_salary"); err != nil {
		return row, err
	}
	if row.ApprovedLimit, err = parseFloat(rec, "approved_limit"); err != nil {
		return row, err
	}
	if rec["current_debt"] != "" {
		if row.CurrentDebt, err = parseFloat(rec, "current_debt"); err != nil {
			return row, err
		}
	}
	return row, nil
}

func decodeLoanRow(rec map[string]string) (LoanRow, error) {
	var row LoanRow
	var err error

	if row.LoanID, err = parseInt(rec, "loan_id"); err != nil {
		return row, err
	}
	if row.CustomerID, err = parseInt(rec, "customer_id"); err != nil {
		return row, err
	}
	if row.LoanAmount, err = parseFloat(rec, "loan_amount"); err != nil {
		return row, err
	}

	tenure, err := parseInt(rec, "tenure")
	if err != nil {
		return row, err
	}
	row.Tenure = int(tenure)

	if row.InterestRate, err = parseFloat(rec, "interest_rate"); err != nil {
		return row, err
	}
	if row.MonthlyRepayment, err = parseFloat(rec, "monthly_repayment"); err != nil {
		return row, err
	}

	if rec["emis_paid_on_time"] != "" {
		paid, err := parseInt(rec, "emis_paid_on_time")
		if err != nil {
			return row, err
		}
		row.EMIsPaidOnTime = int(paid)
	}

	if row.StartDate, err = parseDate(rec, "start_date"); err != nil {
		return row, err
	}
	if row.EndDate, err = parseDate(rec, "end_date"); err != nil {
		return row, err
	}
	return row, nil
}

func parseInt(rec map[string]string, key string) (int64, error) {
	v := rec[key]
	if v == "" {
		return 0, fmt.Errorf("missing %s", key)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func parseFloat(rec map[string]string, key string) (float64, error) {
	v := rec[key]
	if v == "" {
		return 0, fmt.Errorf("missing %s", key)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

// dateLayouts covers the formats seen in the historical extracts.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01-02-06",
	"1/2/06 15:04",
	"01/02/2006",
}

func parseDate(rec map[string]string, key string) (time.Time, error) {
	v := rec[key]
	if v == "" {
		return time.Time{}, fmt.Errorf("missing %s", key)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid %s %q", key, v)
}
