package ingestion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/loan"

	"github.com/stretchr/testify/assert"
)

type fakeSource struct {
	customers         []CustomerRow
	customerMalformed int
	customerErr       error
	loans             []LoanRow
	loanMalformed     int
	loanErr           error
}

func (s *fakeSource) CustomerRows() ([]CustomerRow, int, error) {
	return s.customers, s.customerMalformed, s.customerErr
}

func (s *fakeSource) LoanRows() ([]LoanRow, int, error) {
	return s.loans, s.loanMalformed, s.loanErr
}

// fakeCustomerStore mimics ON CONFLICT DO NOTHING semantics in memory.
type fakeCustomerStore struct {
	rows    map[int64]*customer.Customer
	failIDs map[int64]bool
	listErr error
}

func newFakeCustomerStore() *fakeCustomerStore {
	return &fakeCustomerStore{rows: make(map[int64]*customer.Customer), failIDs: make(map[int64]bool)}
}

func (s *fakeCustomerStore) InsertIgnore(_ context.Context, cust *customer.Customer) (bool, error) {
	if s.failIDs[cust.CustomerID] {
		return false, errors.New("insert failed")
	}
	if _, exists := s.rows[cust.CustomerID]; exists {
		return false, nil
	}
	s.rows[cust.CustomerID] = cust
	return true, nil
}

func (s *fakeCustomerStore) ListCustomerIDs(_ context.Context) ([]int64, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	ids := make([]int64, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeLoanStore struct {
	rows map[int64]*loan.Loan
}

func newFakeLoanStore() *fakeLoanStore {
	return &fakeLoanStore{rows: make(map[int64]*loan.Loan)}
}

func (s *fakeLoanStore) InsertIgnore(_ context.Context, l *loan.Loan) (bool, error) {
	if _, exists := s.rows[l.LoanID]; exists {
		return false, nil
	}
	s.rows[l.LoanID] = l
	return true, nil
}

func testPipeline(source Source, customers CustomerStore, loans LoanStore) *Pipeline {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPipeline(source, customers, loans, logger)
}

func sampleSource() *fakeSource {
	start := time.Date(2022, time.March, 1, 0, 0, 0, 0, time.UTC)
	return &fakeSource{
		customers: []CustomerRow{
			{CustomerID: 1, FirstName: "Asha", LastName: "Verma", MonthlySalary: 50_000, ApprovedLimit: 1_800_000},
			{CustomerID: 2, FirstName: "Ravi", LastName: "Iyer", MonthlySalary: 33_000, ApprovedLimit: 1_200_000},
		},
		loans: []LoanRow{
			{LoanID: 10, CustomerID: 1, LoanAmount: 100_000, Tenure: 12, InterestRate: 11, MonthlyRepayment: 8838.59, EMIsPaidOnTime: 6, StartDate: start, EndDate: start.AddDate(0, 12, 0)},
			{LoanID: 11, CustomerID: 2, LoanAmount: 200_000, Tenure: 24, InterestRate: 12, MonthlyRepayment: 9414.69, EMIsPaidOnTime: 24, StartDate: start, EndDate: start.AddDate(0, 24, 0)},
		},
	}
}

func TestPipelineRun(t *testing.T) {
	ctx := context.Background()

	t.Run("should load customers before loans", func(t *testing.T) {
		customers := newFakeCustomerStore()
		loans := newFakeLoanStore()

		result, err := testPipeline(sampleSource(), customers, loans).Run(ctx)

		assert.NoError(t, err)
		assert.Equal(t, 2, result.CustomersCreated)
		assert.Equal(t, 2, result.LoansCreated)
		assert.Zero(t, result.CustomersSkipped)
		assert.Zero(t, result.LoansSkipped)
		assert.True(t, loans.rows[10].Approved)
	})

	t.Run("should be idempotent across repeated runs", func(t *testing.T) {
		customers := newFakeCustomerStore()
		loans := newFakeLoanStore()
		pipeline := testPipeline(sampleSource(), customers, loans)

		first, err := pipeline.Run(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 2, first.CustomersCreated)

		second, err := pipeline.Run(ctx)
		assert.NoError(t, err)
		assert.Zero(t, second.CustomersCreated)
		assert.Zero(t, second.LoansCreated)
		assert.Equal(t, 2, second.CustomersSkipped)
		assert.Equal(t, 2, second.LoansSkipped)
		assert.Len(t, customers.rows, 2)
		assert.Len(t, loans.rows, 2)
	})

	t.Run("should skip loans referencing unknown customers", func(t *testing.T) {
		source := sampleSource()
		source.loans = append(source.loans, LoanRow{LoanID: 12, CustomerID: 999, LoanAmount: 50_000, Tenure: 6})

		customers := newFakeCustomerStore()
		loans := newFakeLoanStore()
		result, err := testPipeline(source, customers, loans).Run(ctx)

		assert.NoError(t, err)
		assert.Equal(t, 2, result.LoansCreated)
		assert.Equal(t, 1, result.LoansSkipped)
		assert.NotContains(t, loans.rows, int64(12))
	})

	t.Run("should count malformed rows as skips", func(t *testing.T) {
		source := sampleSource()
		source.customerMalformed = 3
		source.loanMalformed = 1

		result, err := testPipeline(source, newFakeCustomerStore(), newFakeLoanStore()).Run(ctx)

		assert.NoError(t, err)
		assert.Equal(t, 3, result.CustomersSkipped)
		assert.Equal(t, 1, result.LoansSkipped)
		assert.Equal(t, 2, result.CustomersCreated)
	})

	t.Run("should skip a row the store rejects and keep going", func(t *testing.T) {
		customers := newFakeCustomerStore()
		customers.failIDs[1] = true
		loans := newFakeLoanStore()

		result, err := testPipeline(sampleSource(), customers, loans).Run(ctx)

		assert.NoError(t, err)
		assert.Equal(t, 1, result.CustomersCreated)
		assert.Equal(t, 1, result.CustomersSkipped)
		// Loans of the failed customer become orphans and are skipped too.
		assert.Equal(t, 1, result.LoansCreated)
		assert.Equal(t, 1, result.LoansSkipped)
	})

	t.Run("should fail the batch when the source is unreadable", func(t *testing.T) {
		source := &fakeSource{customerErr: errors.New("file missing")}

		_, err := testPipeline(source, newFakeCustomerStore(), newFakeLoanStore()).Run(ctx)
		assert.Error(t, err)
	})

	t.Run("should fail when the loan extract is unreadable", func(t *testing.T) {
		source := sampleSource()
		source.loanErr = errors.New("corrupt sheet")

		_, err := testPipeline(source, newFakeCustomerStore(), newFakeLoanStore()).Run(ctx)
		assert.Error(t, err)
	})
}
