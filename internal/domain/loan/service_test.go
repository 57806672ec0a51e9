package loan

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateLoan(ctx context.Context, newLoan *Loan) (*Loan, error) {
	args := m.Called(ctx, newLoan)
	if created, ok := args.Get(0).(*Loan); ok {
		return created, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) GetByLoanID(ctx context.Context, loanID int64) (*Loan, error) {
	args := m.Called(ctx, loanID)
	if l, ok := args.Get(0).(*Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) ListByCustomerID(ctx context.Context, customerID int64) ([]Loan, error) {
	args := m.Called(ctx, customerID)
	if loans, ok := args.Get(0).([]Loan); ok {
		return loans, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockCustomerService struct {
	mock.Mock
}

func (m *MockCustomerService) Register(ctx context.Context, input customer.RegisterInput) (*customer.Customer, error) {
	args := m.Called(ctx, input)
	if cust, ok := args.Get(0).(*customer.Customer); ok {
		return cust, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerService) GetCustomer(ctx context.Context, customerID int64) (*customer.Customer, error) {
	args := m.Called(ctx, customerID)
	if cust, ok := args.Get(0).(*customer.Customer); ok {
		return cust, args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestService(repo Repository, cs customer.CustomerService) *loanServiceImpl {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewLoanService(repo, cs, DefaultScoringPolicy(), logger).(*loanServiceImpl)
	svc.now = func() time.Time { return scoringNow }
	return svc
}

func freshCustomer() *customer.Customer {
	return &customer.Customer{
		CustomerID:    101,
		FirstName:     "Asha",
		LastName:      "Verma",
		MonthlySalary: 50_000,
		ApprovedLimit: 1_800_000,
	}
}

func TestCheckEligibility(t *testing.T) {
	ctx := context.Background()

	t.Run("should approve a fresh customer at the requested rate", func(t *testing.T) {
		repo := new(MockRepository)
		cs := new(MockCustomerService)
		cs.On("GetCustomer", ctx, int64(101)).Return(freshCustomer(), nil)
		repo.On("ListByCustomerID", ctx, int64(101)).Return([]Loan{}, nil)

		svc := newTestService(repo, cs)
		result, err := svc.CheckEligibility(ctx, 101, 200_000, 10, 24)

		assert.NoError(t, err)
		assert.True(t, result.Approved)
		assert.Equal(t, 80, result.Score)
		assert.Equal(t, 10.0, result.CorrectedRate)
		assert.Greater(t, result.MonthlyInstallment, 0.0)
		repo.AssertExpectations(t)
		cs.AssertExpectations(t)
	})

	t.Run("should return not found for an unknown customer", func(t *testing.T) {
		repo := new(MockRepository)
		cs := new(MockCustomerService)
		cs.On("GetCustomer", ctx, int64(999)).Return(nil, apperrors.ErrNotFound)

		svc := newTestService(repo, cs)
		_, err := svc.CheckEligibility(ctx, 999, 200_000, 10, 24)

		assert.True(t, errors.Is(err, apperrors.ErrNotFound))
		repo.AssertNotCalled(t, "ListByCustomerID")
	})

	t.Run("should reject invalid loan terms before scoring", func(t *testing.T) {
		repo := new(MockRepository)
		cs := new(MockCustomerService)
		cs.On("GetCustomer", ctx, int64(101)).Return(freshCustomer(), nil)

		svc := newTestService(repo, cs)

		_, err := svc.CheckEligibility(ctx, 101, -5, 10, 24)
		assert.True(t, errors.Is(err, apperrors.ErrInvalidTerms))

		_, err = svc.CheckEligibility(ctx, 101, 200_000, 0, 24)
		assert.True(t, errors.Is(err, apperrors.ErrInvalidTerms))

		_, err = svc.CheckEligibility(ctx, 101, 200_000, 10, 0)
		assert.True(t, errors.Is(err, apperrors.ErrInvalidTerms))
	})

	t.Run("should correct the rate for a middling score", func(t *testing.T) {
		repo := new(MockRepository)
		cs := new(MockCustomerService)
		cs.On("GetCustomer", ctx, int64(101)).Return(freshCustomer(), nil)
		// Poor repayment history drags the score into the 16 percent band.
		portfolio := []Loan{pastLoan(100_000, 12, 0, 2023)}
		repo.On("ListByCustomerID", ctx, int64(101)).Return(portfolio, nil)

		svc := newTestService(repo, cs)
		result, err := svc.CheckEligibility(ctx, 101, 200_000, 10, 24)

		assert.NoError(t, err)
		assert.True(t, result.Approved)
		assert.Equal(t, 16.0, result.CorrectedRate)
		assert.Equal(t, 10.0, result.RequestedRate)
	})

	t.Run("should deny when total EMIs would exceed half the salary", func(t *testing.T) {
		repo := new(MockRepository)
		cs := new(MockCustomerService)
		cs.On("GetCustomer", ctx, int64(101)).Return(freshCustomer(), nil)

		running := pastLoan(300_000, 36, 12, 2024)
		running.MonthlyRepayment = 20_000
		repo.On("ListByCustomerID", ctx, int64(101)).Return([]Loan{running}, nil)

		svc := newTestService(repo, cs)
		// Salary is 50k, so the gate trips once EMIs pass 25k.
		result, err := svc.CheckEligibility(ctx, 101, 500_000, 12, 36)

		assert.NoError(t, err)
		assert.False(t, result.Approved)
		assert.Equal(t, "EMI exceeds salary limit", result.Reason)
	})

	t.Run("should deny outright when score is too low", func(t *testing.T) {
		repo := new(MockRepository)
		cs := new(MockCustomerService)
		cs.On("GetCustomer", ctx, int64(101)).Return(freshCustomer(), nil)

		over := pastLoan(2_000_000, 120, 10, 2024)
		repo.On("ListByCustomerID", ctx, int64(101)).Return([]Loan{over}, nil)

		svc := newTestService(repo, cs)
		result, err := svc.CheckEligibility(ctx, 101, 200_000, 10, 24)

		assert.NoError(t, err)
		assert.False(t, result.Approved)
		assert.Equal(t, 0, result.Score)
		assert.NotEmpty(t, result.Reason)
	})
}

func TestCreateLoan(t *testing.T) {
	ctx := context.Background()

	t.Run("should persist an approved loan with computed installment", func(t *testing.T) {
		repo := new(MockRepository)
		cs := new(MockCustomerService)
		cs.On("GetCustomer", ctx, int64(101)).Return(freshCustomer(), nil)
		repo.On("ListByCustomerID", ctx, int64(101)).Return([]Loan{}, nil)
		repo.On("CreateLoan", ctx, mock.MatchedBy(func(l *Loan) bool {
			return l.LoanID == 0 &&
				l.CustomerID == 101 &&
				l.Approved &&
				l.InterestRate == 10.0 &&
				l.EndDate.Equal(l.StartDate.AddDate(0, 24, 0))
		})).Return(&Loan{LoanID: 5001, CustomerID: 101, MonthlyRepayment: 9229.93}, nil)

		svc := newTestService(repo, cs)
		result, err := svc.CreateLoan(ctx, 101, 200_000, 10, 24)

		assert.NoError(t, err)
		assert.True(t, result.Approved)
		assert.NotNil(t, result.LoanID)
		assert.Equal(t, int64(5001), *result.LoanID)
		assert.Equal(t, "Loan approved", result.Message)
		repo.AssertExpectations(t)
	})

	t.Run("should return a denial payload without touching the repository", func(t *testing.T) {
		repo := new(MockRepository)
		cs := new(MockCustomerService)
		cs.On("GetCustomer", ctx, int64(101)).Return(freshCustomer(), nil)

		over := pastLoan(2_000_000, 120, 10, 2024)
		repo.On("ListByCustomerID", ctx, int64(101)).Return([]Loan{over}, nil)

		svc := newTestService(repo, cs)
		result, err := svc.CreateLoan(ctx, 101, 200_000, 10, 24)

		assert.NoError(t, err)
		assert.False(t, result.Approved)
		assert.Nil(t, result.LoanID)
		assert.Contains(t, result.Message, "Loan not approved")
		repo.AssertNotCalled(t, "CreateLoan")
	})

	t.Run("should surface repository failures", func(t *testing.T) {
		repo := new(MockRepository)
		cs := new(MockCustomerService)
		cs.On("GetCustomer", ctx, int64(101)).Return(freshCustomer(), nil)
		repo.On("ListByCustomerID", ctx, int64(101)).Return([]Loan{}, nil)
		repo.On("CreateLoan", ctx, mock.Anything).Return(nil, errors.New("connection reset"))

		svc := newTestService(repo, cs)
		_, err := svc.CreateLoan(ctx, 101, 200_000, 10, 24)

		assert.Error(t, err)
	})
}

func TestGetLoan(t *testing.T) {
	ctx := context.Background()

	t.Run("should join loan and owning customer", func(t *testing.T) {
		repo := new(MockRepository)
		cs := new(MockCustomerService)
		repo.On("GetByLoanID", ctx, int64(5001)).Return(&Loan{LoanID: 5001, CustomerID: 101, LoanAmount: 200_000}, nil)
		cs.On("GetCustomer", ctx, int64(101)).Return(freshCustomer(), nil)

		svc := newTestService(repo, cs)
		detail, err := svc.GetLoan(ctx, 5001)

		assert.NoError(t, err)
		assert.Equal(t, int64(5001), detail.Loan.LoanID)
		assert.Equal(t, int64(101), detail.Customer.CustomerID)
	})

	t.Run("should return not found for an unknown loan", func(t *testing.T) {
		repo := new(MockRepository)
		cs := new(MockCustomerService)
		repo.On("GetByLoanID", ctx, int64(404)).Return(nil, apperrors.ErrNotFound)

		svc := newTestService(repo, cs)
		_, err := svc.GetLoan(ctx, 404)

		assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	})
}

func TestListCustomerLoans(t *testing.T) {
	ctx := context.Background()

	t.Run("should list loans for an existing customer", func(t *testing.T) {
		repo := new(MockRepository)
		cs := new(MockCustomerService)
		cs.On("GetCustomer", ctx, int64(101)).Return(freshCustomer(), nil)
		repo.On("ListByCustomerID", ctx, int64(101)).Return([]Loan{
			{LoanID: 1, Tenure: 12, EMIsPaidOnTime: 4},
			{LoanID: 2, Tenure: 24, EMIsPaidOnTime: 24},
		}, nil)

		svc := newTestService(repo, cs)
		loans, err := svc.ListCustomerLoans(ctx, 101)

		assert.NoError(t, err)
		assert.Len(t, loans, 2)
		assert.Equal(t, 8, loans[0].RepaymentsLeft())
		assert.Equal(t, 0, loans[1].RepaymentsLeft())
	})

	t.Run("should return not found for an unknown customer", func(t *testing.T) {
		repo := new(MockRepository)
		cs := new(MockCustomerService)
		cs.On("GetCustomer", ctx, int64(999)).Return(nil, apperrors.ErrNotFound)

		svc := newTestService(repo, cs)
		_, err := svc.ListCustomerLoans(ctx, 999)

		assert.True(t, errors.Is(err, apperrors.ErrNotFound))
		repo.AssertNotCalled(t, "ListByCustomerID")
	})
}
