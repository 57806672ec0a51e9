package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"
)

const reasonEMIOverSalary = "EMI exceeds salary limit"

// Eligibility is the outcome of a credit check. Denial is a normal result,
// not an error: Approved is false and Reason carries the policy text.
type Eligibility struct {
	CustomerID         int64
	Approved           bool
	Score              int
	RequestedRate      float64
	CorrectedRate      float64
	Tenure             int
	LoanAmount         float64
	MonthlyInstallment float64
	Reason             string
}

type CreateLoanResult struct {
	LoanID             *int64
	CustomerID         int64
	Approved           bool
	Message            string
	MonthlyInstallment float64
}

type LoanDetail struct {
	Loan     Loan
	Customer customer.Customer
}

type LoanService interface {
	CheckEligibility(ctx context.Context, customerID int64, loanAmount, interestRate float64, tenure int) (*Eligibility, error)

	CreateLoan(ctx context.Context, customerID int64, loanAmount, interestRate float64, tenure int) (*CreateLoanResult, error)

	GetLoan(ctx context.Context, loanID int64) (*LoanDetail, error)

	ListCustomerLoans(ctx context.Context, customerID int64) ([]Loan, error)
}

type loanServiceImpl struct {
	repo            Repository
	customerService customer.CustomerService
	policy          ScoringPolicy
	now             func() time.Time
	logger          *slog.Logger
}

func NewLoanService(r Repository, cs customer.CustomerService, policy ScoringPolicy, logger *slog.Logger) LoanService {
	return &loanServiceImpl{
		repo:            r,
		customerService: cs,
		policy:          policy,
		now:             time.Now,
		logger:          logger.With("component", "loanService"),
	}
}

func (s *loanServiceImpl) CheckEligibility(ctx context.Context, customerID int64, loanAmount, interestRate float64, tenure int) (*Eligibility, error) {
	s.logger.InfoContext(ctx, "Checking loan eligibility", "customerID", customerID, "loanAmount", loanAmount, "interestRate", interestRate, "tenure", tenure)

	cust, err := s.customerService.GetCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		s.logger.ErrorContext(ctx, "Failed to load customer for eligibility check", slog.Any("error", err))
		return nil, fmt.Errorf("failed to verify customer: %w", err)
	}

	if loanAmount <= 0 {
		return nil, fmt.Errorf("%w: loan amount must be greater than zero", apperrors.ErrInvalidTerms)
	}
	if interestRate <= 0 {
		return nil, fmt.Errorf("%w: interest rate must be greater than zero", apperrors.ErrInvalidTerms)
	}
	if tenure <= 0 {
		return nil, fmt.Errorf("%w: tenure must be a positive number of months", apperrors.ErrInvalidTerms)
	}

	portfolio, err := s.repo.ListByCustomerID(ctx, customerID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load loan portfolio", "customerID", customerID, slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to load loan portfolio: %v", apperrors.ErrInternalServer, err)
	}

	now := s.now()
	score := CreditScore(portfolio, cust.ApprovedLimit, now, s.policy)
	approved, correctedRate, reason := s.policy.Decide(score, interestRate)

	emi, err := MonthlyInstallment(loanAmount, correctedRate, tenure)
	if err != nil {
		return nil, err
	}

	if approved {
		var activeEMIs float64
		for i := range portfolio {
			if portfolio[i].ActiveAt(now) {
				activeEMIs += portfolio[i].MonthlyRepayment
			}
		}
		// The salary gate overrides any score-based approval.
		if activeEMIs+emi > s.policy.EMISalaryShare*cust.MonthlySalary {
			approved = false
			reason = reasonEMIOverSalary
		}
	}

	outcome := "approved"
	if !approved {
		outcome = "denied"
	}
	monitoring.RecordEligibilityDecision(outcome)
	s.logger.InfoContext(ctx, "Eligibility decision made", "customerID", customerID, "score", score, "approved", approved, "correctedRate", correctedRate)

	return &Eligibility{
		CustomerID:         customerID,
		Approved:           approved,
		Score:              score,
		RequestedRate:      interestRate,
		CorrectedRate:      correctedRate,
		Tenure:             tenure,
		LoanAmount:         loanAmount,
		MonthlyInstallment: emi,
		Reason:             reason,
	}, nil
}

func (s *loanServiceImpl) CreateLoan(ctx context.Context, customerID int64, loanAmount, interestRate float64, tenure int) (*CreateLoanResult, error) {
	eligibility, err := s.CheckEligibility(ctx, customerID, loanAmount, interestRate, tenure)
	if err != nil {
		return nil, err
	}

	if !eligibility.Approved {
		s.logger.InfoContext(ctx, "Loan denied by policy", "customerID", customerID, "reason", eligibility.Reason)
		return &CreateLoanResult{
			CustomerID:         customerID,
			Approved:           false,
			Message:            fmt.Sprintf("Loan not approved: %s", eligibility.Reason),
			MonthlyInstallment: eligibility.MonthlyInstallment,
		}, nil
	}

	startDate := s.now().Truncate(24 * time.Hour)
	newLoan := &Loan{
		CustomerID:       customerID,
		LoanAmount:       loanAmount,
		Tenure:           tenure,
		InterestRate:     eligibility.CorrectedRate,
		MonthlyRepayment: eligibility.MonthlyInstallment,
		EMIsPaidOnTime:   0,
		Approved:         true,
		StartDate:        startDate,
		EndDate:          startDate.AddDate(0, tenure, 0),
	}

	createdLoan, err := s.repo.CreateLoan(ctx, newLoan)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist approved loan", "customerID", customerID, slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to persist loan: %v", apperrors.ErrInternalServer, err)
	}
	monitoring.RecordLoanCreated()
	s.logger.InfoContext(ctx, "Loan created", "loanID", createdLoan.LoanID, "customerID", customerID, "emi", createdLoan.MonthlyRepayment)

	return &CreateLoanResult{
		LoanID:             &createdLoan.LoanID,
		CustomerID:         customerID,
		Approved:           true,
		Message:            "Loan approved",
		MonthlyInstallment: createdLoan.MonthlyRepayment,
	}, nil
}

func (s *loanServiceImpl) GetLoan(ctx context.Context, loanID int64) (*LoanDetail, error) {
	s.logger.InfoContext(ctx, "Getting loan details", "loanID", loanID)
	l, err := s.repo.GetByLoanID(ctx, loanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: loan with ID %d not found", apperrors.ErrNotFound, loanID)
		}
		s.logger.ErrorContext(ctx, "Failed to get loan", "loanID", loanID, slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to get loan %d: %v", apperrors.ErrInternalServer, loanID, err)
	}

	cust, err := s.customerService.GetCustomer(ctx, l.CustomerID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to get owning customer for loan", "loanID", loanID, "customerID", l.CustomerID, slog.Any("error", err))
		return nil, fmt.Errorf("failed to get customer %d for loan %d: %w", l.CustomerID, loanID, err)
	}

	return &LoanDetail{Loan: *l, Customer: *cust}, nil
}

func (s *loanServiceImpl) ListCustomerLoans(ctx context.Context, customerID int64) ([]Loan, error) {
	s.logger.InfoContext(ctx, "Listing customer loans", "customerID", customerID)

	if _, err := s.customerService.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	loans, err := s.repo.ListByCustomerID(ctx, customerID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list loans", "customerID", customerID, slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to list loans for customer %d: %v", apperrors.ErrInternalServer, customerID, err)
	}
	return loans, nil
}
