package loan

import (
	"time"
)

type Loan struct {
	ID               int64
	LoanID           int64
	CustomerID       int64
	LoanAmount       float64
	Tenure           int
	InterestRate     float64
	MonthlyRepayment float64
	EMIsPaidOnTime   int
	Approved         bool
	StartDate        time.Time
	EndDate          time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ActiveAt reports whether the loan is still running at the given instant.
// A loan stays active through its end date.
func (l *Loan) ActiveAt(t time.Time) bool {
	return !t.After(l.EndDate)
}

// RepaymentsLeft is tenure minus installments paid so far, never negative.
func (l *Loan) RepaymentsLeft() int {
	left := l.Tenure - l.EMIsPaidOnTime
	if left < 0 {
		return 0
	}
	return left
}
