package loan

import "context"

type Repository interface {
	// CreateLoan allocates the loan identifier, inserts the loan row, and
	// bumps the owning customer's current debt in a single transaction. The
	// returned loan carries the allocated identifier.
	CreateLoan(ctx context.Context, newLoan *Loan) (createdLoan *Loan, err error)

	GetByLoanID(ctx context.Context, loanID int64) (*Loan, error)

	ListByCustomerID(ctx context.Context, customerID int64) ([]Loan, error)
}
