package customer

import "context"

type CustomerRepository interface {
	Create(ctx context.Context, cust *Customer) error

	GetByCustomerID(ctx context.Context, customerID int64) (*Customer, error)

	NextCustomerID(ctx context.Context) (int64, error)

	// ReconcileCurrentDebt rewrites every customer's current_debt from the sum
	// of their active loan principals. Returns the number of rows updated.
	ReconcileCurrentDebt(ctx context.Context) (int64, error)
}
