package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
)

type CustomerRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ customer.CustomerRepository = (*CustomerRepository)(nil)

func NewCustomerRepository(db DBPool, logger *slog.Logger) *CustomerRepository {
	if db == nil {
		panic("DBPool cannot be nil for CustomerRepository")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerRepository, using default stderr handler")
	}
	return &CustomerRepository{
		db:     db,
		logger: logger.With("component", "CustomerRepository"),
	}
}

func (r *CustomerRepository) Create(ctx context.Context, cust *customer.Customer) error {
	if cust == nil {
		return fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}

	r.logger.InfoContext(ctx, "Attempting to insert new customer", slog.Int64("customerID", cust.CustomerID))

	query := `
        INSERT INTO customers (customer_id, first_name, last_name, age, phone_number, monthly_salary, approved_limit, current_debt, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		cust.CustomerID,
		cust.FirstName,
		cust.LastName,
		cust.Age,
		cust.PhoneNumber,
		cust.MonthlySalary,
		cust.ApprovedLimit,
		cust.CurrentDebt,
	).Scan(
		&cust.ID,
		&cust.CreatedAt,
		&cust.UpdatedAt,
	)

	if err != nil {
		translatedErr := translateDBError(err, r.logger)
		if errors.Is(translatedErr, apperrors.ErrAlreadyExists) {
			r.logger.WarnContext(ctx, "Failed to insert customer due to unique constraint violation", slog.Int64("customerID", cust.CustomerID))
			return translatedErr
		}
		r.logger.ErrorContext(ctx, "Failed to insert customer", slog.Any("error", err))
		return fmt.Errorf("%w: failed to insert customer: %w", apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Customer inserted successfully", slog.Int64("customerID", cust.CustomerID))
	return nil
}

func (r *CustomerRepository) GetByCustomerID(ctx context.Context, customerID int64) (*customer.Customer, error) {
	query := `
        SELECT id, customer_id, first_name, last_name, age, phone_number, monthly_salary, approved_limit, current_debt, created_at, updated_at
        FROM customers
        WHERE customer_id = $1`

	status := "success"
	startTime := time.Now()

	var cust customer.Customer
	err := r.db.QueryRow(ctx, query, customerID).Scan(
		&cust.ID, &cust.CustomerID, &cust.FirstName, &cust.LastName, &cust.Age,
		&cust.PhoneNumber, &cust.MonthlySalary, &cust.ApprovedLimit, &cust.CurrentDebt,
		&cust.CreatedAt, &cust.UpdatedAt,
	)

	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetCustomerByCustomerID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Customer not found", "customer_id", customerID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get customer by ID", "customer_id", customerID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return &cust, nil
}

func (r *CustomerRepository) NextCustomerID(ctx context.Context) (int64, error) {
	var next int64
	query := `SELECT COALESCE(MAX(customer_id), 0) + 1 FROM customers`
	if err := r.db.QueryRow(ctx, query).Scan(&next); err != nil {
		r.logger.ErrorContext(ctx, "Failed to allocate next customer ID", slog.Any("error", err))
		return 0, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return next, nil
}

// InsertIgnore inserts a customer row if the external identifier is not
// already present. Returns true when a row was actually created.
func (r *CustomerRepository) InsertIgnore(ctx context.Context, cust *customer.Customer) (bool, error) {
	if cust == nil {
		return false, fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}

	query := `
        INSERT INTO customers (customer_id, first_name, last_name, age, phone_number, monthly_salary, approved_limit, current_debt, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
        ON CONFLICT (customer_id) DO NOTHING`

	cmdTag, err := r.db.Exec(ctx, query,
		cust.CustomerID,
		cust.FirstName,
		cust.LastName,
		cust.Age,
		cust.PhoneNumber,
		cust.MonthlySalary,
		cust.ApprovedLimit,
		cust.CurrentDebt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to upsert customer", slog.Int64("customerID", cust.CustomerID), slog.Any("error", err))
		return false, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return cmdTag.RowsAffected() == 1, nil
}

func (r *CustomerRepository) ListCustomerIDs(ctx context.Context) ([]int64, error) {
	logCtx := r.logger.With(slog.String("operation", "ListCustomerIDs"))
	logCtx.DebugContext(ctx, "Attempting to list all customer IDs")

	query := `SELECT customer_id FROM customers ORDER BY customer_id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to query customer IDs", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to query customer IDs: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			logCtx.ErrorContext(ctx, "Failed to scan customer ID row", slog.Any("error", err))
			return nil, fmt.Errorf("%w: failed scanning customer ID: %w", apperrors.ErrDatabase, err)
		}
		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		logCtx.ErrorContext(ctx, "Error iterating customer ID rows", slog.Any("error", err))
		return nil, fmt.Errorf("%w: error iterating customer IDs: %w", apperrors.ErrDatabase, err)
	}

	logCtx.DebugContext(ctx, "Finished listing customer IDs", slog.Int("count", len(ids)))
	return ids, nil
}

// ReconcileCurrentDebt rewrites current_debt from the sum of active loan
// principals for every customer, including zeroing customers with no active
// loans.
func (r *CustomerRepository) ReconcileCurrentDebt(ctx context.Context) (int64, error) {
	query := `
        UPDATE customers c
        SET current_debt = COALESCE((
                SELECT SUM(l.loan_amount)
                FROM loans l
                WHERE l.customer_id = c.customer_id AND l.end_date >= NOW()
            ), 0),
            updated_at = NOW()`

	status := "success"
	startTime := time.Now()

	cmdTag, err := r.db.Exec(ctx, query)
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("ReconcileCurrentDebt", status, time.Since(startTime))

	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to reconcile current debt", slog.Any("error", err))
		return 0, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Current debt reconciled", slog.Int64("rows", cmdTag.RowsAffected()))
	return cmdTag.RowsAffected(), nil
}
