package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credit-engine/internal/domain/loan"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type LoanRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ loan.Repository = (*LoanRepository)(nil)

func NewLoanRepository(db DBPool, logger *slog.Logger) *LoanRepository {
	return &LoanRepository{db: db, logger: logger.With("component", "LoanRepository")}
}

const loanColumns = `id, loan_id, customer_id, loan_amount, tenure, interest_rate, monthly_repayment, emis_paid_on_time, approved, start_date, end_date, created_at, updated_at`

func scanLoan(row pgx.Row, l *loan.Loan) error {
	return row.Scan(
		&l.ID, &l.LoanID, &l.CustomerID, &l.LoanAmount, &l.Tenure,
		&l.InterestRate, &l.MonthlyRepayment, &l.EMIsPaidOnTime, &l.Approved,
		&l.StartDate, &l.EndDate, &l.CreatedAt, &l.UpdatedAt,
	)
}

// createLoanMaxAttempts bounds retries when concurrent inserts race for the
// same loan identifier.
const createLoanMaxAttempts = 3

// CreateLoan allocates the next loan identifier, inserts the loan, and bumps
// the owning customer's current debt in one transaction. The identifier is
// computed inside the INSERT itself; if two in-flight requests still collide
// on the unique index, the losing insert is retried with a fresh allocation
// so concurrent requests never fail on each other's identifiers.
func (r *LoanRepository) CreateLoan(ctx context.Context, newLoan *loan.Loan) (*loan.Loan, error) {
	var createdLoan *loan.Loan
	var err error
	for attempt := 1; attempt <= createLoanMaxAttempts; attempt++ {
		createdLoan, err = r.insertLoanTx(ctx, newLoan)
		if err == nil {
			return createdLoan, nil
		}
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
			return nil, err
		}
		r.logger.WarnContext(ctx, "Loan identifier collision, retrying insert",
			slog.Int("attempt", attempt), slog.Int64("customerID", newLoan.CustomerID))
	}
	r.logger.ErrorContext(ctx, "Loan identifier allocation kept colliding",
		slog.Int("attempts", createLoanMaxAttempts), slog.Int64("customerID", newLoan.CustomerID))
	return nil, err
}

func (r *LoanRepository) insertLoanTx(ctx context.Context, newLoan *loan.Loan) (*loan.Loan, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.logger.ErrorContext(ctx, "Failed to rollback transaction", "error", rbErr)
		}
	}()

	loanSQL := `
        INSERT INTO loans (loan_id, customer_id, loan_amount, tenure, interest_rate, monthly_repayment, emis_paid_on_time, approved, start_date, end_date, created_at, updated_at)
        VALUES ((SELECT COALESCE(MAX(loan_id), 0) + 1 FROM loans), $1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
        RETURNING ` + loanColumns

	var createdLoan loan.Loan
	err = scanLoan(tx.QueryRow(ctx, loanSQL,
		newLoan.CustomerID, newLoan.LoanAmount, newLoan.Tenure,
		newLoan.InterestRate, newLoan.MonthlyRepayment, newLoan.EMIsPaidOnTime,
		newLoan.Approved, newLoan.StartDate, newLoan.EndDate,
	), &createdLoan)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert loan", "error", err)
		return nil, fmt.Errorf("%w: failed to insert loan: %w", apperrors.ErrDatabase, err)
	}
	r.logger.InfoContext(ctx, "Loan created in DB", "loan_id", createdLoan.LoanID)

	updateDebtSQL := `
        UPDATE customers
        SET current_debt = current_debt + $1, updated_at = NOW()
        WHERE customer_id = $2`

	cmdTag, err := tx.Exec(ctx, updateDebtSQL, createdLoan.LoanAmount, createdLoan.CustomerID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update customer current debt", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to update customer debt: %w", apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.Error("Failed to link loan to customer: customer not found", slog.Int64("customerID", createdLoan.CustomerID))
		return nil, fmt.Errorf("%w: customer %d not found for loan", apperrors.ErrConflict, createdLoan.CustomerID)
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return &createdLoan, nil
}

func (r *LoanRepository) GetByLoanID(ctx context.Context, loanID int64) (*loan.Loan, error) {
	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE loan_id = $1`

	status := "success"
	startTime := time.Now()

	var l loan.Loan
	err := scanLoan(r.db.QueryRow(ctx, query, loanID), &l)

	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetLoanByLoanID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found", "loan_id", loanID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by ID", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return &l, nil
}

func (r *LoanRepository) ListByCustomerID(ctx context.Context, customerID int64) ([]loan.Loan, error) {
	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE customer_id = $1
        ORDER BY loan_id ASC`

	rows, err := r.db.Query(ctx, query, customerID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query loans by customer", "customer_id", customerID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	loans := make([]loan.Loan, 0)
	for rows.Next() {
		var l loan.Loan
		if err := scanLoan(rows, &l); err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan loan row", "customer_id", customerID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		loans = append(loans, l)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating loan rows", "customer_id", customerID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return loans, nil
}

// InsertIgnore inserts a loan row if the external identifier is not already
// present. Returns true when a row was actually created.
func (r *LoanRepository) InsertIgnore(ctx context.Context, l *loan.Loan) (bool, error) {
	if l == nil {
		return false, fmt.Errorf("%w: loan cannot be nil", apperrors.ErrInvalidArgument)
	}

	query := `
        INSERT INTO loans (loan_id, customer_id, loan_amount, tenure, interest_rate, monthly_repayment, emis_paid_on_time, approved, start_date, end_date, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
        ON CONFLICT (loan_id) DO NOTHING`

	cmdTag, err := r.db.Exec(ctx, query,
		l.LoanID, l.CustomerID, l.LoanAmount, l.Tenure,
		l.InterestRate, l.MonthlyRepayment, l.EMIsPaidOnTime,
		l.Approved, l.StartDate, l.EndDate,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to upsert loan", slog.Int64("loanID", l.LoanID), slog.Any("error", err))
		return false, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return cmdTag.RowsAffected() == 1, nil
}
