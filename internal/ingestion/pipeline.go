package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/loan"
	"credit-engine/internal/infrastructure/monitoring"
)

type CustomerStore interface {
	InsertIgnore(ctx context.Context, cust *customer.Customer) (bool, error)
	ListCustomerIDs(ctx context.Context) ([]int64, error)
}

type LoanStore interface {
	InsertIgnore(ctx context.Context, l *loan.Loan) (bool, error)
}

// Result is the batch summary: it is returned from Run (not only logged) so
// idempotence is directly observable.
type Result struct {
	CustomersCreated int `json:"customersCreated"`
	CustomersSkipped int `json:"customersSkipped"`
	LoansCreated     int `json:"loansCreated"`
	LoansSkipped     int `json:"loansSkipped"`
}

type Pipeline struct {
	source    Source
	customers CustomerStore
	loans     LoanStore
	logger    *slog.Logger
}

func NewPipeline(source Source, customers CustomerStore, loans LoanStore, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		source:    source,
		customers: customers,
		loans:     loans,
		logger:    logger.With("component", "IngestionPipeline"),
	}
}

// Run loads customers first, then loans, with per-row skip-and-continue.
// Already-present identifiers and orphaned or malformed rows are counted as
// skips; only an unreadable source fails the batch.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	if err := p.ingestCustomers(ctx, result); err != nil {
		monitoring.RecordIngestionRun("failure")
		return nil, err
	}
	if err := p.ingestLoans(ctx, result); err != nil {
		monitoring.RecordIngestionRun("failure")
		return nil, err
	}

	monitoring.RecordIngestionRun("success")
	p.logger.InfoContext(ctx, "Ingestion completed",
		"customers_created", result.CustomersCreated,
		"customers_skipped", result.CustomersSkipped,
		"loans_created", result.LoansCreated,
		"loans_skipped", result.LoansSkipped,
	)
	return result, nil
}

func (p *Pipeline) ingestCustomers(ctx context.Context, result *Result) error {
	rows, malformed, err := p.source.CustomerRows()
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to read customer source", slog.Any("error", err))
		return fmt.Errorf("failed to read customer source: %w", err)
	}
	result.CustomersSkipped += malformed

	for i := range rows {
		row := &rows[i]
		cust := &customer.Customer{
			CustomerID:    row.CustomerID,
			FirstName:     row.FirstName,
			LastName:      row.LastName,
			Age:           row.Age,
			PhoneNumber:   row.PhoneNumber,
			MonthlySalary: row.MonthlySalary,
			ApprovedLimit: row.ApprovedLimit,
			CurrentDebt:   row.CurrentDebt,
		}

		created, err := p.customers.InsertIgnore(ctx, cust)
		if err != nil {
			result.CustomersSkipped++
			p.logger.WarnContext(ctx, "Skipping customer row after store error", "customer_id", row.CustomerID, slog.Any("error", err))
			continue
		}
		if created {
			result.CustomersCreated++
		} else {
			result.CustomersSkipped++
		}
	}

	monitoring.RecordIngestionRows("customers", "created", result.CustomersCreated)
	monitoring.RecordIngestionRows("customers", "skipped", result.CustomersSkipped)
	p.logger.InfoContext(ctx, "Customers ingested", "created", result.CustomersCreated, "skipped", result.CustomersSkipped)
	return nil
}

func (p *Pipeline) ingestLoans(ctx context.Context, result *Result) error {
	rows, malformed, err := p.source.LoanRows()
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to read loan source", slog.Any("error", err))
		return fmt.Errorf("failed to read loan source: %w", err)
	}
	result.LoansSkipped += malformed

	ids, err := p.customers.ListCustomerIDs(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to list customer IDs for loan ingestion", slog.Any("error", err))
		return fmt.Errorf("failed to list customer IDs: %w", err)
	}
	known := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		known[id] = struct{}{}
	}

	for i := range rows {
		row := &rows[i]

		if _, ok := known[row.CustomerID]; !ok {
			result.LoansSkipped++
			p.logger.WarnContext(ctx, "Skipping loan row referencing unknown customer", "loan_id", row.LoanID, "customer_id", row.CustomerID)
			continue
		}

		l := &loan.Loan{
			LoanID:           row.LoanID,
			CustomerID:       row.CustomerID,
			LoanAmount:       row.LoanAmount,
			Tenure:           row.Tenure,
			InterestRate:     row.InterestRate,
			MonthlyRepayment: row.MonthlyRepayment,
			EMIsPaidOnTime:   row.EMIsPaidOnTime,
			Approved:         true,
			StartDate:        row.StartDate,
			EndDate:          row.EndDate,
		}

		created, err := p.loans.InsertIgnore(ctx, l)
		if err != nil {
			result.LoansSkipped++
			p.logger.WarnContext(ctx, "Skipping loan row after store error", "loan_id", row.LoanID, slog.Any("error", err))
			continue
		}
		if created {
			result.LoansCreated++
		} else {
			result.LoansSkipped++
		}
	}

	monitoring.RecordIngestionRows("loans", "created", result.LoansCreated)
	monitoring.RecordIngestionRows("loans", "skipped", result.LoansSkipped)
	p.logger.InfoContext(ctx, "Loans ingested", "created", result.LoansCreated, "skipped", result.LoansSkipped)
	return nil
}
