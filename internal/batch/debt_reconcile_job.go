package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"credit-engine/internal/domain/customer"
)

// DebtReconcileJob rewrites every customer's current_debt from the sum of
// their active loan balances. Ingestion inserts historical loans without
// touching current_debt, so the nightly run keeps the column honest.
type DebtReconcileJob struct {
	customerRepo customer.CustomerRepository
	logger       *slog.Logger
}

func NewDebtReconcileJob(repo customer.CustomerRepository, logger *slog.Logger) *DebtReconcileJob {
	if repo == nil || logger == nil {
		panic("DebtReconcileJob dependencies cannot be nil")
	}
	return &DebtReconcileJob{
		customerRepo: repo,
		logger:       logger.With("job", "DebtReconcile"),
	}
}

func (j *DebtReconcileJob) Run(ctx context.Context) error {
	startTime := time.Now()
	j.logger.InfoContext(ctx, "Starting current debt reconciliation job.")

	updated, err := j.customerRepo.ReconcileCurrentDebt(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Debt reconciliation failed.", slog.Any("error", err))
		return fmt.Errorf("reconcile current debt: %w", err)
	}

	j.logger.InfoContext(ctx, "Current debt reconciliation job finished.",
		slog.Int64("customers_updated", updated),
		slog.Duration("duration", time.Since(startTime)),
	)
	return nil
}
