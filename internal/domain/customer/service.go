package customer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"credit-engine/internal/event"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"
)

type RegisterInput struct {
	FirstName     string
	LastName      string
	Age           *int
	MonthlyIncome float64
	PhoneNumber   string
}

type CustomerService interface {
	Register(ctx context.Context, input RegisterInput) (*Customer, error)
	GetCustomer(ctx context.Context, customerID int64) (*Customer, error)
}

var _ CustomerService = (*customerService)(nil)

type customerService struct {
	repo          CustomerRepository
	pub           event.EventPublisher
	limitMultiple int
	logger        *slog.Logger
}

func NewCustomerService(repo CustomerRepository, pub event.EventPublisher, limitMultiple int, logger *slog.Logger) CustomerService {
	if repo == nil {
		panic("customer repository cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerService, using default stderr handler")
	}
	if limitMultiple <= 0 {
		limitMultiple = 36
	}

	return &customerService{
		repo:          repo,
		pub:           pub,
		limitMultiple: limitMultiple,
		logger:        logger.With(slog.String("component", "customerService")),
	}
}

func (s *customerService) Register(ctx context.Context, input RegisterInput) (*Customer, error) {
	s.logger.InfoContext(ctx, "Attempting to register new customer")

	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	if firstName == "" {
		s.logger.WarnContext(ctx, "Validation failed: first name is empty")
		return nil, apperrors.NewValidationError("first_name", "first name cannot be empty")
	}
	if lastName == "" {
		s.logger.WarnContext(ctx, "Validation failed: last name is empty")
		return nil, apperrors.NewValidationError("last_name", "last name cannot be empty")
	}
	if input.MonthlyIncome <= 0 {
		s.logger.WarnContext(ctx, "Validation failed: monthly income is not positive", slog.Float64("monthly_income", input.MonthlyIncome))
		return nil, apperrors.NewValidationError("monthly_income", "monthly income must be greater than zero")
	}
	if input.Age != nil && *input.Age < 0 {
		s.logger.WarnContext(ctx, "Validation failed: age is negative")
		return nil, apperrors.NewValidationError("age", "age cannot be negative")
	}

	customerID, err := s.repo.NextCustomerID(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to allocate customer identifier", slog.Any("error", err))
		return nil, fmt.Errorf("failed to allocate customer identifier: %w", err)
	}

	cust := &Customer{
		CustomerID:    customerID,
		FirstName:     firstName,
		LastName:      lastName,
		Age:           input.Age,
		PhoneNumber:   strings.TrimSpace(input.PhoneNumber),
		MonthlySalary: input.MonthlyIncome,
		ApprovedLimit: ApprovedLimitFor(input.MonthlyIncome, s.limitMultiple),
		CurrentDebt:   0,
	}

	if err := s.repo.Create(ctx, cust); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			s.logger.WarnContext(ctx, "Customer identifier collision on register", slog.Int64("customerID", customerID))
			return nil, fmt.Errorf("%w: customer %d already exists", apperrors.ErrConflict, customerID)
		}
		s.logger.ErrorContext(ctx, "Failed to persist customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to persist customer: %w", err)
	}
	monitoring.RecordCustomerRegistered()
	s.logger.InfoContext(ctx, "Customer registered", slog.Int64("customerID", cust.CustomerID), slog.Float64("approvedLimit", cust.ApprovedLimit))

	s.publishRegisteredEvent(ctx, cust)

	return cust, nil
}

func (s *customerService) GetCustomer(ctx context.Context, customerID int64) (*Customer, error) {
	if customerID <= 0 {
		return nil, fmt.Errorf("%w: customer ID must be positive", apperrors.ErrInvalidArgument)
	}

	cust, err := s.repo.GetByCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "Customer not found", slog.Int64("customerID", customerID))
			return nil, fmt.Errorf("%w: customer with ID %d not found", apperrors.ErrNotFound, customerID)
		}
		s.logger.ErrorContext(ctx, "Failed to get customer", slog.Int64("customerID", customerID), slog.Any("error", err))
		return nil, fmt.Errorf("failed to get customer %d: %w", customerID, err)
	}
	return cust, nil
}

func (s *customerService) publishRegisteredEvent(ctx context.Context, cust *Customer) {
	if s.pub == nil {
		return
	}
	evt := event.CustomerRegisteredEvent{
		Timestamp: time.Now(),
		Payload: event.CustomerEventPayload{
			CustomerID:    cust.CustomerID,
			FirstName:     cust.FirstName,
			LastName:      cust.LastName,
			Age:           cust.Age,
			PhoneNumber:   cust.PhoneNumber,
			MonthlySalary: cust.MonthlySalary,
			ApprovedLimit: cust.ApprovedLimit,
		},
	}
	if err := s.pub.PublishCustomerRegistered(ctx, evt); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish customer registered event", slog.Any("error", err))
	}
}
