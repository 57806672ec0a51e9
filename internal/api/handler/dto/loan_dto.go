package dto

import (
	"fmt"

	"credit-engine/internal/domain/loan"
)

type EligibilityRequest struct {
	CustomerID   int64   `json:"customer_id"`
	LoanAmount   float64 `json:"loan_amount"`
	InterestRate float64 `json:"interest_rate"`
	Tenure       int     `json:"tenure"`
}

func (r *EligibilityRequest) Validate() error {
	if r.CustomerID <= 0 {
		return fmt.Errorf("customer_id must be a positive number")
	}
	if r.LoanAmount <= 0 {
		return fmt.Errorf("loan_amount must be greater than zero")
	}
	if r.InterestRate <= 0 {
		return fmt.Errorf("interest_rate must be greater than zero")
	}
	if r.Tenure <= 0 {
		return fmt.Errorf("tenure must be a positive number of months")
	}
	return nil
}

type EligibilityResponse struct {
	CustomerID            int64   `json:"customer_id"`
	Approval              bool    `json:"approval"`
	InterestRate          float64 `json:"interest_rate"`
	CorrectedInterestRate float64 `json:"corrected_interest_rate"`
	Tenure                int     `json:"tenure"`
	MonthlyInstallment    float64 `json:"monthly_installment"`
	Reason                string  `json:"reason,omitempty"`
}

func NewEligibilityResponse(e *loan.Eligibility) EligibilityResponse {
	if e == nil {
		return EligibilityResponse{}
	}
	return EligibilityResponse{
		CustomerID:            e.CustomerID,
		Approval:              e.Approved,
		InterestRate:          e.RequestedRate,
		CorrectedInterestRate: e.CorrectedRate,
		Tenure:                e.Tenure,
		MonthlyInstallment:    e.MonthlyInstallment,
		Reason:                e.Reason,
	}
}

// CreateLoanResponse carries a denial as a normal payload: loan_id is null
// and message holds the reason.
type CreateLoanResponse struct {
	LoanID             *int64  `json:"loan_id"`
	CustomerID         int64   `json:"customer_id"`
	LoanApproved       bool    `json:"loan_approved"`
	Message            string  `json:"message"`
	MonthlyInstallment float64 `json:"monthly_installment"`
}

func NewCreateLoanResponse(res *loan.CreateLoanResult) CreateLoanResponse {
	if res == nil {
		return CreateLoanResponse{}
	}
	return CreateLoanResponse{
		LoanID:             res.LoanID,
		CustomerID:         res.CustomerID,
		LoanApproved:       res.Approved,
		Message:            res.Message,
		MonthlyInstallment: res.MonthlyInstallment,
	}
}

type LoanDetailResponse struct {
	LoanID             int64           `json:"loan_id"`
	Customer           CustomerSummary `json:"customer"`
	LoanAmount         float64         `json:"loan_amount"`
	LoanApproved       bool            `json:"loan_approved"`
	InterestRate       float64         `json:"interest_rate"`
	MonthlyInstallment float64         `json:"monthly_installment"`
	Tenure             int             `json:"tenure"`
}

func NewLoanDetailResponse(detail *loan.LoanDetail) LoanDetailResponse {
	if detail == nil {
		return LoanDetailResponse{}
	}
	return LoanDetailResponse{
		LoanID:             detail.Loan.LoanID,
		Customer:           NewCustomerSummary(&detail.Customer),
		LoanAmount:         detail.Loan.LoanAmount,
		LoanApproved:       detail.Loan.Approved,
		InterestRate:       detail.Loan.InterestRate,
		MonthlyInstallment: detail.Loan.MonthlyRepayment,
		Tenure:             detail.Loan.Tenure,
	}
}

type CustomerLoanItem struct {
	LoanID             int64   `json:"loan_id"`
	LoanAmount         float64 `json:"loan_amount"`
	InterestRate       float64 `json:"interest_rate"`
	MonthlyInstallment float64 `json:"monthly_installment"`
	RepaymentsLeft     int     `json:"repayments_left"`
}

func NewCustomerLoanItems(loans []loan.Loan) []CustomerLoanItem {
	items := make([]CustomerLoanItem, len(loans))
	for i := range loans {
		items[i] = CustomerLoanItem{
			LoanID:             loans[i].LoanID,
			LoanAmount:         loans[i].LoanAmount,
			InterestRate:       loans[i].InterestRate,
			MonthlyInstallment: loans[i].MonthlyRepayment,
			RepaymentsLeft:     loans[i].RepaymentsLeft(),
		}
	}
	return items
}

type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type TokenRequest struct {
	Username string `json:"username"`
}

type IngestionAck struct {
	Message string `json:"message"`
}
