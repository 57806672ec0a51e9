package loan

import (
	"fmt"

	"credit-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

// MonthlyInstallment computes the EMI for a loan via standard compound
// amortization: r = annual/12/100, EMI = P*r*(1+r)^n / ((1+r)^n - 1).
// A zero rate degenerates to straight-line principal/tenure. The result is
// rounded to 2 decimal places, half-up.
func MonthlyInstallment(principal, annualRatePercent float64, tenureMonths int) (float64, error) {
	if principal <= 0 {
		return 0, fmt.Errorf("%w: principal must be greater than zero", apperrors.ErrInvalidTerms)
	}
	if annualRatePercent < 0 {
		return 0, fmt.Errorf("%w: interest rate cannot be negative", apperrors.ErrInvalidTerms)
	}
	if tenureMonths <= 0 {
		return 0, fmt.Errorf("%w: tenure must be a positive number of months", apperrors.ErrInvalidTerms)
	}

	p := decimal.NewFromFloat(principal)
	n := decimal.NewFromInt(int64(tenureMonths))

	monthlyRate := decimal.NewFromFloat(annualRatePercent).Div(decimal.NewFromInt(1200))
	if monthlyRate.IsZero() {
		emi, _ := p.DivRound(n, 2).Float64()
		return emi, nil
	}

	one := decimal.NewFromInt(1)
	factor := one.Add(monthlyRate).Pow(n)
	emi := p.Mul(monthlyRate).Mul(factor).Div(factor.Sub(one))

	result, _ := emi.Round(2).Float64()
	return result, nil
}
