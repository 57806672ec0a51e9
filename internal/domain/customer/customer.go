package customer

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// lakhUnit is the rounding unit for approved credit limits.
const lakhUnit = 100_000

type Customer struct {
	ID            int64
	CustomerID    int64
	FirstName     string
	LastName      string
	Age           *int
	PhoneNumber   string
	MonthlySalary float64
	ApprovedLimit float64
	CurrentDebt   float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (c *Customer) FullName() string {
	return fmt.Sprintf("%s %s", c.FirstName, c.LastName)
}

// ApprovedLimitFor computes the initial credit limit as multiple x monthly
// income, rounded to the nearest lakh. Ties round half away from zero, which
// for positive incomes is the same as half-up.
func ApprovedLimitFor(monthlyIncome float64, multiple int) float64 {
	raw := decimal.NewFromFloat(monthlyIncome).Mul(decimal.NewFromInt(int64(multiple)))
	units := raw.Div(decimal.NewFromInt(lakhUnit)).Round(0)
	limit, _ := units.Mul(decimal.NewFromInt(lakhUnit)).Float64()
	return limit
}
