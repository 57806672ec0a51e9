package loan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var scoringNow = time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

func pastLoan(amount float64, tenure, paidOnTime, startYear int) Loan {
	start := time.Date(startYear, time.January, 10, 0, 0, 0, 0, time.UTC)
	return Loan{
		LoanAmount:     amount,
		Tenure:         tenure,
		EMIsPaidOnTime: paidOnTime,
		StartDate:      start,
		EndDate:        start.AddDate(0, tenure, 0),
	}
}

func TestCreditScore(t *testing.T) {
	policy := DefaultScoringPolicy()

	t.Run("should give a fresh customer a high score", func(t *testing.T) {
		score := CreditScore(nil, 1_800_000, scoringNow, policy)
		assert.Equal(t, 80, score)
	})

	t.Run("should hard fail when active principal exceeds the approved limit", func(t *testing.T) {
		active := pastLoan(2_000_000, 120, 10, 2024)
		score := CreditScore([]Loan{active}, 1_800_000, scoringNow, policy)
		assert.Equal(t, 0, score)
	})

	t.Run("should reward a clean repayment history", func(t *testing.T) {
		var portfolio []Loan
		for i := 0; i < 5; i++ {
			portfolio = append(portfolio, pastLoan(40_000, 12, 12, 2019+i%2))
		}
		// onTime 55 + volume (1-0.2)*25 + history 5*4, no current-year loans
		score := CreditScore(portfolio, 1_000_000, scoringNow, policy)
		assert.Equal(t, 95, score)
	})

	t.Run("should penalize loans taken in the current year", func(t *testing.T) {
		portfolio := []Loan{
			pastLoan(40_000, 12, 12, 2020),
			pastLoan(40_000, 12, 12, 2020),
			pastLoan(40_000, 12, 12, 2020),
			pastLoan(40_000, 3, 3, 2025),
			pastLoan(40_000, 3, 3, 2025),
		}
		score := CreditScore(portfolio, 1_000_000, scoringNow, policy)
		assert.Equal(t, 75, score)
	})

	t.Run("should punish missed installments", func(t *testing.T) {
		portfolio := []Loan{pastLoan(40_000, 10, 2, 2022)}
		// onTime 0.2*55 + volume (1-0.04)*25 + history 4
		score := CreditScore(portfolio, 1_000_000, scoringNow, policy)
		assert.Equal(t, 39, score)
	})

	t.Run("should cap the history bonus", func(t *testing.T) {
		var small, large []Loan
		for i := 0; i < 5; i++ {
			small = append(small, pastLoan(10_000, 12, 12, 2018))
		}
		for i := 0; i < 8; i++ {
			large = append(large, pastLoan(10_000, 12, 12, 2018))
		}
		capped := CreditScore(small, 10_000_000, scoringNow, policy)
		beyond := CreditScore(large, 10_000_000, scoringNow, policy)
		assert.GreaterOrEqual(t, capped, beyond)
	})

	t.Run("should clamp at zero instead of going negative", func(t *testing.T) {
		var portfolio []Loan
		for i := 0; i < 9; i++ {
			portfolio = append(portfolio, pastLoan(100_000, 12, 0, 2025))
		}
		score := CreditScore(portfolio, 1_000_000, scoringNow, policy)
		assert.Equal(t, 0, score)
	})
}

func TestDecide(t *testing.T) {
	policy := DefaultScoringPolicy()

	t.Run("should approve at the requested rate from the top threshold up", func(t *testing.T) {
		approved, rate, reason := policy.Decide(80, 9.5)
		assert.True(t, approved)
		assert.Equal(t, 9.5, rate)
		assert.Empty(t, reason)

		// A score sitting exactly on the approval threshold keeps its rate.
		approved, rate, _ = policy.Decide(50, 9.5)
		assert.True(t, approved)
		assert.Equal(t, 9.5, rate)
	})

	t.Run("should correct the rate up to 12 percent in the middle band", func(t *testing.T) {
		approved, rate, _ := policy.Decide(49, 10)
		assert.True(t, approved)
		assert.Equal(t, 12.0, rate)

		// The band threshold itself belongs to the 12 percent floor.
		approved, rate, _ = policy.Decide(30, 10)
		assert.True(t, approved)
		assert.Equal(t, 12.0, rate)
	})

	t.Run("should keep a requested rate already above the band floor", func(t *testing.T) {
		approved, rate, _ := policy.Decide(40, 14)
		assert.True(t, approved)
		assert.Equal(t, 14.0, rate)
	})

	t.Run("should correct the rate up to 16 percent in the low band", func(t *testing.T) {
		approved, rate, _ := policy.Decide(29, 10)
		assert.True(t, approved)
		assert.Equal(t, 16.0, rate)

		approved, rate, _ = policy.Decide(10, 10)
		assert.True(t, approved)
		assert.Equal(t, 16.0, rate)
	})

	t.Run("should deny below the bottom threshold", func(t *testing.T) {
		approved, _, reason := policy.Decide(9, 10)
		assert.False(t, approved)
		assert.NotEmpty(t, reason)

		approved, _, _ = policy.Decide(0, 10)
		assert.False(t, approved)
	})
}
