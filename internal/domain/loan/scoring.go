package loan

import (
	"math"
	"time"
)

// ScoringPolicy is the weight table behind the credit score. Weights are
// configuration, loaded via viper, not physics; only the band boundaries
// below are contractual.
type ScoringPolicy struct {
	// OnTimeWeight scales the fraction of past EMIs paid on time.
	OnTimeWeight float64
	// VolumeWeight scales how far total approved volume sits below the limit.
	VolumeWeight float64
	// HistoryWeight is awarded per prior loan, up to HistoryCap loans.
	HistoryWeight float64
	HistoryCap    int
	// CurrentYearPenalty is subtracted per loan taken this calendar year.
	CurrentYearPenalty float64

	// EMISalaryShare caps total active EMIs as a fraction of monthly income.
	EMISalaryShare float64

	ApproveThreshold    float64
	MediumBandThreshold float64
	MediumBandFloorRate float64
	LowBandThreshold    float64
	LowBandFloorRate    float64
}

func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		OnTimeWeight:        55,
		VolumeWeight:        25,
		HistoryWeight:       4,
		HistoryCap:          5,
		CurrentYearPenalty:  10,
		EMISalaryShare:      0.5,
		ApproveThreshold:    50,
		MediumBandThreshold: 30,
		MediumBandFloorRate: 12,
		LowBandThreshold:    10,
		LowBandFloorRate:    16,
	}
}

// CreditScore computes the rule-weighted score in [0, 100] for a customer's
// loan portfolio. The sum of active principals exceeding the approved limit
// is a hard fail regardless of history.
func CreditScore(portfolio []Loan, approvedLimit float64, now time.Time, p ScoringPolicy) int {
	var activePrincipal float64
	for i := range portfolio {
		if portfolio[i].ActiveAt(now) {
			activePrincipal += portfolio[i].LoanAmount
		}
	}
	if activePrincipal > approvedLimit {
		return 0
	}

	onTime := onTimeRatio(portfolio)

	var totalVolume float64
	currentYearLoans := 0
	for i := range portfolio {
		totalVolume += portfolio[i].LoanAmount
		if portfolio[i].StartDate.Year() == now.Year() {
			currentYearLoans++
		}
	}

	volumeRatio := 0.0
	if approvedLimit > 0 {
		volumeRatio = math.Min(totalVolume/approvedLimit, 1)
	}

	history := len(portfolio)
	if history > p.HistoryCap {
		history = p.HistoryCap
	}

	score := onTime*p.OnTimeWeight +
		(1-volumeRatio)*p.VolumeWeight +
		float64(history)*p.HistoryWeight -
		float64(currentYearLoans)*p.CurrentYearPenalty

	return clampScore(score)
}

// onTimeRatio is the fraction of scheduled installments across the portfolio
// that were paid on time. A customer with no history scores a full ratio.
func onTimeRatio(portfolio []Loan) float64 {
	var paid, due int
	for i := range portfolio {
		paid += portfolio[i].EMIsPaidOnTime
		due += portfolio[i].Tenure
	}
	if due == 0 {
		return 1
	}
	ratio := float64(paid) / float64(due)
	if ratio > 1 {
		return 1
	}
	return ratio
}

func clampScore(score float64) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(math.Round(score))
}

// Decide maps a score and requested annual rate onto the policy bands.
// Thresholds are inclusive: a score exactly at the approval threshold keeps
// the requested rate, and a score exactly at a band threshold belongs to
// that band's floor. Scores below the bottom threshold deny.
func (p ScoringPolicy) Decide(score int, requestedRate float64) (approved bool, correctedRate float64, reason string) {
	s := float64(score)
	switch {
	case s >= p.ApproveThreshold:
		return true, requestedRate, ""
	case s >= p.MediumBandThreshold:
		return true, math.Max(requestedRate, p.MediumBandFloorRate), ""
	case s >= p.LowBandThreshold:
		return true, math.Max(requestedRate, p.LowBandFloorRate), ""
	default:
		return false, requestedRate, "credit score too low"
	}
}
