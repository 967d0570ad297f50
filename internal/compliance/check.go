// Package compliance enforces the statutory monthly ceiling on cash movements
// per counterparty and prices the penalty owed when it is exceeded.
package compliance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/concreta/concreta/internal/shared"
)

// Bracket is one stamp duty tier. A zero UpTo means unbounded.
type Bracket struct {
	UpTo    decimal.Decimal `json:"up_to"`
	RatePct decimal.Decimal `json:"rate_pct"`
	Minimum decimal.Decimal `json:"minimum"`
}

// StampSchedule prices stamp duty on a cash amount. Brackets are ordered by UpTo.
type StampSchedule []Bracket

// FlatStampSchedule is a single unbounded bracket at ratePct with no minimum.
func FlatStampSchedule(ratePct decimal.Decimal) StampSchedule {
	return StampSchedule{{RatePct: ratePct}}
}

// Duty returns the stamp duty owed on amount.
func (s StampSchedule) Duty(amount decimal.Decimal) decimal.Decimal {
	for _, b := range s {
		if !b.UpTo.IsZero() && amount.GreaterThan(b.UpTo) {
			continue
		}
		duty := shared.Round2(shared.Percent(amount, b.RatePct))
		if duty.LessThan(b.Minimum) {
			duty = b.Minimum
		}
		return duty
	}
	return decimal.Zero
}

// Policy is the set of thresholds Check applies.
type Policy struct {
	MonthlyCeiling decimal.Decimal
	PenaltyRatePct decimal.Decimal
	Stamp          StampSchedule
}

// PolicyFromRules builds the policy from the engine rules.
func PolicyFromRules(r shared.Rules) Policy {
	return Policy{
		MonthlyCeiling: r.CashMonthlyCeiling,
		PenaltyRatePct: r.CashPenaltyRatePct,
		Stamp:          FlatStampSchedule(r.StampDutyRatePct),
	}
}

// Result is the outcome of a cash compliance check.
type Result struct {
	PriorTotal        decimal.Decimal `json:"prior_total"`
	Amount            decimal.Decimal `json:"amount"`
	NewTotal          decimal.Decimal `json:"new_total"`
	Ceiling           decimal.Decimal `json:"ceiling"`
	Excess            decimal.Decimal `json:"excess"`
	Penalty           decimal.Decimal `json:"penalty"`
	StampDuty         decimal.Decimal `json:"stamp_duty"`
	TotalPenaltyCost  decimal.Decimal `json:"total_penalty_cost"`
	PenaltyApplicable bool            `json:"penalty_applicable"`
}

// Check evaluates a new cash amount against the running monthly total. It has
// no side effects; interactive payments and the reconciliation batch share it.
func Check(prior, amount decimal.Decimal, p Policy) Result {
	res := Result{
		PriorTotal: prior,
		Amount:     amount,
		NewTotal:   prior.Add(amount),
		Ceiling:    p.MonthlyCeiling,
	}
	if res.NewTotal.LessThanOrEqual(p.MonthlyCeiling) {
		return res
	}
	res.Excess = res.NewTotal.Sub(p.MonthlyCeiling)
	res.Penalty = shared.Round2(shared.Percent(res.Excess, p.PenaltyRatePct))
	res.StampDuty = p.Stamp.Duty(amount)
	res.TotalPenaltyCost = res.Penalty.Add(res.StampDuty)
	res.PenaltyApplicable = true
	return res
}

// MonthWindow returns the UTC calendar month [from, to) containing at.
func MonthWindow(at time.Time) (time.Time, time.Time) {
	at = at.UTC()
	from := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}
