package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency values carry two fractional digits.
const currencyPlaces = 2

var hundred = decimal.NewFromInt(100)

// BudgetPolicy is either a fixed amount or a percentage of the monthly salary.
type BudgetPolicy struct {
	Amount       decimal.Decimal
	IsPercentage bool
}

func FixedBudget(amount decimal.Decimal) BudgetPolicy {
	return BudgetPolicy{Amount: amount}
}

func PercentageBudget(pct decimal.Decimal) BudgetPolicy {
	return BudgetPolicy{Amount: pct, IsPercentage: true}
}

// Validate rejects negative amounts and percentages above 100.
func (p BudgetPolicy) Validate() error {
	if p.Amount.IsNegative() {
		return ErrInvalidRange
	}
	if p.IsPercentage && p.Amount.GreaterThan(hundred) {
		return ErrInvalidRange
	}
	return nil
}

// Effective resolves the policy against salary.
func (p BudgetPolicy) Effective(salary decimal.Decimal) (decimal.Decimal, error) {
	return EffectiveAmount(salary, p.Amount, p.IsPercentage)
}

// DaysInMonth returns the number of calendar days in month of year.
func DaysInMonth(year, month int) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// EffectiveAmount returns budgetAmount for a fixed budget, or
// salary * budgetAmount / 100 for a percentage budget.
func EffectiveAmount(salary, budgetAmount decimal.Decimal, isPercentage bool) (decimal.Decimal, error) {
	if !isPercentage {
		return budgetAmount.Round(currencyPlaces), nil
	}
	if budgetAmount.IsNegative() || budgetAmount.GreaterThan(hundred) {
		return decimal.Zero, ErrInvalidRange
	}
	return salary.Mul(budgetAmount).Div(hundred).Round(currencyPlaces), nil
}

// DailyBudget spreads effective evenly over the days of the month.
func DailyBudget(effective decimal.Decimal, daysInMonth int) decimal.Decimal {
	if daysInMonth <= 0 {
		return decimal.Zero
	}
	return effective.Div(decimal.NewFromInt(int64(daysInMonth))).Round(currencyPlaces)
}

// RoundCurrency rounds d to two fractional digits.
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(currencyPlaces)
}
