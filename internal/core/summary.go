package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// DayTotal is the sum of expenses recorded on one day.
type DayTotal struct {
	Date     Date
	Expenses decimal.Decimal
}

// DaySpending is a DayTotal measured against the month's daily budget.
type DaySpending struct {
	Date     Date
	Expenses decimal.Decimal
	Exceeded bool // expenses above a positive daily budget
}

// MonthSpending is a compact spending report for a specific year+month.
type MonthSpending struct {
	Year     int
	Month    int // 1-12
	Budget   *MonthlyBudget
	Expenses decimal.Decimal
	Income   decimal.Decimal
	Days     []DaySpending
}

const (
	AlertBudgetExhausted     AlertKind = "budget_exhausted"
	AlertDailyBudgetExceeded AlertKind = "daily_budget_exceeded"
)

type AlertKind string

// BudgetAlert records that a budget crossed one of its limits on a day.
// At most one alert exists per budget, kind and date.
type BudgetAlert struct {
	ID        string
	ClientID  string
	BudgetID  string
	Kind      AlertKind
	Date      Date
	Amount    decimal.Decimal
	CreatedAt time.Time
}
