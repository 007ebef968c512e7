package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/repository"
)

// Aggregator answers read-only spending questions over persisted
// transactions.
type Aggregator struct {
	repo repository.Repository
}

func NewAggregator(repo repository.Repository) *Aggregator {
	return &Aggregator{repo: repo}
}

// SumExpensesByDate totals the client's expenses on date.
func (a *Aggregator) SumExpensesByDate(ctx context.Context, clientID string, date core.Date) (decimal.Decimal, error) {
	if err := date.Validate(); err != nil {
		return decimal.Zero, err
	}
	return a.repo.SumAmounts(ctx, clientID, core.Expense, date, date)
}

// SumExpensesByMonth totals the client's expenses from the first to the
// last day of the month.
func (a *Aggregator) SumExpensesByMonth(ctx context.Context, clientID string, year, month int) (decimal.Decimal, error) {
	if err := core.ValidateYearMonth(year, month); err != nil {
		return decimal.Zero, err
	}
	first, last := core.MonthRange(year, month)
	return a.repo.SumAmounts(ctx, clientID, core.Expense, first, last)
}

// MonthSpending reports a month's expenses day by day against its budget.
// It never creates a budget; Budget is nil when the month has none.
func (a *Aggregator) MonthSpending(ctx context.Context, clientID string, year, month int) (core.MonthSpending, error) {
	if err := core.ValidateYearMonth(year, month); err != nil {
		return core.MonthSpending{}, err
	}
	report := core.MonthSpending{Year: year, Month: month, Expenses: decimal.Zero, Income: decimal.Zero}

	b, err := a.repo.FindBudget(ctx, clientID, year, month)
	switch {
	case err == nil:
		report.Budget = &b
	case !errors.Is(err, core.ErrNotFound):
		return core.MonthSpending{}, err
	}

	first, last := core.MonthRange(year, month)
	days, err := a.repo.DailyExpenseTotals(ctx, clientID, first, last)
	if err != nil {
		return core.MonthSpending{}, err
	}
	if report.Income, err = a.repo.SumAmounts(ctx, clientID, core.Income, first, last); err != nil {
		return core.MonthSpending{}, err
	}

	report.Days = make([]core.DaySpending, 0, len(days))
	for _, d := range days {
		report.Expenses = report.Expenses.Add(d.Expenses)
		report.Days = append(report.Days, core.DaySpending{
			Date:     d.Date,
			Expenses: d.Expenses,
			Exceeded: report.Budget != nil && report.Budget.DailyBudget.IsPositive() &&
				d.Expenses.GreaterThan(report.Budget.DailyBudget),
		})
	}
	return report, nil
}
