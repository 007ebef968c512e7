package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saldo/internal/core"
)

func TestAggregator(t *testing.T) {
	backends(t, func(t *testing.T, e *env) {
		ctx := context.Background()
		percentBudget(t, e)

		for _, in := range []CreateTransactionInput{
			expense("Lunch", "15", 10),
			expense("Dinner", "90.50", 10),
			expense("Bus", "2.20", 11),
			{Description: "Gift", Amount: dec("50"), Type: core.Income, Date: core.NewDate(2025, 6, 10), ClientID: "c1"},
			{Description: "Other month", Amount: dec("99"), Type: core.Expense, Date: core.NewDate(2025, 7, 1), ClientID: "c1"},
			{Description: "Other client", Amount: dec("99"), Type: core.Expense, Date: core.NewDate(2025, 6, 10), ClientID: "c2"},
		} {
			_, err := e.ledger.Create(ctx, in)
			require.NoError(t, err)
		}

		day, err := e.agg.SumExpensesByDate(ctx, "c1", core.NewDate(2025, 6, 10))
		require.NoError(t, err)
		assert.Equal(t, "105.50", core.FormatAmount(day))

		empty, err := e.agg.SumExpensesByDate(ctx, "c1", core.NewDate(2025, 6, 12))
		require.NoError(t, err)
		assert.True(t, empty.IsZero())

		month, err := e.agg.SumExpensesByMonth(ctx, "c1", 2025, 6)
		require.NoError(t, err)
		assert.Equal(t, "107.70", core.FormatAmount(month))

		none, err := e.agg.SumExpensesByMonth(ctx, "c1", 2025, 1)
		require.NoError(t, err)
		assert.True(t, none.IsZero())

		_, err = e.agg.SumExpensesByMonth(ctx, "c1", 2025, 13)
		assert.ErrorIs(t, err, core.ErrInvalidDate)

		report, err := e.agg.MonthSpending(ctx, "c1", 2025, 6)
		require.NoError(t, err)
		require.NotNil(t, report.Budget)
		assert.Equal(t, "107.70", core.FormatAmount(report.Expenses))
		assert.Equal(t, "50.00", core.FormatAmount(report.Income))
		require.Len(t, report.Days, 2)
		assert.True(t, report.Days[0].Exceeded, "105.50 is above the daily budget of 100")
		assert.False(t, report.Days[1].Exceeded)
	})
}

func TestMonthSpendingWithoutBudget(t *testing.T) {
	e := newMemoryEnv(t)
	report, err := e.agg.MonthSpending(context.Background(), "c1", 2030, 1)
	require.NoError(t, err)
	assert.Nil(t, report.Budget)
	assert.Empty(t, report.Days)
	assert.True(t, report.Expenses.IsZero())

	_, err = e.store.FindBudget(context.Background(), "c1", 2030, 1)
	assert.ErrorIs(t, err, core.ErrNotFound, "reports never create budgets")
}
