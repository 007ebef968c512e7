package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saldo/internal/core"
	"saldo/internal/repository"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "saldo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	require.NoError(t, s.SaveClient(ctx, core.Client{ID: "c1", Salary: decimal.NewFromInt(5000), IsActive: true}))
	require.NoError(t, s.SaveCategory(ctx, core.Category{ID: "food", ClientID: "c1", Name: "Food"}))
	return s
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE x = ? AND y = ?"
	assert.Equal(t, q, SQLite.rebind(q))
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", Postgres.rebind(q))
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saldo.db")
	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestClientAndCategoryLookups(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	c, err := s.GetClient(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, c.IsActive)
	assert.True(t, c.Salary.Equal(decimal.NewFromInt(5000)))

	_, err = s.GetClient(ctx, "nobody")
	assert.ErrorIs(t, err, core.ErrNotFound)

	cat, err := s.GetCategory(ctx, "food")
	require.NoError(t, err)
	assert.Equal(t, "c1", cat.ClientID)

	err = s.SaveCategory(ctx, core.Category{ID: "x", ClientID: "nobody", Name: "X"})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestBudgetRoundTripAndCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	b := core.NewMonthlyBudget("b1", "c1", 2025, 6, decimal.NewFromInt(5000), now)
	b.BudgetAmount = decimal.NewFromInt(60)
	b.IsPercentage = true
	require.NoError(t, b.Rebase())
	require.NoError(t, s.InsertBudget(ctx, b))

	dup := core.NewMonthlyBudget("b2", "c1", 2025, 6, decimal.Zero, now)
	assert.ErrorIs(t, s.InsertBudget(ctx, dup), core.ErrConflict)

	got, err := s.FindBudget(ctx, "c1", 2025, 6)
	require.NoError(t, err)
	assert.Equal(t, "b1", got.ID)
	assert.True(t, got.IsPercentage)
	assert.True(t, got.RemainingBalance.Equal(decimal.NewFromInt(3000)))
	assert.True(t, got.DailyBudget.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 30, got.DaysInMonth)
	assert.True(t, now.Equal(got.CreatedAt))

	got.RemainingBalance = decimal.RequireFromString("2985.00")
	updated, err := s.UpdateBudget(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Version)

	_, err = s.UpdateBudget(ctx, got)
	assert.ErrorIs(t, err, core.ErrConflict, "stale version must lose")

	missing := got
	missing.ID = "nope"
	_, err = s.UpdateBudget(ctx, missing)
	assert.ErrorIs(t, err, core.ErrNotFound)

	list, err := s.ListBudgets(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].RemainingBalance.Equal(decimal.RequireFromString("2985")))
}

func TestTransactionsAndAggregates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now()
	require.NoError(t, s.InsertBudget(ctx, core.NewMonthlyBudget("b1", "c1", 2025, 3, decimal.Zero, now)))

	food := "food"
	insert := func(id string, day int, amount string, typ core.TransactionType, cat *string) {
		t.Helper()
		require.NoError(t, s.InsertTransaction(ctx, core.DailyTransaction{
			ID: id, Description: "tx " + id, Amount: decimal.RequireFromString(amount), Type: typ,
			Date: core.NewDate(2025, 3, day), RemainingBalanceAfterTransaction: decimal.Zero,
			ClientID: "c1", CategoryID: cat, MonthlyBudgetID: "b1", CreatedAt: now, UpdatedAt: now,
		}))
	}
	insert("t1", 5, "10.10", core.Expense, &food)
	insert("t2", 2, "0.20", core.Expense, nil)
	insert("t3", 5, "0.70", core.Expense, nil)
	insert("t4", 9, "500", core.Income, nil)

	first, last := core.MonthRange(2025, 3)
	expenses, err := s.SumAmounts(ctx, "c1", core.Expense, first, last)
	require.NoError(t, err)
	assert.Equal(t, "11.00", core.FormatAmount(expenses))

	day, err := s.SumAmounts(ctx, "c1", core.Expense, core.NewDate(2025, 3, 5), core.NewDate(2025, 3, 5))
	require.NoError(t, err)
	assert.Equal(t, "10.80", core.FormatAmount(day))

	totals, err := s.DailyExpenseTotals(ctx, "c1", first, last)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, "2025-03-02", totals[0].Date.String())
	assert.Equal(t, "10.80", core.FormatAmount(totals[1].Expenses))

	txs, err := s.ListTransactions(ctx, "c1", first, last)
	require.NoError(t, err)
	require.Len(t, txs, 4)
	assert.Equal(t, "t2", txs[0].ID)
	assert.Equal(t, "t4", txs[3].ID)

	tx, err := s.GetTransaction(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, tx.CategoryID)
	assert.Equal(t, "food", *tx.CategoryID)
	assert.Equal(t, core.Expense, tx.Type)
	assert.Equal(t, "2025-03-05", tx.Date.String())

	tx.CategoryID = nil
	tx.Description = "renamed"
	require.NoError(t, s.UpdateTransaction(ctx, tx))
	tx, err = s.GetTransaction(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, tx.CategoryID)
	assert.Equal(t, "renamed", tx.Description)

	require.NoError(t, s.DeleteTransaction(ctx, "t1"))
	assert.ErrorIs(t, s.DeleteTransaction(ctx, "t1"), core.ErrNotFound)
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(r repository.Repository) error {
		require.NoError(t, r.InsertBudget(ctx, core.NewMonthlyBudget("b1", "c1", 2025, 1, decimal.Zero, time.Now())))
		_, err := r.GetBudget(ctx, "b1")
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetBudget(ctx, "b1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDeleteBudgetCascadesToTransactions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now()
	require.NoError(t, s.InsertBudget(ctx, core.NewMonthlyBudget("b1", "c1", 2025, 1, decimal.Zero, now)))
	require.NoError(t, s.InsertTransaction(ctx, core.DailyTransaction{
		ID: "t1", Description: "x", Amount: decimal.NewFromInt(1), Type: core.Expense,
		Date: core.NewDate(2025, 1, 1), ClientID: "c1", MonthlyBudgetID: "b1", CreatedAt: now, UpdatedAt: now,
	}))

	require.NoError(t, s.DeleteBudget(ctx, "b1"))
	_, err := s.GetTransaction(ctx, "t1")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.DeleteBudget(ctx, "b1"), core.ErrNotFound)
}

func TestRecordAlertIsUnique(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.InsertBudget(ctx, core.NewMonthlyBudget("b1", "c1", 2025, 1, decimal.Zero, time.Now())))

	a := core.BudgetAlert{
		ID: "a1", ClientID: "c1", BudgetID: "b1", Kind: core.AlertDailyBudgetExceeded,
		Date: core.NewDate(2025, 1, 3), Amount: decimal.RequireFromString("120.5"), CreatedAt: time.Now(),
	}
	created, err := s.RecordAlert(ctx, a)
	require.NoError(t, err)
	assert.True(t, created)

	a.ID = "a2"
	created, err = s.RecordAlert(ctx, a)
	require.NoError(t, err)
	assert.False(t, created)

	alerts, err := s.ListAlerts(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "a1", alerts[0].ID)
	assert.Equal(t, "120.50", core.FormatAmount(alerts[0].Amount))
}
