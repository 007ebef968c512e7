// Package repository declares the persistence ports the balance engine
// depends on. Implementations live in internal/storage.
package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// Ports for outbound adapters. Lookups of a missing row return
// core.ErrNotFound; writes that lose a race return core.ErrConflict.
type (
	ClientReader interface {
		GetClient(ctx context.Context, id string) (core.Client, error)
	}

	CategoryReader interface {
		GetCategory(ctx context.Context, id string) (core.Category, error)
	}

	BudgetRepository interface {
		// GetBudget loads a budget by id. Inside a transaction the row stays
		// locked until commit where the backend supports row locks.
		GetBudget(ctx context.Context, id string) (core.MonthlyBudget, error)
		// FindBudget loads the budget of a client's month.
		FindBudget(ctx context.Context, clientID string, year, month int) (core.MonthlyBudget, error)
		// ListBudgets returns a client's budgets, newest month first.
		ListBudgets(ctx context.Context, clientID string) ([]core.MonthlyBudget, error)
		// ListBudgetsForMonth returns every client's budget for a month.
		ListBudgetsForMonth(ctx context.Context, year, month int) ([]core.MonthlyBudget, error)
		// InsertBudget stores a new budget. A budget already present for the
		// same client and month yields core.ErrConflict.
		InsertBudget(ctx context.Context, b core.MonthlyBudget) error
		// UpdateBudget writes b if the stored version still equals b.Version
		// and returns it with the bumped version.
		UpdateBudget(ctx context.Context, b core.MonthlyBudget) (core.MonthlyBudget, error)
		DeleteBudget(ctx context.Context, id string) error
	}

	TransactionRepository interface {
		GetTransaction(ctx context.Context, id string) (core.DailyTransaction, error)
		// ListTransactions returns a client's transactions dated within
		// [from, to], ordered by date then creation.
		ListTransactions(ctx context.Context, clientID string, from, to core.Date) ([]core.DailyTransaction, error)
		InsertTransaction(ctx context.Context, tx core.DailyTransaction) error
		UpdateTransaction(ctx context.Context, tx core.DailyTransaction) error
		DeleteTransaction(ctx context.Context, id string) error
		// SumAmounts totals a client's transactions of type t dated within [from, to].
		SumAmounts(ctx context.Context, clientID string, t core.TransactionType, from, to core.Date) (decimal.Decimal, error)
		// DailyExpenseTotals returns per-day expense totals within [from, to]
		// for days that have at least one expense, in date order.
		DailyExpenseTotals(ctx context.Context, clientID string, from, to core.Date) ([]core.DayTotal, error)
	}

	// Repository is the full set of reads and writes one unit of work sees.
	Repository interface {
		ClientReader
		CategoryReader
		BudgetRepository
		TransactionRepository
	}

	// Store runs units of work atomically. fn sees its own writes; when it
	// returns an error nothing it wrote is kept.
	Store interface {
		Repository
		WithTx(ctx context.Context, fn func(Repository) error) error
	}

	// AlertStore persists budget alerts.
	AlertStore interface {
		// RecordAlert stores a and reports whether it was new. An alert with
		// the same budget, kind and date is left untouched.
		RecordAlert(ctx context.Context, a core.BudgetAlert) (bool, error)
		// ListAlerts returns a client's alerts, most recent date first.
		ListAlerts(ctx context.Context, clientID string) ([]core.BudgetAlert, error)
	}

	// Seeder writes the reference data the engine reads but never owns.
	Seeder interface {
		SaveClient(ctx context.Context, c core.Client) error
		SaveCategory(ctx context.Context, c core.Category) error
	}
)
