package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"saldo/internal/core"
	"saldo/internal/repository"
	"saldo/internal/storage"
	"saldo/internal/storage/memory"
)

var errBoom = errors.New("boom")

type seedStore interface {
	repository.Store
	repository.Seeder
}

type env struct {
	store     seedStore
	budgets   *BudgetService
	ledger    *LedgerService
	agg       *Aggregator
	published *recorder
}

type recorder struct {
	mu     sync.Mutex
	events []core.LedgerEvent
}

func (r *recorder) Publish(_ context.Context, ev core.LedgerEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []core.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) count(t core.EventType) int {
	n := 0
	for _, got := range r.types() {
		if got == t {
			n++
		}
	}
	return n
}

func newEnv(t *testing.T, store seedStore) *env {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.SaveClient(ctx, core.Client{ID: "c1", Salary: decimal.NewFromInt(5000), IsActive: true}))
	require.NoError(t, store.SaveClient(ctx, core.Client{ID: "c2", Salary: decimal.NewFromInt(2000), IsActive: true}))
	require.NoError(t, store.SaveClient(ctx, core.Client{ID: "gone", Salary: decimal.NewFromInt(1000), IsActive: false}))
	require.NoError(t, store.SaveCategory(ctx, core.Category{ID: "food", ClientID: "c1", Name: "Food"}))
	require.NoError(t, store.SaveCategory(ctx, core.Category{ID: "c2-rent", ClientID: "c2", Name: "Rent"}))

	rec := &recorder{}
	return &env{
		store:     store,
		budgets:   NewBudgetService(store, rec, nil, DefaultOptions()),
		ledger:    NewLedgerService(store, rec, nil, nil, DefaultOptions()),
		agg:       NewAggregator(store),
		published: rec,
	}
}

func newMemoryEnv(t *testing.T) *env {
	return newEnv(t, memory.New())
}

func newSQLiteEnv(t *testing.T) *env {
	t.Helper()
	s, err := storage.NewSQLite(filepath.Join(t.TempDir(), "saldo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return newEnv(t, s)
}

// backends runs fn once per store implementation.
func backends(t *testing.T, fn func(t *testing.T, e *env)) {
	t.Run("memory", func(t *testing.T) { fn(t, newMemoryEnv(t)) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteEnv(t)) })
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T {
	return &v
}

// percentBudget prepares c1's June 2025 budget at 60% of 5000.
func percentBudget(t *testing.T, e *env) core.MonthlyBudget {
	t.Helper()
	ctx := context.Background()
	b, err := e.budgets.GetOrCreate(ctx, "c1", 2025, 6, nil)
	require.NoError(t, err)
	b, err = e.budgets.UpdateBudgetAmount(ctx, b.ID, dec("60"), true)
	require.NoError(t, err)
	return b
}

func expense(desc, amount string, day int) CreateTransactionInput {
	return CreateTransactionInput{
		Description: desc,
		Amount:      dec(amount),
		Type:        core.Expense,
		Date:        core.NewDate(2025, 6, day),
		ClientID:    "c1",
	}
}

// conflictStore makes the first failures units of work lose a write race
// after running them, so their writes are rolled back.
type conflictStore struct {
	seedStore
	mu       sync.Mutex
	failures int
	attempts int
}

func (s *conflictStore) WithTx(ctx context.Context, fn func(repository.Repository) error) error {
	return s.seedStore.WithTx(ctx, func(r repository.Repository) error {
		s.mu.Lock()
		s.attempts++
		fail := s.failures > 0
		if fail {
			s.failures--
		}
		s.mu.Unlock()
		if err := fn(r); err != nil {
			return err
		}
		if fail {
			return core.ErrConflict
		}
		return nil
	})
}

// failingStore hands units a repository whose UpdateTransaction fails.
type failingStore struct {
	seedStore
}

func (s failingStore) WithTx(ctx context.Context, fn func(repository.Repository) error) error {
	return s.seedStore.WithTx(ctx, func(r repository.Repository) error {
		return fn(failingRepo{Repository: r})
	})
}

type failingRepo struct {
	repository.Repository
}

func (failingRepo) UpdateTransaction(context.Context, core.DailyTransaction) error {
	return errBoom
}
