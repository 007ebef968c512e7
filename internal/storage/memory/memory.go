// Package memory is an in-process implementation of the repository ports.
// Units of work run one at a time against a private copy of the data that
// replaces the live copy only when the unit succeeds.
package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/repository"
)

type budgetKey struct {
	clientID    string
	year, month int
}

type alertKey struct {
	budgetID string
	kind     core.AlertKind
	date     string
}

type state struct {
	clients    map[string]core.Client
	categories map[string]core.Category
	budgets    map[string]core.MonthlyBudget
	byMonth    map[budgetKey]string
	txs        map[string]core.DailyTransaction
	alerts     map[alertKey]core.BudgetAlert
	seq        int64 // insertion order of transactions
	order      map[string]int64
}

func newState() *state {
	return &state{
		clients:    map[string]core.Client{},
		categories: map[string]core.Category{},
		budgets:    map[string]core.MonthlyBudget{},
		byMonth:    map[budgetKey]string{},
		txs:        map[string]core.DailyTransaction{},
		alerts:     map[alertKey]core.BudgetAlert{},
		order:      map[string]int64{},
	}
}

func (s *state) clone() *state {
	c := &state{
		clients:    make(map[string]core.Client, len(s.clients)),
		categories: make(map[string]core.Category, len(s.categories)),
		budgets:    make(map[string]core.MonthlyBudget, len(s.budgets)),
		byMonth:    make(map[budgetKey]string, len(s.byMonth)),
		txs:        make(map[string]core.DailyTransaction, len(s.txs)),
		alerts:     make(map[alertKey]core.BudgetAlert, len(s.alerts)),
		seq:        s.seq,
		order:      make(map[string]int64, len(s.order)),
	}
	for k, v := range s.clients {
		c.clients[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.budgets {
		c.budgets[k] = v
	}
	for k, v := range s.byMonth {
		c.byMonth[k] = v
	}
	for k, v := range s.txs {
		c.txs[k] = v
	}
	for k, v := range s.alerts {
		c.alerts[k] = v
	}
	for k, v := range s.order {
		c.order[k] = v
	}
	return c
}

// Store keeps all data in maps guarded by one mutex.
type Store struct {
	mu sync.Mutex
	st *state
}

var (
	_ repository.Store      = (*Store)(nil)
	_ repository.AlertStore = (*Store)(nil)
	_ repository.Seeder     = (*Store)(nil)
)

func New() *Store {
	return &Store{st: newState()}
}

// NewFromFiles seeds clients from base/seed_clients.txt. Each line holds a
// client id, a salary and optionally the word "inactive".
func NewFromFiles(base string) *Store {
	s := New()
	for _, line := range readLines(filepath.Join(base, "seed_clients.txt")) {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		salary, err := core.ParseNonNegative(fields[1])
		if err != nil {
			continue
		}
		active := len(fields) < 3 || !strings.EqualFold(fields[2], "inactive")
		s.st.clients[fields[0]] = core.Client{ID: fields[0], Salary: salary, IsActive: active}
	}
	return s
}

// Ping always succeeds; the data lives in process.
func (s *Store) Ping(context.Context) error { return nil }

// WithTx runs fn against a copy of the data and keeps the copy only when fn
// succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(repository.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(&view{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) do(fn func(v *view) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&view{st: s.st})
}

func (s *Store) SaveClient(_ context.Context, c core.Client) error {
	return s.do(func(v *view) error {
		v.st.clients[c.ID] = c
		return nil
	})
}

func (s *Store) SaveCategory(_ context.Context, c core.Category) error {
	return s.do(func(v *view) error {
		if _, ok := v.st.clients[c.ClientID]; !ok {
			return core.ErrNotFound
		}
		v.st.categories[c.ID] = c
		return nil
	})
}

func (s *Store) GetClient(ctx context.Context, id string) (c core.Client, err error) {
	err = s.do(func(v *view) error { c, err = v.GetClient(ctx, id); return err })
	return c, err
}

func (s *Store) GetCategory(ctx context.Context, id string) (c core.Category, err error) {
	err = s.do(func(v *view) error { c, err = v.GetCategory(ctx, id); return err })
	return c, err
}

func (s *Store) GetBudget(ctx context.Context, id string) (b core.MonthlyBudget, err error) {
	err = s.do(func(v *view) error { b, err = v.GetBudget(ctx, id); return err })
	return b, err
}

func (s *Store) FindBudget(ctx context.Context, clientID string, year, month int) (b core.MonthlyBudget, err error) {
	err = s.do(func(v *view) error { b, err = v.FindBudget(ctx, clientID, year, month); return err })
	return b, err
}

func (s *Store) ListBudgets(ctx context.Context, clientID string) (out []core.MonthlyBudget, err error) {
	err = s.do(func(v *view) error { out, err = v.ListBudgets(ctx, clientID); return err })
	return out, err
}

func (s *Store) ListBudgetsForMonth(ctx context.Context, year, month int) (out []core.MonthlyBudget, err error) {
	err = s.do(func(v *view) error { out, err = v.ListBudgetsForMonth(ctx, year, month); return err })
	return out, err
}

func (s *Store) InsertBudget(ctx context.Context, b core.MonthlyBudget) error {
	return s.do(func(v *view) error { return v.InsertBudget(ctx, b) })
}

func (s *Store) UpdateBudget(ctx context.Context, b core.MonthlyBudget) (out core.MonthlyBudget, err error) {
	err = s.do(func(v *view) error { out, err = v.UpdateBudget(ctx, b); return err })
	return out, err
}

func (s *Store) DeleteBudget(ctx context.Context, id string) error {
	return s.do(func(v *view) error { return v.DeleteBudget(ctx, id) })
}

func (s *Store) GetTransaction(ctx context.Context, id string) (tx core.DailyTransaction, err error) {
	err = s.do(func(v *view) error { tx, err = v.GetTransaction(ctx, id); return err })
	return tx, err
}

func (s *Store) ListTransactions(ctx context.Context, clientID string, from, to core.Date) (out []core.DailyTransaction, err error) {
	err = s.do(func(v *view) error { out, err = v.ListTransactions(ctx, clientID, from, to); return err })
	return out, err
}

func (s *Store) InsertTransaction(ctx context.Context, tx core.DailyTransaction) error {
	return s.do(func(v *view) error { return v.InsertTransaction(ctx, tx) })
}

func (s *Store) UpdateTransaction(ctx context.Context, tx core.DailyTransaction) error {
	return s.do(func(v *view) error { return v.UpdateTransaction(ctx, tx) })
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	return s.do(func(v *view) error { return v.DeleteTransaction(ctx, id) })
}

func (s *Store) SumAmounts(ctx context.Context, clientID string, t core.TransactionType, from, to core.Date) (sum decimal.Decimal, err error) {
	err = s.do(func(v *view) error { sum, err = v.SumAmounts(ctx, clientID, t, from, to); return err })
	return sum, err
}

func (s *Store) DailyExpenseTotals(ctx context.Context, clientID string, from, to core.Date) (out []core.DayTotal, err error) {
	err = s.do(func(v *view) error { out, err = v.DailyExpenseTotals(ctx, clientID, from, to); return err })
	return out, err
}

func (s *Store) RecordAlert(_ context.Context, a core.BudgetAlert) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.budgets[a.BudgetID]; !ok {
		return false, core.ErrNotFound
	}
	k := alertKey{budgetID: a.BudgetID, kind: a.Kind, date: a.Date.String()}
	if _, ok := s.st.alerts[k]; ok {
		return false, nil
	}
	s.st.alerts[k] = a
	return true, nil
}

func (s *Store) ListAlerts(_ context.Context, clientID string) ([]core.BudgetAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.BudgetAlert
	for _, a := range s.st.alerts {
		if a.ClientID == clientID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
