package memory

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// view implements repository.Repository directly on a state. The caller
// holds the store mutex.
type view struct {
	st *state
}

func (v *view) GetClient(_ context.Context, id string) (core.Client, error) {
	c, ok := v.st.clients[id]
	if !ok {
		return core.Client{}, core.ErrNotFound
	}
	return c, nil
}

func (v *view) GetCategory(_ context.Context, id string) (core.Category, error) {
	c, ok := v.st.categories[id]
	if !ok {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

func (v *view) GetBudget(_ context.Context, id string) (core.MonthlyBudget, error) {
	b, ok := v.st.budgets[id]
	if !ok {
		return core.MonthlyBudget{}, core.ErrNotFound
	}
	return b, nil
}

func (v *view) FindBudget(ctx context.Context, clientID string, year, month int) (core.MonthlyBudget, error) {
	id, ok := v.st.byMonth[budgetKey{clientID: clientID, year: year, month: month}]
	if !ok {
		return core.MonthlyBudget{}, core.ErrNotFound
	}
	return v.GetBudget(ctx, id)
}

func (v *view) ListBudgets(_ context.Context, clientID string) ([]core.MonthlyBudget, error) {
	var out []core.MonthlyBudget
	for _, b := range v.st.budgets {
		if b.ClientID == clientID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Month > out[j].Month
	})
	return out, nil
}

func (v *view) ListBudgetsForMonth(_ context.Context, year, month int) ([]core.MonthlyBudget, error) {
	var out []core.MonthlyBudget
	for _, b := range v.st.budgets {
		if b.Year == year && b.Month == month {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}

func (v *view) InsertBudget(_ context.Context, b core.MonthlyBudget) error {
	if _, ok := v.st.clients[b.ClientID]; !ok {
		return core.ErrNotFound
	}
	k := budgetKey{clientID: b.ClientID, year: b.Year, month: b.Month}
	if _, ok := v.st.byMonth[k]; ok {
		return core.ErrConflict
	}
	if _, ok := v.st.budgets[b.ID]; ok {
		return core.ErrConflict
	}
	v.st.budgets[b.ID] = b
	v.st.byMonth[k] = b.ID
	return nil
}

func (v *view) UpdateBudget(_ context.Context, b core.MonthlyBudget) (core.MonthlyBudget, error) {
	cur, ok := v.st.budgets[b.ID]
	if !ok {
		return core.MonthlyBudget{}, core.ErrNotFound
	}
	if cur.Version != b.Version {
		return core.MonthlyBudget{}, core.ErrConflict
	}
	// Identity and month are immutable.
	b.ClientID, b.Year, b.Month, b.CreatedAt = cur.ClientID, cur.Year, cur.Month, cur.CreatedAt
	b.Version++
	v.st.budgets[b.ID] = b
	return b, nil
}

func (v *view) DeleteBudget(_ context.Context, id string) error {
	b, ok := v.st.budgets[id]
	if !ok {
		return core.ErrNotFound
	}
	delete(v.st.budgets, id)
	delete(v.st.byMonth, budgetKey{clientID: b.ClientID, year: b.Year, month: b.Month})
	for txID, tx := range v.st.txs {
		if tx.MonthlyBudgetID == id {
			delete(v.st.txs, txID)
			delete(v.st.order, txID)
		}
	}
	for k := range v.st.alerts {
		if k.budgetID == id {
			delete(v.st.alerts, k)
		}
	}
	return nil
}

func (v *view) GetTransaction(_ context.Context, id string) (core.DailyTransaction, error) {
	tx, ok := v.st.txs[id]
	if !ok {
		return core.DailyTransaction{}, core.ErrNotFound
	}
	return tx, nil
}

func (v *view) ListTransactions(_ context.Context, clientID string, from, to core.Date) ([]core.DailyTransaction, error) {
	var out []core.DailyTransaction
	for _, tx := range v.st.txs {
		if tx.ClientID == clientID && inRange(tx.Date, from, to) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return v.st.order[out[i].ID] < v.st.order[out[j].ID]
	})
	return out, nil
}

func (v *view) InsertTransaction(_ context.Context, tx core.DailyTransaction) error {
	if _, ok := v.st.txs[tx.ID]; ok {
		return core.ErrConflict
	}
	if err := v.checkRefs(tx); err != nil {
		return err
	}
	v.st.seq++
	v.st.order[tx.ID] = v.st.seq
	v.st.txs[tx.ID] = tx
	return nil
}

func (v *view) UpdateTransaction(_ context.Context, tx core.DailyTransaction) error {
	cur, ok := v.st.txs[tx.ID]
	if !ok {
		return core.ErrNotFound
	}
	if err := v.checkRefs(tx); err != nil {
		return err
	}
	tx.CreatedAt = cur.CreatedAt
	v.st.txs[tx.ID] = tx
	return nil
}

func (v *view) DeleteTransaction(_ context.Context, id string) error {
	if _, ok := v.st.txs[id]; !ok {
		return core.ErrNotFound
	}
	delete(v.st.txs, id)
	delete(v.st.order, id)
	return nil
}

func (v *view) SumAmounts(_ context.Context, clientID string, t core.TransactionType, from, to core.Date) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, tx := range v.st.txs {
		if tx.ClientID == clientID && tx.Type == t && inRange(tx.Date, from, to) {
			sum = sum.Add(tx.Amount)
		}
	}
	return sum, nil
}

func (v *view) DailyExpenseTotals(_ context.Context, clientID string, from, to core.Date) ([]core.DayTotal, error) {
	byDay := map[string]*core.DayTotal{}
	for _, tx := range v.st.txs {
		if tx.ClientID != clientID || tx.Type != core.Expense || !inRange(tx.Date, from, to) {
			continue
		}
		k := tx.Date.String()
		if dt, ok := byDay[k]; ok {
			dt.Expenses = dt.Expenses.Add(tx.Amount)
			continue
		}
		byDay[k] = &core.DayTotal{Date: tx.Date, Expenses: tx.Amount}
	}
	out := make([]core.DayTotal, 0, len(byDay))
	for _, dt := range byDay {
		out = append(out, *dt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}

// checkRefs mirrors the foreign keys of the SQL schema.
func (v *view) checkRefs(tx core.DailyTransaction) error {
	if _, ok := v.st.clients[tx.ClientID]; !ok {
		return core.ErrNotFound
	}
	if _, ok := v.st.budgets[tx.MonthlyBudgetID]; !ok {
		return core.ErrNotFound
	}
	if tx.CategoryID != nil {
		if _, ok := v.st.categories[*tx.CategoryID]; !ok {
			return core.ErrNotFound
		}
	}
	return nil
}

func inRange(d, from, to core.Date) bool {
	return !d.Before(from.Time) && !d.After(to.Time)
}
