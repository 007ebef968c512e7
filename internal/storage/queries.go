package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries implements repository.Repository on top of a DBTX.
type Queries struct {
	db      DBTX
	dialect Dialect
	inTx    bool
}

func New(db DBTX, d Dialect) *Queries {
	return &Queries{db: db, dialect: d}
}

func (q *Queries) withTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx, dialect: q.dialect, inTx: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (q *Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := q.db.ExecContext(ctx, q.dialect.rebind(query), args...)
	return res, translate(err)
}

func (q *Queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := q.db.QueryContext(ctx, q.dialect.rebind(query), args...)
	return rows, translate(err)
}

func (q *Queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.dialect.rebind(query), args...)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return translate(err)
}

func money(d decimal.Decimal) string {
	return core.FormatAmount(d)
}

// Clients and categories

func (q *Queries) GetClient(ctx context.Context, id string) (core.Client, error) {
	var c core.Client
	err := q.queryRow(ctx, `SELECT id, salary, is_active FROM clients WHERE id = ?`, id).
		Scan(&c.ID, &c.Salary, &c.IsActive)
	if err != nil {
		return core.Client{}, fmt.Errorf("get client %s: %w", id, notFound(err))
	}
	return c, nil
}

func (q *Queries) SaveClient(ctx context.Context, c core.Client) error {
	_, err := q.exec(ctx, `
		INSERT INTO clients (id, salary, is_active) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET salary = excluded.salary, is_active = excluded.is_active`,
		c.ID, money(c.Salary), c.IsActive)
	if err != nil {
		return fmt.Errorf("save client %s: %w", c.ID, err)
	}
	return nil
}

func (q *Queries) GetCategory(ctx context.Context, id string) (core.Category, error) {
	var c core.Category
	err := q.queryRow(ctx, `SELECT id, client_id, name FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.ClientID, &c.Name)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %s: %w", id, notFound(err))
	}
	return c, nil
}

func (q *Queries) SaveCategory(ctx context.Context, c core.Category) error {
	if _, err := q.GetClient(ctx, c.ClientID); err != nil {
		return err
	}
	_, err := q.exec(ctx, `
		INSERT INTO categories (id, client_id, name) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		c.ID, c.ClientID, c.Name)
	if err != nil {
		return fmt.Errorf("save category %s: %w", c.ID, err)
	}
	return nil
}

// Budgets

const budgetColumns = `id, client_id, year, month, monthly_salary, budget_amount, is_percentage,
	daily_budget, remaining_balance, days_in_month, version, created_at, updated_at`

func scanBudget(r rowScanner) (core.MonthlyBudget, error) {
	var (
		b                core.MonthlyBudget
		created, updated int64
	)
	err := r.Scan(&b.ID, &b.ClientID, &b.Year, &b.Month, &b.MonthlySalary, &b.BudgetAmount, &b.IsPercentage,
		&b.DailyBudget, &b.RemainingBalance, &b.DaysInMonth, &b.Version, &created, &updated)
	if err != nil {
		return core.MonthlyBudget{}, err
	}
	b.CreatedAt, b.UpdatedAt = fromMillis(created), fromMillis(updated)
	return b, nil
}

func (q *Queries) lock() string {
	if q.inTx {
		return q.dialect.lockSuffix()
	}
	return ""
}

func (q *Queries) GetBudget(ctx context.Context, id string) (core.MonthlyBudget, error) {
	b, err := scanBudget(q.queryRow(ctx, `SELECT `+budgetColumns+` FROM monthly_budgets WHERE id = ?`+q.lock(), id))
	if err != nil {
		return core.MonthlyBudget{}, fmt.Errorf("get budget %s: %w", id, notFound(err))
	}
	return b, nil
}

func (q *Queries) FindBudget(ctx context.Context, clientID string, year, month int) (core.MonthlyBudget, error) {
	b, err := scanBudget(q.queryRow(ctx,
		`SELECT `+budgetColumns+` FROM monthly_budgets WHERE client_id = ? AND year = ? AND month = ?`+q.lock(),
		clientID, year, month))
	if err != nil {
		return core.MonthlyBudget{}, fmt.Errorf("find budget %s %04d-%02d: %w", clientID, year, month, notFound(err))
	}
	return b, nil
}

func (q *Queries) listBudgets(ctx context.Context, query string, args ...any) ([]core.MonthlyBudget, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.MonthlyBudget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (q *Queries) ListBudgets(ctx context.Context, clientID string) ([]core.MonthlyBudget, error) {
	out, err := q.listBudgets(ctx,
		`SELECT `+budgetColumns+` FROM monthly_budgets WHERE client_id = ? ORDER BY year DESC, month DESC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list budgets for %s: %w", clientID, err)
	}
	return out, nil
}

func (q *Queries) ListBudgetsForMonth(ctx context.Context, year, month int) ([]core.MonthlyBudget, error) {
	out, err := q.listBudgets(ctx,
		`SELECT `+budgetColumns+` FROM monthly_budgets WHERE year = ? AND month = ? ORDER BY client_id`, year, month)
	if err != nil {
		return nil, fmt.Errorf("list budgets for %04d-%02d: %w", year, month, err)
	}
	return out, nil
}

func (q *Queries) InsertBudget(ctx context.Context, b core.MonthlyBudget) error {
	res, err := q.exec(ctx, `
		INSERT INTO monthly_budgets (`+budgetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (client_id, year, month) DO NOTHING`,
		b.ID, b.ClientID, b.Year, b.Month, money(b.MonthlySalary), money(b.BudgetAmount), b.IsPercentage,
		money(b.DailyBudget), money(b.RemainingBalance), b.DaysInMonth, b.Version,
		toMillis(b.CreatedAt), toMillis(b.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("insert budget: %w", err)
	} else if n == 0 {
		return core.ErrConflict
	}
	return nil
}

func (q *Queries) UpdateBudget(ctx context.Context, b core.MonthlyBudget) (core.MonthlyBudget, error) {
	res, err := q.exec(ctx, `
		UPDATE monthly_budgets
		SET monthly_salary = ?, budget_amount = ?, is_percentage = ?, daily_budget = ?,
		    remaining_balance = ?, days_in_month = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		money(b.MonthlySalary), money(b.BudgetAmount), b.IsPercentage, money(b.DailyBudget),
		money(b.RemainingBalance), b.DaysInMonth, toMillis(b.UpdatedAt), b.ID, b.Version)
	if err != nil {
		return core.MonthlyBudget{}, fmt.Errorf("update budget %s: %w", b.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.MonthlyBudget{}, fmt.Errorf("update budget %s: %w", b.ID, err)
	}
	if n == 0 {
		var one int
		if err := q.queryRow(ctx, `SELECT 1 FROM monthly_budgets WHERE id = ?`, b.ID).Scan(&one); err != nil {
			return core.MonthlyBudget{}, fmt.Errorf("update budget %s: %w", b.ID, notFound(err))
		}
		return core.MonthlyBudget{}, fmt.Errorf("update budget %s: %w", b.ID, core.ErrConflict)
	}
	b.Version++
	return b, nil
}

func (q *Queries) DeleteBudget(ctx context.Context, id string) error {
	res, err := q.exec(ctx, `DELETE FROM monthly_budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete budget %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// Transactions

const transactionColumns = `id, description, amount, type, date, remaining_balance_after,
	client_id, category_id, monthly_budget_id, created_at, updated_at`

func scanTransaction(r rowScanner) (core.DailyTransaction, error) {
	var (
		tx               core.DailyTransaction
		typ              string
		category         sql.NullString
		created, updated int64
	)
	err := r.Scan(&tx.ID, &tx.Description, &tx.Amount, &typ, dateColumn{&tx.Date}, &tx.RemainingBalanceAfterTransaction,
		&tx.ClientID, &category, &tx.MonthlyBudgetID, &created, &updated)
	if err != nil {
		return core.DailyTransaction{}, err
	}
	tx.Type = core.TransactionType(typ)
	if category.Valid {
		id := category.String
		tx.CategoryID = &id
	}
	tx.CreatedAt, tx.UpdatedAt = fromMillis(created), fromMillis(updated)
	return tx, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (q *Queries) GetTransaction(ctx context.Context, id string) (core.DailyTransaction, error) {
	tx, err := scanTransaction(q.queryRow(ctx, `SELECT `+transactionColumns+` FROM daily_transactions WHERE id = ?`, id))
	if err != nil {
		return core.DailyTransaction{}, fmt.Errorf("get transaction %s: %w", id, notFound(err))
	}
	return tx, nil
}

func (q *Queries) ListTransactions(ctx context.Context, clientID string, from, to core.Date) ([]core.DailyTransaction, error) {
	rows, err := q.query(ctx, `
		SELECT `+transactionColumns+` FROM daily_transactions
		WHERE client_id = ? AND date >= ? AND date <= ?
		ORDER BY date, created_at, id`,
		clientID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	var out []core.DailyTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (q *Queries) InsertTransaction(ctx context.Context, tx core.DailyTransaction) error {
	_, err := q.exec(ctx, `
		INSERT INTO daily_transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Description, money(tx.Amount), string(tx.Type), tx.Date.String(),
		money(tx.RemainingBalanceAfterTransaction), tx.ClientID, nullable(tx.CategoryID), tx.MonthlyBudgetID,
		toMillis(tx.CreatedAt), toMillis(tx.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (q *Queries) UpdateTransaction(ctx context.Context, tx core.DailyTransaction) error {
	res, err := q.exec(ctx, `
		UPDATE daily_transactions
		SET description = ?, amount = ?, type = ?, date = ?, remaining_balance_after = ?,
		    category_id = ?, monthly_budget_id = ?, updated_at = ?
		WHERE id = ?`,
		tx.Description, money(tx.Amount), string(tx.Type), tx.Date.String(),
		money(tx.RemainingBalanceAfterTransaction), nullable(tx.CategoryID), tx.MonthlyBudgetID,
		toMillis(tx.UpdatedAt), tx.ID)
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", tx.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update transaction %s: %w", tx.ID, core.ErrNotFound)
	}
	return nil
}

func (q *Queries) DeleteTransaction(ctx context.Context, id string) error {
	res, err := q.exec(ctx, `DELETE FROM daily_transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete transaction %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// Amounts are summed in Go: SQLite would coerce the TEXT decimals to REAL.

func (q *Queries) SumAmounts(ctx context.Context, clientID string, t core.TransactionType, from, to core.Date) (decimal.Decimal, error) {
	rows, err := q.query(ctx, `
		SELECT amount FROM daily_transactions
		WHERE client_id = ? AND type = ? AND date >= ? AND date <= ?`,
		clientID, string(t), from.String(), to.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum %s: %w", t, err)
	}
	defer rows.Close()
	sum := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("sum %s: %w", t, err)
		}
		sum = sum.Add(amount)
	}
	return sum, rows.Err()
}

func (q *Queries) DailyExpenseTotals(ctx context.Context, clientID string, from, to core.Date) ([]core.DayTotal, error) {
	rows, err := q.query(ctx, `
		SELECT date, amount FROM daily_transactions
		WHERE client_id = ? AND type = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		clientID, string(core.Expense), from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("daily expense totals: %w", err)
	}
	defer rows.Close()
	var out []core.DayTotal
	for rows.Next() {
		var (
			d      core.Date
			amount decimal.Decimal
		)
		if err := rows.Scan(dateColumn{&d}, &amount); err != nil {
			return nil, fmt.Errorf("daily expense totals: %w", err)
		}
		if n := len(out); n > 0 && out[n-1].Date.Equal(d.Time) {
			out[n-1].Expenses = out[n-1].Expenses.Add(amount)
			continue
		}
		out = append(out, core.DayTotal{Date: d, Expenses: amount})
	}
	return out, rows.Err()
}

// Alerts

func (q *Queries) RecordAlert(ctx context.Context, a core.BudgetAlert) (bool, error) {
	res, err := q.exec(ctx, `
		INSERT INTO budget_alerts (id, client_id, monthly_budget_id, kind, alert_date, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (monthly_budget_id, kind, alert_date) DO NOTHING`,
		a.ID, a.ClientID, a.BudgetID, string(a.Kind), a.Date.String(), money(a.Amount), toMillis(a.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("record alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record alert: %w", err)
	}
	return n == 1, nil
}

func (q *Queries) ListAlerts(ctx context.Context, clientID string) ([]core.BudgetAlert, error) {
	rows, err := q.query(ctx, `
		SELECT id, client_id, monthly_budget_id, kind, alert_date, amount, created_at
		FROM budget_alerts WHERE client_id = ?
		ORDER BY alert_date DESC, kind`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()
	var out []core.BudgetAlert
	for rows.Next() {
		var (
			a       core.BudgetAlert
			kind    string
			created int64
		)
		if err := rows.Scan(&a.ID, &a.ClientID, &a.BudgetID, &kind, dateColumn{&a.Date}, &a.Amount, &created); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Kind = core.AlertKind(kind)
		a.CreatedAt = fromMillis(created)
		out = append(out, a)
	}
	return out, rows.Err()
}
