package http

import (
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// money renders an amount with two fixed decimals.
func money(d decimal.Decimal) string {
	return core.FormatAmount(d)
}

type budgetResponse struct {
	ID               string    `json:"id"`
	ClientID         string    `json:"client_id"`
	Year             int       `json:"year"`
	Month            int       `json:"month"`
	MonthlySalary    string    `json:"monthly_salary"`
	BudgetAmount     string    `json:"budget_amount"`
	IsPercentage     bool      `json:"is_percentage"`
	DailyBudget      string    `json:"daily_budget"`
	RemainingBalance string    `json:"remaining_balance"`
	DaysInMonth      int       `json:"days_in_month"`
	Version          int64     `json:"version"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func newBudgetResponse(b core.MonthlyBudget) budgetResponse {
	return budgetResponse{
		ID:               b.ID,
		ClientID:         b.ClientID,
		Year:             b.Year,
		Month:            b.Month,
		MonthlySalary:    money(b.MonthlySalary),
		BudgetAmount:     money(b.BudgetAmount),
		IsPercentage:     b.IsPercentage,
		DailyBudget:      money(b.DailyBudget),
		RemainingBalance: money(b.RemainingBalance),
		DaysInMonth:      b.DaysInMonth,
		Version:          b.Version,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

type transactionResponse struct {
	ID               string    `json:"id"`
	Description      string    `json:"description"`
	Amount           string    `json:"amount"`
	Type             string    `json:"type"`
	Date             core.Date `json:"date"`
	RemainingBalance string    `json:"remaining_balance_after_transaction"`
	ClientID         string    `json:"client_id"`
	CategoryID       *string   `json:"category_id"`
	MonthlyBudgetID  string    `json:"monthly_budget_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func newTransactionResponse(tx core.DailyTransaction) transactionResponse {
	return transactionResponse{
		ID:               tx.ID,
		Description:      tx.Description,
		Amount:           money(tx.Amount),
		Type:             string(tx.Type),
		Date:             tx.Date,
		RemainingBalance: money(tx.RemainingBalanceAfterTransaction),
		ClientID:         tx.ClientID,
		CategoryID:       tx.CategoryID,
		MonthlyBudgetID:  tx.MonthlyBudgetID,
		CreatedAt:        tx.CreatedAt,
		UpdatedAt:        tx.UpdatedAt,
	}
}

type daySpendingResponse struct {
	Date     core.Date `json:"date"`
	Expenses string    `json:"expenses"`
	Exceeded bool      `json:"exceeded"`
}

type spendingResponse struct {
	Year     int                   `json:"year"`
	Month    int                   `json:"month"`
	Budget   *budgetResponse       `json:"budget"`
	Expenses string                `json:"expenses"`
	Income   string                `json:"income"`
	Days     []daySpendingResponse `json:"days"`
}

func newSpendingResponse(s core.MonthSpending) spendingResponse {
	out := spendingResponse{
		Year:     s.Year,
		Month:    s.Month,
		Expenses: money(s.Expenses),
		Income:   money(s.Income),
		Days:     make([]daySpendingResponse, 0, len(s.Days)),
	}
	if s.Budget != nil {
		b := newBudgetResponse(*s.Budget)
		out.Budget = &b
	}
	for _, d := range s.Days {
		out.Days = append(out.Days, daySpendingResponse{Date: d.Date, Expenses: money(d.Expenses), Exceeded: d.Exceeded})
	}
	return out
}

type alertResponse struct {
	ID        string    `json:"id"`
	BudgetID  string    `json:"budget_id"`
	Kind      string    `json:"kind"`
	Date      core.Date `json:"date"`
	Amount    string    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

func newAlertResponse(a core.BudgetAlert) alertResponse {
	return alertResponse{
		ID:        a.ID,
		BudgetID:  a.BudgetID,
		Kind:      string(a.Kind),
		Date:      a.Date,
		Amount:    money(a.Amount),
		CreatedAt: a.CreatedAt,
	}
}

func mapSlice[T, R any](in []T, f func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}
