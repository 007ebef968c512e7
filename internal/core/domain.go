package core

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

const maxDescriptionLength = 200

type (
	TransactionType string

	// Date is a calendar day in UTC. The time-of-day part is always midnight.
	Date struct {
		time.Time
	}

	Client struct {
		ID       string
		Salary   decimal.Decimal
		IsActive bool
	}

	Category struct {
		ID       string
		ClientID string
		Name     string
	}

	MonthlyBudget struct {
		ID               string
		ClientID         string
		Year             int
		Month            int
		MonthlySalary    decimal.Decimal
		BudgetAmount     decimal.Decimal // currency, or a percentage when IsPercentage
		IsPercentage     bool
		DailyBudget      decimal.Decimal
		RemainingBalance decimal.Decimal
		DaysInMonth      int
		Version          int64 // bumped by every successful write
		CreatedAt        time.Time
		UpdatedAt        time.Time
	}

	DailyTransaction struct {
		ID                               string
		Description                      string
		Amount                           decimal.Decimal
		Type                             TransactionType
		Date                             Date
		RemainingBalanceAfterTransaction decimal.Decimal
		ClientID                         string
		CategoryID                       *string
		MonthlyBudgetID                  string
		CreatedAt                        time.Time
		UpdatedAt                        time.Time
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	if d.Time.Year() < 1 || d.Time.Year() > 9999 {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// SameMonth reports whether both dates fall in the same calendar month.
func (d Date) SameMonth(o Date) bool {
	return d.Year() == o.Year() && d.Month() == o.Month()
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MonthRange returns the first and last day of the month, both inclusive.
func MonthRange(year, month int) (Date, Date) {
	first := NewDate(year, month, 1)
	return first, NewDate(year, month, DaysInMonth(year, month))
}

// ValidateYearMonth rejects months outside 1-12 and years outside 1-9999.
func ValidateYearMonth(year, month int) error {
	if month < 1 || month > 12 || year < 1 || year > 9999 {
		return ErrInvalidDate
	}
	return nil
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidType
	}
}

func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t, nil
}

// IsIncome reports whether the type adds to the remaining balance.
func (t TransactionType) IsIncome() bool {
	return t == Income
}

// Signed returns amount with the sign it has on a remaining balance.
func (t TransactionType) Signed(amount decimal.Decimal) decimal.Decimal {
	if t.IsIncome() {
		return amount
	}
	return amount.Neg()
}

// NewMonthlyBudget returns a budget with nothing allocated yet.
func NewMonthlyBudget(id, clientID string, year, month int, salary decimal.Decimal, now time.Time) MonthlyBudget {
	return MonthlyBudget{
		ID:               id,
		ClientID:         clientID,
		Year:             year,
		Month:            month,
		MonthlySalary:    salary,
		BudgetAmount:     decimal.Zero,
		DailyBudget:      decimal.Zero,
		RemainingBalance: decimal.Zero,
		DaysInMonth:      DaysInMonth(year, month),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (b MonthlyBudget) Policy() BudgetPolicy {
	return BudgetPolicy{Amount: b.BudgetAmount, IsPercentage: b.IsPercentage}
}

// Rebase recomputes the daily budget and resets the remaining balance to the
// effective amount of the budget's current policy and salary.
func (b *MonthlyBudget) Rebase() error {
	effective, err := b.Policy().Effective(b.MonthlySalary)
	if err != nil {
		return err
	}
	b.DailyBudget = DailyBudget(effective, b.DaysInMonth)
	b.RemainingBalance = effective
	return nil
}

// ApplyDelta moves the remaining balance by amount, up for income and down otherwise.
func (b *MonthlyBudget) ApplyDelta(amount decimal.Decimal, isIncome bool) {
	if isIncome {
		b.RemainingBalance = b.RemainingBalance.Add(amount)
		return
	}
	b.RemainingBalance = b.RemainingBalance.Sub(amount)
}

// Covers reports whether d falls in the budget's month.
func (b MonthlyBudget) Covers(d Date) bool {
	return b.Year == d.Year() && b.Month == d.Month()
}

func (t DailyTransaction) Validate() error {
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > maxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.ClientID) == "" {
		return ErrMissingClient
	}
	return nil
}

// SignedAmount is the transaction's effect on its budget's remaining balance.
func (t DailyTransaction) SignedAmount() decimal.Decimal {
	return t.Type.Signed(t.Amount)
}

// AffectsBalance reports whether moving from t to next changes any balance.
func (t DailyTransaction) AffectsBalance(next DailyTransaction) bool {
	return !t.Amount.Equal(next.Amount) || t.Type != next.Type || !t.Date.Equal(next.Date.Time)
}
