package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("case %d expected ErrInvalidDate, got %v", i, err)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2024-02-29 ")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.Year() != 2024 || d.Month() != 2 || d.Day() != 29 {
		t.Fatalf("unexpected date %v", d)
	}
	for _, in := range []string{"", "2023-02-29", "2024-13-01", "15/01/2024", "yesterday"} {
		if _, err := ParseDate(in); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", in, err)
		}
	}
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2025, 3, 7)
	b, err := d.MarshalJSON()
	if err != nil || string(b) != `"2025-03-07"` {
		t.Fatalf("marshal: %s %v", b, err)
	}
	var back Date
	if err := back.UnmarshalJSON([]byte(`"2025-03-07"`)); err != nil || !back.Equal(d.Time) {
		t.Fatalf("unmarshal: %v %v", back, err)
	}
	if err := back.UnmarshalJSON([]byte(`"07.03.2025"`)); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestMonthRange(t *testing.T) {
	first, last := MonthRange(2024, 2)
	if first.String() != "2024-02-01" || last.String() != "2024-02-29" {
		t.Fatalf("unexpected range %s..%s", first, last)
	}
}

func TestValidateYearMonth(t *testing.T) {
	if err := ValidateYearMonth(2025, 12); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	for _, ym := range [][2]int{{2025, 0}, {2025, 13}, {0, 5}, {10000, 1}} {
		if err := ValidateYearMonth(ym[0], ym[1]); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%v expected ErrInvalidDate, got %v", ym, err)
		}
	}
}

func TestParseTransactionType(t *testing.T) {
	if tt, err := ParseTransactionType(" Expense "); err != nil || tt != Expense {
		t.Fatalf("expected expense, got %q %v", tt, err)
	}
	if _, err := ParseTransactionType("transfer"); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := DailyTransaction{
		Description: "Lunch",
		Amount:      decimal.NewFromInt(15),
		Type:        Expense,
		Date:        NewDate(2025, 1, 1),
		ClientID:    "c1",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	long := make([]byte, 201)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name   string
		mutate func(*DailyTransaction)
		want   error
	}{
		{"empty description", func(tx *DailyTransaction) { tx.Description = "  " }, ErrEmptyDescription},
		{"long description", func(tx *DailyTransaction) { tx.Description = string(long) }, ErrDescriptionTooLong},
		{"zero amount", func(tx *DailyTransaction) { tx.Amount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(tx *DailyTransaction) { tx.Amount = decimal.NewFromInt(-3) }, ErrInvalidAmount},
		{"bad type", func(tx *DailyTransaction) { tx.Type = "gift" }, ErrInvalidType},
		{"zero date", func(tx *DailyTransaction) { tx.Date = Date{} }, ErrInvalidDate},
		{"no client", func(tx *DailyTransaction) { tx.ClientID = "" }, ErrMissingClient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := good
			tt.mutate(&tx)
			if err := tx.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSignedAmount(t *testing.T) {
	amount := decimal.NewFromInt(40)
	if got := Expense.Signed(amount); !got.Equal(decimal.NewFromInt(-40)) {
		t.Fatalf("expense signed = %s", got)
	}
	if got := Income.Signed(amount); !got.Equal(amount) {
		t.Fatalf("income signed = %s", got)
	}
}

func TestAffectsBalance(t *testing.T) {
	base := DailyTransaction{Amount: decimal.RequireFromString("10.00"), Type: Expense, Date: NewDate(2025, 5, 1)}

	same := base
	same.Amount = decimal.RequireFromString("10")
	same.Description = "renamed"
	if base.AffectsBalance(same) {
		t.Fatalf("equal amount with different scale must not affect balance")
	}

	moved := base
	moved.Date = NewDate(2025, 6, 1)
	if !base.AffectsBalance(moved) {
		t.Fatalf("date change must affect balance")
	}

	flipped := base
	flipped.Type = Income
	if !base.AffectsBalance(flipped) {
		t.Fatalf("type change must affect balance")
	}
}

func TestMonthlyBudgetRebaseAndDelta(t *testing.T) {
	b := NewMonthlyBudget("b1", "c1", 2025, 6, decimal.NewFromInt(5000), time.Now())
	if b.DaysInMonth != 30 || !b.RemainingBalance.IsZero() || !b.DailyBudget.IsZero() {
		t.Fatalf("unexpected new budget %+v", b)
	}

	b.BudgetAmount = decimal.NewFromInt(60)
	b.IsPercentage = true
	if err := b.Rebase(); err != nil {
		t.Fatalf("rebase: %v", err)
	}
	if !b.RemainingBalance.Equal(decimal.NewFromInt(3000)) || !b.DailyBudget.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected rebase result remaining=%s daily=%s", b.RemainingBalance, b.DailyBudget)
	}

	b.ApplyDelta(decimal.NewFromInt(15), false)
	b.ApplyDelta(decimal.NewFromInt(500), true)
	if !b.RemainingBalance.Equal(decimal.NewFromInt(3485)) {
		t.Fatalf("remaining = %s, want 3485", b.RemainingBalance)
	}
	if !b.Covers(NewDate(2025, 6, 30)) || b.Covers(NewDate(2025, 7, 1)) {
		t.Fatalf("Covers mismatch")
	}
}
