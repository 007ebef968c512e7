package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventTransactionCreated EventType = "transaction.created"
	EventTransactionUpdated EventType = "transaction.updated"
	EventTransactionDeleted EventType = "transaction.deleted"
	EventBudgetCreated      EventType = "budget.created"
	EventBudgetUpdated      EventType = "budget.updated"
	EventBudgetDeleted      EventType = "budget.deleted"
)

type EventType string

// IsTransaction reports whether the event was caused by a ledger entry.
func (t EventType) IsTransaction() bool {
	switch t {
	case EventTransactionCreated, EventTransactionUpdated, EventTransactionDeleted:
		return true
	}
	return false
}

// LedgerEvent describes a committed change to a budget's remaining balance.
type LedgerEvent struct {
	ID               string
	Type             EventType
	ClientID         string
	BudgetID         string
	TransactionID    string
	Date             Date
	Amount           decimal.Decimal
	RemainingBalance decimal.Decimal
	OccurredAt       time.Time
}

func NewBudgetEvent(t EventType, b MonthlyBudget, now time.Time) LedgerEvent {
	return LedgerEvent{
		ID:               uuid.NewString(),
		Type:             t,
		ClientID:         b.ClientID,
		BudgetID:         b.ID,
		RemainingBalance: b.RemainingBalance,
		OccurredAt:       now,
	}
}

// NewTransactionEvent reports tx against b, the budget it was applied to or
// removed from.
func NewTransactionEvent(t EventType, tx DailyTransaction, b MonthlyBudget, now time.Time) LedgerEvent {
	ev := NewBudgetEvent(t, b, now)
	ev.TransactionID = tx.ID
	ev.Date = tx.Date
	ev.Amount = tx.Amount
	return ev
}
