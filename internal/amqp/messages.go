package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// LedgerEventMessage is the wire form of a committed ledger event.
// Amounts travel as fixed two-decimal strings.
type LedgerEventMessage struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	ClientID         string    `json:"client_id"`
	BudgetID         string    `json:"budget_id"`
	TransactionID    string    `json:"transaction_id,omitempty"`
	Date             string    `json:"date,omitempty"`
	Amount           string    `json:"amount,omitempty"`
	RemainingBalance string    `json:"remaining_balance"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewLedgerEventMessage converts ev to its wire form.
func NewLedgerEventMessage(ev core.LedgerEvent) *LedgerEventMessage {
	msg := &LedgerEventMessage{
		ID:               ev.ID,
		Type:             string(ev.Type),
		ClientID:         ev.ClientID,
		BudgetID:         ev.BudgetID,
		TransactionID:    ev.TransactionID,
		RemainingBalance: ev.RemainingBalance.StringFixed(2),
		Timestamp:        ev.OccurredAt,
	}
	if !ev.Date.IsZero() {
		msg.Date = ev.Date.String()
	}
	if ev.TransactionID != "" {
		msg.Amount = ev.Amount.StringFixed(2)
	}
	return msg
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Event converts the message back into a ledger event.
func (m *LedgerEventMessage) Event() (core.LedgerEvent, error) {
	ev := core.LedgerEvent{
		ID:            m.ID,
		Type:          core.EventType(m.Type),
		ClientID:      m.ClientID,
		BudgetID:      m.BudgetID,
		TransactionID: m.TransactionID,
		OccurredAt:    m.Timestamp,
	}
	if ev.Type == "" || ev.BudgetID == "" {
		return core.LedgerEvent{}, fmt.Errorf("message %q: missing type or budget", m.ID)
	}
	var err error
	if m.Date != "" {
		if ev.Date, err = core.ParseDate(m.Date); err != nil {
			return core.LedgerEvent{}, fmt.Errorf("message %q: %w", m.ID, err)
		}
	}
	if m.Amount != "" {
		if ev.Amount, err = decimal.NewFromString(m.Amount); err != nil {
			return core.LedgerEvent{}, fmt.Errorf("message %q: amount: %w", m.ID, err)
		}
	}
	if ev.RemainingBalance, err = decimal.NewFromString(m.RemainingBalance); err != nil {
		return core.LedgerEvent{}, fmt.Errorf("message %q: remaining balance: %w", m.ID, err)
	}
	return ev, nil
}

// LedgerEventMessageFromJSON creates a message from JSON bytes
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
