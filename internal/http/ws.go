package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/olahol/melody"

	"saldo/internal/core"
	"saldo/internal/log"
)

const sessionClientKey = "client_id"

// BalanceHub pushes committed ledger events to the WebSocket sessions of the
// event's client.
type BalanceHub struct {
	m      *melody.Melody
	logger *log.Logger
}

type balanceMessage struct {
	Type             string    `json:"type"`
	BudgetID         string    `json:"budget_id"`
	TransactionID    string    `json:"transaction_id,omitempty"`
	Date             string    `json:"date,omitempty"`
	Amount           string    `json:"amount,omitempty"`
	RemainingBalance string    `json:"remaining_balance"`
	OccurredAt       time.Time `json:"occurred_at"`
}

func NewBalanceHub(logger *log.Logger) *BalanceHub {
	if logger == nil {
		logger = log.Discard()
	}
	h := &BalanceHub{m: melody.New(), logger: logger.WithComponent(log.ComponentWebSocket)}

	h.m.Config.MaxMessageSize = 1024
	h.m.Config.PingPeriod = 30 * time.Second
	h.m.Config.PongWait = 60 * time.Second

	h.m.HandleConnect(func(s *melody.Session) {
		clientID, _ := s.Get(sessionClientKey)
		h.logger.Debug("WebSocket session opened", log.FieldClientID, clientID)
	})
	h.m.HandleDisconnect(func(s *melody.Session) {
		clientID, _ := s.Get(sessionClientKey)
		h.logger.Debug("WebSocket session closed", log.FieldClientID, clientID)
	})
	h.m.HandleError(func(s *melody.Session, err error) {
		clientID, _ := s.Get(sessionClientKey)
		h.logger.Warn("WebSocket error", log.FieldClientID, clientID, log.FieldError, err)
	})
	return h
}

// Publish implements services.Publisher.
func (h *BalanceHub) Publish(_ context.Context, ev core.LedgerEvent) error {
	msg := balanceMessage{
		Type:             string(ev.Type),
		BudgetID:         ev.BudgetID,
		TransactionID:    ev.TransactionID,
		RemainingBalance: money(ev.RemainingBalance),
		OccurredAt:       ev.OccurredAt,
	}
	if ev.TransactionID != "" {
		msg.Date = ev.Date.String()
		msg.Amount = money(ev.Amount)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal balance message: %w", err)
	}
	if h.m.IsClosed() {
		return nil
	}
	err = h.m.BroadcastFilter(body, func(s *melody.Session) bool {
		id, ok := s.Get(sessionClientKey)
		return ok && id == ev.ClientID
	})
	if err != nil {
		return fmt.Errorf("broadcast to client %s: %w", ev.ClientID, err)
	}
	return nil
}

// Handle upgrades an authenticated request. Clients follow their own
// balance; managers and admins pick one with ?client_id=.
func (h *BalanceHub) Handle(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil {
		abortUnauthorized(c)
		return
	}
	clientID := claims.Subject
	if claims.Role.privileged() {
		if q := c.Query("client_id"); q != "" {
			clientID = q
		}
	} else if q := c.Query("client_id"); q != "" && q != clientID {
		c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: "forbidden"})
		return
	}

	if err := h.m.HandleRequestWithKeys(c.Writer, c.Request, map[string]any{sessionClientKey: clientID}); err != nil {
		h.logger.WarnContext(c.Request.Context(), "WebSocket upgrade failed", log.FieldError, err)
	}
}

// Sessions returns the number of open sessions.
func (h *BalanceHub) Sessions() int {
	return h.m.Len()
}

func (h *BalanceHub) Close() error {
	if h.m.IsClosed() {
		return nil
	}
	return h.m.Close()
}
