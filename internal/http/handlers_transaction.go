package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"saldo/internal/core"
)

func (s *Server) handleCreateTransaction(c *gin.Context) {
	var req createTransactionRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	in, err := req.input(c.Param("clientID"))
	if err != nil {
		respondError(c, err)
		return
	}
	tx, err := s.deps.Ledger.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTransactionResponse(tx))
}

// handleListTransactions lists ?from= to ?to=, defaulting to the current
// month.
func (s *Server) handleListTransactions(c *gin.Context) {
	now := s.now()
	first, last := core.MonthRange(now.Year(), int(now.Month()))
	from, err := parseDateQuery(c, "from", first)
	if err != nil {
		respondError(c, err)
		return
	}
	to, err := parseDateQuery(c, "to", last)
	if err != nil {
		respondError(c, err)
		return
	}
	list, err := s.deps.Ledger.List(c.Request.Context(), c.Param("clientID"), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"from":         from,
		"to":           to,
		"transactions": mapSlice(list, newTransactionResponse),
	})
}

func (s *Server) handleGetTransaction(c *gin.Context) {
	tx, ok := s.ownedTransaction(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newTransactionResponse(tx))
}

func (s *Server) handleUpdateTransaction(c *gin.Context) {
	tx, ok := s.ownedTransaction(c)
	if !ok {
		return
	}
	var req updateTransactionRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		respondError(c, err)
		return
	}
	tx, err = s.deps.Ledger.Update(c.Request.Context(), tx.ID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTransactionResponse(tx))
}

func (s *Server) handleDeleteTransaction(c *gin.Context) {
	tx, ok := s.ownedTransaction(c)
	if !ok {
		return
	}
	if err := s.deps.Ledger.Delete(c.Request.Context(), tx.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) ownedTransaction(c *gin.Context) (core.DailyTransaction, bool) {
	tx, err := s.deps.Ledger.Get(c.Request.Context(), c.Param("transactionID"))
	if err != nil {
		respondError(c, err)
		return core.DailyTransaction{}, false
	}
	if tx.ClientID != c.Param("clientID") {
		respondError(c, core.ErrForbidden)
		return core.DailyTransaction{}, false
	}
	return tx, true
}
