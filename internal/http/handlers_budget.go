package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"saldo/internal/core"
)

func (s *Server) handleListBudgets(c *gin.Context) {
	list, err := s.deps.Budgets.List(c.Request.Context(), c.Param("clientID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"budgets": mapSlice(list, newBudgetResponse)})
}

func (s *Server) handleGetOrCreateBudget(c *gin.Context) {
	year, month, err := parseYearMonth(c)
	if err != nil {
		respondError(c, err)
		return
	}
	salary, err := parseOptionalSalary(c)
	if err != nil {
		respondError(c, err)
		return
	}
	b, err := s.deps.Budgets.GetOrCreate(c.Request.Context(), c.Param("clientID"), year, month, salary)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBudgetResponse(b))
}

func (s *Server) handleGetBudget(c *gin.Context) {
	b, ok := s.ownedBudget(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newBudgetResponse(b))
}

func (s *Server) handleUpdateSalary(c *gin.Context) {
	b, ok := s.ownedBudget(c)
	if !ok {
		return
	}
	var req salaryRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	salary, err := core.ParseNonNegative(string(req.Salary))
	if err != nil {
		respondError(c, err)
		return
	}
	b, err = s.deps.Budgets.UpdateSalary(c.Request.Context(), b.ID, salary)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBudgetResponse(b))
}

func (s *Server) handleUpdateBudgetAmount(c *gin.Context) {
	b, ok := s.ownedBudget(c)
	if !ok {
		return
	}
	var req budgetAmountRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	amount, err := core.ParseNonNegative(string(req.Amount))
	if err != nil {
		respondError(c, err)
		return
	}
	b, err = s.deps.Budgets.UpdateBudgetAmount(c.Request.Context(), b.ID, amount, req.IsPercentage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBudgetResponse(b))
}

func (s *Server) handleDeleteBudget(c *gin.Context) {
	b, ok := s.ownedBudget(c)
	if !ok {
		return
	}
	if err := s.deps.Budgets.Delete(c.Request.Context(), b.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ownedBudget loads :budgetID and checks it belongs to :clientID, writing
// the error response when it does not.
func (s *Server) ownedBudget(c *gin.Context) (core.MonthlyBudget, bool) {
	b, err := s.deps.Budgets.Get(c.Request.Context(), c.Param("budgetID"))
	if err != nil {
		respondError(c, err)
		return core.MonthlyBudget{}, false
	}
	if b.ClientID != c.Param("clientID") {
		respondError(c, core.ErrForbidden)
		return core.MonthlyBudget{}, false
	}
	return b, true
}
