package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"saldo/internal/core"
)

func (s *Server) handleDailyExpenses(c *gin.Context) {
	date, err := parseDateQuery(c, "date", core.DateOf(s.now()))
	if err != nil {
		respondError(c, err)
		return
	}
	total, err := s.deps.Aggregator.SumExpensesByDate(c.Request.Context(), c.Param("clientID"), date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "total": money(total)})
}

func (s *Server) handleMonthlyExpenses(c *gin.Context) {
	year, month, err := parseQueryYearMonth(c, s.now())
	if err != nil {
		respondError(c, err)
		return
	}
	total, err := s.deps.Aggregator.SumExpensesByMonth(c.Request.Context(), c.Param("clientID"), year, month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"year": year, "month": month, "total": money(total)})
}

func (s *Server) handleMonthSpending(c *gin.Context) {
	year, month, err := parseYearMonth(c)
	if err != nil {
		respondError(c, err)
		return
	}
	report, err := s.deps.Aggregator.MonthSpending(c.Request.Context(), c.Param("clientID"), year, month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSpendingResponse(report))
}

func (s *Server) handleListAlerts(c *gin.Context) {
	if s.deps.Alerts == nil {
		c.JSON(http.StatusOK, gin.H{"alerts": []alertResponse{}})
		return
	}
	list, err := s.deps.Alerts.ListAlerts(c.Request.Context(), c.Param("clientID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": mapSlice(list, newAlertResponse)})
}
