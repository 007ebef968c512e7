package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/services"
)

var errBadRequest = errors.New("malformed request")

// amountField accepts amounts as JSON strings ("12.34") or numbers (12.34).
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return core.ErrInvalidAmount
	}
	*a = amountField(n.String())
	return nil
}

type createTransactionRequest struct {
	Description string      `json:"description"`
	Amount      amountField `json:"amount"`
	Type        string      `json:"type"`
	Date        string      `json:"date"`
	CategoryID  *string     `json:"category_id"`
}

func (r createTransactionRequest) input(clientID string) (services.CreateTransactionInput, error) {
	amount, err := core.ParseAmount(string(r.Amount))
	if err != nil {
		return services.CreateTransactionInput{}, err
	}
	typ, err := core.ParseTransactionType(r.Type)
	if err != nil {
		return services.CreateTransactionInput{}, err
	}
	date, err := core.ParseDate(r.Date)
	if err != nil {
		return services.CreateTransactionInput{}, err
	}
	return services.CreateTransactionInput{
		Description: sanitizeInput(r.Description),
		Amount:      amount,
		Type:        typ,
		Date:        date,
		ClientID:    clientID,
		CategoryID:  trimID(r.CategoryID),
	}, nil
}

type updateTransactionRequest struct {
	Description   *string      `json:"description"`
	Amount        *amountField `json:"amount"`
	Type          *string      `json:"type"`
	Date          *string      `json:"date"`
	CategoryID    *string      `json:"category_id"`
	ClearCategory bool         `json:"clear_category"`
}

func (r updateTransactionRequest) input() (services.UpdateTransactionInput, error) {
	var in services.UpdateTransactionInput
	if r.Description != nil {
		d := sanitizeInput(*r.Description)
		in.Description = &d
	}
	if r.Amount != nil {
		amount, err := core.ParseAmount(string(*r.Amount))
		if err != nil {
			return in, err
		}
		in.Amount = &amount
	}
	if r.Type != nil {
		typ, err := core.ParseTransactionType(*r.Type)
		if err != nil {
			return in, err
		}
		in.Type = &typ
	}
	if r.Date != nil {
		date, err := core.ParseDate(*r.Date)
		if err != nil {
			return in, err
		}
		in.Date = &date
	}
	if r.ClearCategory && r.CategoryID != nil {
		return in, fmt.Errorf("%w: category_id and clear_category are exclusive", errBadRequest)
	}
	in.CategoryID = trimID(r.CategoryID)
	in.ClearCategory = r.ClearCategory
	return in, nil
}

type salaryRequest struct {
	Salary amountField `json:"salary"`
}

type budgetAmountRequest struct {
	Amount       amountField `json:"amount"`
	IsPercentage bool        `json:"is_percentage"`
}

// bindJSON decodes the request body into dst, reporting malformed bodies as
// validation errors.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// parseYearMonth reads year and month path parameters.
func parseYearMonth(c *gin.Context) (year, month int, err error) {
	year, err = strconv.Atoi(c.Param("year"))
	if err != nil {
		return 0, 0, core.ErrInvalidDate
	}
	month, err = strconv.Atoi(c.Param("month"))
	if err != nil {
		return 0, 0, core.ErrInvalidDate
	}
	return year, month, core.ValidateYearMonth(year, month)
}

// parseQueryYearMonth reads year and month query parameters, defaulting each
// to the current one.
func parseQueryYearMonth(c *gin.Context, now time.Time) (year, month int, err error) {
	year, month = now.Year(), int(now.Month())
	if v := strings.TrimSpace(c.Query("year")); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			return 0, 0, core.ErrInvalidDate
		}
	}
	if v := strings.TrimSpace(c.Query("month")); v != "" {
		if month, err = strconv.Atoi(v); err != nil {
			return 0, 0, core.ErrInvalidDate
		}
	}
	return year, month, core.ValidateYearMonth(year, month)
}

// parseDateQuery reads a YYYY-MM-DD query parameter, falling back to def.
func parseDateQuery(c *gin.Context, key string, def core.Date) (core.Date, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return def, nil
	}
	return core.ParseDate(v)
}

// parseOptionalSalary reads the salary query parameter of get-or-create.
func parseOptionalSalary(c *gin.Context) (*decimal.Decimal, error) {
	v := strings.TrimSpace(c.Query("salary"))
	if v == "" {
		return nil, nil
	}
	salary, err := core.ParseNonNegative(v)
	if err != nil {
		return nil, core.ErrInvalidRange
	}
	return &salary, nil
}

func trimID(id *string) *string {
	if id == nil {
		return nil
	}
	v := strings.TrimSpace(*id)
	if v == "" {
		return nil
	}
	return &v
}

// sanitizeInput drops control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
