package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"saldo/internal/core"
	"saldo/internal/log"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case core.IsValidation(err), errors.Is(err, errBadRequest):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with the matching status. Internal failures are
// logged and hidden from the caller.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		ctx := c.Request.Context()
		log.FromContext(ctx).WithComponent(log.ComponentHTTP).ErrorContext(ctx, "Request failed",
			log.FieldErrorType, log.ErrorTypeInternal,
			log.FieldMethod, c.Request.Method,
			log.FieldPath, c.FullPath(),
			log.FieldError, err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}
