package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PabloGalante/chatrelay/internal/domain"
	"github.com/PabloGalante/chatrelay/internal/observability"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

func writeSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusSuccess,
		"data":   data,
	})
}

// writeError maps err onto a status code. Internal failures are logged and
// reported without detail.
func writeError(c *gin.Context, err error) {
	var (
		status = http.StatusInternalServerError
		msg    = "internal server error"
		perr   *domain.ProviderError
	)

	switch {
	case domain.IsNotFound(err):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrEmptyContent), errors.Is(err, domain.ErrInvalidRole):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.As(err, &perr):
		status, msg = http.StatusBadGateway, "upstream model failure"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status, msg = http.StatusServiceUnavailable, "request abandoned before completion"
	}

	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(c.Request.Context()).Error("request failed",
			"status", status,
			"error", err,
		)
	}

	c.AbortWithStatusJSON(status, gin.H{
		"status": statusError,
		"error":  msg,
	})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"status": statusError,
		"error":  msg,
	})
}
