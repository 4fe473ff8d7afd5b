package handlers

import (
	"errors"
	"net/http"
	"waitline/internal/queue"
	"waitline/internal/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func validationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.ErrorResponse{
		Code:    response.CodeValidation,
		Message: "Invalid request data",
		Details: err.Error(),
	})
}

// queueError maps an engine error to its HTTP status and error code.
func queueError(c *gin.Context, log *zap.Logger, err error) {
	status, code, message := http.StatusInternalServerError, response.CodeInternal, "Internal server error"
	switch {
	case queue.IsValidationError(err):
		status, code, message = http.StatusBadRequest, response.CodeValidation, "Invalid request data"
	case errors.Is(err, queue.ErrCapacityExceeded):
		status, code, message = http.StatusConflict, response.CodeQueueFull, "Queue is full"
	case errors.Is(err, queue.ErrDuplicateEntry):
		status, code, message = http.StatusConflict, response.CodeAlreadyInQueue, "Customer is already in this queue"
	case errors.Is(err, queue.ErrInvalidTransition):
		status, code, message = http.StatusConflict, response.CodeInvalidTransition, "Entry can not change to that status"
	case errors.Is(err, queue.ErrEntryNotFound):
		status, code, message = http.StatusNotFound, response.CodeEntryNotFound, "Entry not found"
	case errors.Is(err, queue.ErrNotFound):
		status, code, message = http.StatusNotFound, response.CodeQueueNotFound, "Queue not found"
	case errors.Is(err, queue.ErrQueueInactive):
		status, code, message = http.StatusBadRequest, response.CodeQueueInactive, "Queue is not accepting entries"
	case errors.Is(err, queue.ErrForbidden):
		status, code, message = http.StatusForbidden, response.CodeForbidden, "Operation not permitted"
	case queue.IsTransient(err):
		status, code, message = http.StatusServiceUnavailable, response.CodeConcurrency, "Queue is busy, try again"
	}

	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		log.Error("queue operation failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, response.ErrorResponse{Code: code, Message: message})
		return
	}
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
	}
	c.JSON(status, response.ErrorResponse{Code: code, Message: message, Details: err.Error()})
}
