package handler

import (
	"errors"
	"log"
	"net/http"

	"gigmarket/backend/internal/jobs"
	"gigmarket/backend/internal/orders"

	"github.com/gin-gonic/gin"
)

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func respondValidation(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "VALIDATION_ERROR",
			"message": "Invalid request data",
			"details": err.Error(),
		},
	})
}

// respondOrderError maps the order error taxonomy onto HTTP.
func respondOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		respondError(c, http.StatusNotFound, "ORDER_NOT_FOUND", err.Error())
	case errors.Is(err, orders.ErrInvalidStatus):
		respondError(c, http.StatusBadRequest, "INVALID_STATUS", err.Error())
	case errors.Is(err, orders.ErrInvalidTransition):
		respondError(c, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, orders.ErrConflict):
		respondError(c, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, orders.ErrUnauthorized):
		respondError(c, http.StatusForbidden, "FORBIDDEN", "You are not allowed to perform this action")
	case errors.Is(err, orders.ErrSelfOrder),
		errors.Is(err, orders.ErrEmptyMessage),
		errors.Is(err, orders.ErrMessageTooLong),
		errors.Is(err, orders.ErrInvalidReview):
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	default:
		log.Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to process order")
	}
}

func respondJobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, jobs.ErrForbidden):
		respondError(c, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, jobs.ErrInvalidUpdate):
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, jobs.ErrUnavailable):
		respondError(c, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error())
	default:
		log.Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to process job")
	}
}
