package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dlsarena/backend/internal/match"
	"github.com/gin-gonic/gin"
)

// respondError maps a service error to its HTTP status. Only messages
// carried by match.Error reach the client.
func respondError(c *gin.Context, err error) {
	message := "Internal server error"
	var me *match.Error
	if errors.As(err, &me) {
		message = me.Message
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, match.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, match.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, match.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, match.ErrInvalidState),
		errors.Is(err, match.ErrSelfJoin),
		errors.Is(err, match.ErrInsufficientFunds),
		errors.Is(err, match.ErrInvalidTier):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": message})
}

// queryLimit reads ?limit, falling back to def outside 1..max
func queryLimit(c *gin.Context, def, max int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 || n > max {
		return def
	}
	return n
}
