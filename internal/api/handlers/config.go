package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetConfig returns the wager tiers and fee the frontend displays
func GetConfig(matches MatchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"wager_tiers":          matches.Tiers(),
			"platform_fee_percent": matches.FeePercent(),
		})
	}
}
