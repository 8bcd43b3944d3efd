package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /api/v1/leaderboard
func GetLeaderboard(stats StatsReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := stats.Leaderboard(c.Request.Context(), queryLimit(c, 10, 100))
		if err != nil {
			log.Printf("[STATS] Failed to load leaderboard: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch leaderboard"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
	}
}
