package handlers

import (
	"net/http"

	"github.com/dlsarena/backend/internal/auth"
	"github.com/gin-gonic/gin"
)

// POST /api/v1/matches
func CreateMatch(matches MatchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			WagerTier string `json:"wagerTier" binding:"required"`
			IsRandom  bool   `json:"isRandom"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "wagerTier is required"})
			return
		}

		m, err := matches.CreateMatch(c.Request.Context(), auth.UserID(c), req.WagerTier, req.IsRandom)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"match": m})
	}
}

// GET /api/v1/matches
func ListMatches(matches MatchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		active, err := matches.ActiveMatches(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"matches": active})
	}
}

// GET /api/v1/matches/history
func MatchHistory(matches MatchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		history, err := matches.MatchHistory(c.Request.Context(), auth.UserID(c), queryLimit(c, 10, 50))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"matches": history})
	}
}

// GET /api/v1/matches/:id
func GetMatch(matches MatchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, err := matches.GetMatch(c.Request.Context(), auth.UserID(c), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"match": m})
	}
}

// POST /api/v1/matches/join
func JoinMatch(matches MatchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			MatchCode string `json:"matchCode" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "matchCode is required"})
			return
		}

		m, err := matches.JoinMatch(c.Request.Context(), auth.UserID(c), req.MatchCode)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"match": m})
	}
}

// POST /api/v1/matches/:id/result
func SubmitResult(matches MatchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			WinnerID   string `json:"winnerId" binding:"required"`
			DLSMatchID string `json:"dlsMatchId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "winnerId and dlsMatchId are required"})
			return
		}

		out, err := matches.SubmitResult(c.Request.Context(), auth.UserID(c), c.Param("id"), req.WinnerID, req.DLSMatchID)
		if err != nil {
			respondError(c, err)
			return
		}
		if out.Disputed {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":    "Match result could not be verified",
				"disputed": true,
				"reason":   out.Reason,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"match": out.Match, "payout": out.Payout})
	}
}
