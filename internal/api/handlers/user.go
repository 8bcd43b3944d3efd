package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/dlsarena/backend/internal/auth"
	"github.com/dlsarena/backend/internal/ledger"
	"github.com/gin-gonic/gin"
)

// GET /api/v1/user/stats
func GetUserStats(stats StatsReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := auth.UserID(c)
		s, err := stats.GetUserStats(c.Request.Context(), userID)
		if err != nil {
			log.Printf("[STATS] Failed to load stats for %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stats"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"total_games":    s.TotalGames,
			"total_wins":     s.TotalWins,
			"total_losses":   s.TotalLosses,
			"total_earnings": s.TotalEarnings,
			"top_earnings":   s.TopEarnings,
			"win_rate":       s.WinRate(),
			"rank":           stats.Rank(c.Request.Context(), userID),
		})
	}
}

// GET /api/v1/user/balance
func GetBalance(wallet Wallet, stats StatsReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := auth.UserID(c)
		resp := gin.H{"connected": false, "balance": "0"}

		balance, err := wallet.Balance(c.Request.Context(), userID)
		switch {
		case err == nil:
			resp["connected"] = true
			resp["balance"] = balance
		case errors.Is(err, ledger.ErrNoLinkedAccount):
		default:
			log.Printf("[LEDGER] Balance lookup failed for %s: %v", userID, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch balance"})
			return
		}

		if s, err := stats.GetUserStats(c.Request.Context(), userID); err == nil {
			resp["total_earnings"] = s.TotalEarnings
		}
		c.JSON(http.StatusOK, resp)
	}
}

// GET /api/v1/user/transactions
func GetTransactions(wallet Wallet) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := auth.UserID(c)
		txs, err := wallet.Transactions(c.Request.Context(), userID, queryLimit(c, 20, 100))
		if err != nil {
			log.Printf("[LEDGER] Failed to list transactions for %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"transactions": txs})
	}
}
