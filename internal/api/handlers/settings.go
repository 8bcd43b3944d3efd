package handlers

import (
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/dlsarena/backend/internal/auth"
	"github.com/dlsarena/backend/internal/models"
	"github.com/dlsarena/backend/internal/store"
	"github.com/gin-gonic/gin"
)

// tracker team ids are 8 lowercase alphanumerics
var dlsIDPattern = regexp.MustCompile(`^[a-z0-9]{8}$`)

// GET /api/v1/settings
func GetSettings(users UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		settings, err := users.GetSettings(c.Request.Context(), auth.UserID(c))
		if err != nil {
			log.Printf("[SETTINGS] Failed to load settings: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch settings"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"settings": settings})
	}
}

// POST /api/v1/settings/exchange
func LinkExchange(users UserStore, verifier CredentialVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			APIKey    string `json:"apiKey" binding:"required"`
			APISecret string `json:"apiSecret" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "apiKey and apiSecret are required"})
			return
		}

		valid, err := verifier.VerifyCredentials(c.Request.Context(), req.APIKey, req.APISecret)
		if err != nil {
			log.Printf("[SETTINGS] Credential check failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to connect exchange account"})
			return
		}
		if !valid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid exchange API credentials"})
			return
		}

		userID := auth.UserID(c)
		if err := users.LinkExchange(c.Request.Context(), userID, req.APIKey, req.APISecret); err != nil {
			log.Printf("[SETTINGS] Failed to link exchange for %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to connect exchange account"})
			return
		}
		log.Printf("[SETTINGS] Exchange account linked for %s", userID)
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// DELETE /api/v1/settings/exchange
func UnlinkExchange(users UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := auth.UserID(c)
		if err := users.UnlinkExchange(c.Request.Context(), userID); err != nil {
			log.Printf("[SETTINGS] Failed to unlink exchange for %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to disconnect exchange account"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// POST /api/v1/settings/dls-id
func SetDLSID(users UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			DLSID string `json:"dlsId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "dlsId is required"})
			return
		}
		dlsID := strings.ToLower(strings.TrimSpace(req.DLSID))
		if !dlsIDPattern.MatchString(dlsID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid DLS ID format"})
			return
		}

		err := users.SetDLSID(c.Request.Context(), auth.UserID(c), dlsID)
		if errors.Is(err, store.ErrDuplicateDLSID) {
			c.JSON(http.StatusConflict, gin.H{"error": "DLS ID already linked to another account"})
			return
		}
		if err != nil {
			log.Printf("[SETTINGS] Failed to update DLS ID: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update DLS ID"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// POST /api/v1/settings/notifications
func SaveNotifications(users UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			TransactionUpdates *bool `json:"transactionUpdates" binding:"required"`
			MatchAlerts        *bool `json:"matchAlerts" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "transactionUpdates and matchAlerts are required"})
			return
		}

		settings := &models.UserSettings{
			UserID:                   auth.UserID(c),
			TransactionNotifications: *req.TransactionUpdates,
			MatchNotifications:       *req.MatchAlerts,
		}
		if err := users.SaveSettings(c.Request.Context(), settings); err != nil {
			log.Printf("[SETTINGS] Failed to save notification settings: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notification settings"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "settings": settings})
	}
}
