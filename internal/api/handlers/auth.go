package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/dlsarena/backend/internal/auth"
	"github.com/dlsarena/backend/internal/models"
	"github.com/dlsarena/backend/internal/store"
	"github.com/gin-gonic/gin"
)

func setSessionCookie(c *gin.Context, token string, maxAge int, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, maxAge, "/", "", secure, true)
}

func issueSession(c *gin.Context, sessions *auth.Sessions, u *models.User, secure bool) (string, bool) {
	token, _, err := sessions.Issue(u.ID, u.Email)
	if err != nil {
		log.Printf("[AUTH] Failed to sign token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return "", false
	}
	setSessionCookie(c, token, int(sessions.TTL().Seconds()), secure)
	return token, true
}

// POST /api/v1/auth/register
func Register(users UserStore, sessions *auth.Sessions, secureCookies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required,email"`
			Name     string `json:"name" binding:"required,max=64"`
			Password string `json:"password" binding:"required,min=8,max=72"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email, name and a password of at least 8 characters are required"})
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			log.Printf("[AUTH] Failed to hash password: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		u := &models.User{Email: req.Email, Name: req.Name, PasswordHash: hash}
		if err := users.CreateUser(c.Request.Context(), u); err != nil {
			if errors.Is(err, store.ErrDuplicateEmail) {
				c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
				return
			}
			log.Printf("[AUTH] Failed to create user %s: %v", req.Email, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
			return
		}

		token, ok := issueSession(c, sessions, u, secureCookies)
		if !ok {
			return
		}
		log.Printf("[AUTH] Registered user %s", u.ID)
		c.JSON(http.StatusCreated, gin.H{"user": u, "token": token})
	}
}

// POST /api/v1/auth/login
func Login(users UserStore, sessions *auth.Sessions, secureCookies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
			return
		}

		u, err := users.GetUserByEmail(c.Request.Context(), req.Email)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("[AUTH] Login lookup failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if u == nil || !auth.CheckPassword(u.PasswordHash, req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}

		token, ok := issueSession(c, sessions, u, secureCookies)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": u, "token": token})
	}
}

// POST /api/v1/auth/logout
func Logout(sessions *auth.Sessions, secureCookies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := auth.TokenFromRequest(c); token != "" {
			if err := sessions.Revoke(c.Request.Context(), token); err != nil {
				log.Printf("[AUTH] Failed to revoke token: %v", err)
			}
		}
		setSessionCookie(c, "", -1, secureCookies)
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// GET /api/v1/user/me
func GetMe(users UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := users.GetUserByID(c.Request.Context(), auth.UserID(c))
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if err != nil {
			log.Printf("[AUTH] GetMe failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": u})
	}
}
