package middleware

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dlsarena/backend/internal/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var devOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
}

// allowedOrigins lists browser origins permitted to call the API with credentials
func allowedOrigins(cfg *config.Config) []string {
	if cfg.Environment == "development" {
		origins := append([]string{}, devOrigins...)
		if cfg.FrontendURL != "" && !contains(origins, cfg.FrontendURL) {
			origins = append(origins, cfg.FrontendURL)
		}
		return origins
	}
	if cfg.FrontendURL != "" {
		return []string{cfg.FrontendURL}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// CORSMiddleware returns a CORS middleware configured for the environment
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	origins := allowedOrigins(cfg)
	log.Printf("[CORS] Environment: %s, allowed origins: %v", cfg.Environment, origins)

	corsConfig := cors.Config{
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin", "Content-Length", "Content-Type", "Authorization",
			"Accept", "Cache-Control", "X-Requested-With",
		},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		// no frontend configured: same-origin only
		corsConfig.AllowOriginFunc = func(string) bool { return false }
	} else {
		corsConfig.AllowOrigins = origins
	}

	return cors.New(corsConfig)
}

// WebSocketCORSCheck validates WebSocket upgrade origins
func WebSocketCORSCheck(cfg *config.Config) gin.HandlerFunc {
	origins := allowedOrigins(cfg)
	return func(c *gin.Context) {
		if strings.ToLower(c.GetHeader("Upgrade")) != "websocket" {
			c.Next()
			return
		}

		origin := c.GetHeader("Origin")
		if origin == "" {
			// non-browser clients send no origin
			c.Next()
			return
		}

		allowed := contains(origins, origin)
		if cfg.Environment == "development" {
			allowed = allowed || strings.HasPrefix(origin, "http://localhost:") ||
				strings.HasPrefix(origin, "http://127.0.0.1:")
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "WebSocket origin not allowed"})
			return
		}
		c.Next()
	}
}
