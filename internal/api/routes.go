package api

import (
	"log"

	"github.com/dlsarena/backend/internal/api/handlers"
	"github.com/dlsarena/backend/internal/auth"
	"github.com/dlsarena/backend/internal/config"
	"github.com/dlsarena/backend/internal/middleware"
	"github.com/dlsarena/backend/internal/ws"
	"github.com/gin-gonic/gin"
)

// Deps are the services the HTTP layer calls into
type Deps struct {
	Matches  handlers.MatchService
	Users    handlers.UserStore
	Stats    handlers.StatsReader
	Wallet   handlers.Wallet
	Exchange handlers.CredentialVerifier
	Sessions *auth.Sessions
	Hub      *ws.Hub
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, cfg *config.Config, d Deps) {
	router.Use(middleware.CORSMiddleware(cfg))

	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] No-cache headers enabled for all routes")
	}

	secure := cfg.Environment == "production"
	requireAuth := auth.Middleware(d.Sessions)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)
		v1.GET("/config", handlers.GetConfig(d.Matches))
		v1.GET("/leaderboard", handlers.GetLeaderboard(d.Stats))

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", handlers.Register(d.Users, d.Sessions, secure))
			authGroup.POST("/login", handlers.Login(d.Users, d.Sessions, secure))
			authGroup.POST("/logout", handlers.Logout(d.Sessions, secure))
		}

		user := v1.Group("/user", requireAuth)
		{
			user.GET("/me", handlers.GetMe(d.Users))
			user.GET("/stats", handlers.GetUserStats(d.Stats))
			user.GET("/balance", handlers.GetBalance(d.Wallet, d.Stats))
			user.GET("/transactions", handlers.GetTransactions(d.Wallet))
		}

		settings := v1.Group("/settings", requireAuth)
		{
			settings.GET("", handlers.GetSettings(d.Users))
			settings.POST("/exchange", handlers.LinkExchange(d.Users, d.Exchange))
			settings.DELETE("/exchange", handlers.UnlinkExchange(d.Users))
			settings.POST("/dls-id", handlers.SetDLSID(d.Users))
			settings.POST("/notifications", handlers.SaveNotifications(d.Users))
		}

		v1.GET("/matches", handlers.ListMatches(d.Matches))
		matches := v1.Group("/matches", requireAuth)
		{
			matches.POST("", handlers.CreateMatch(d.Matches))
			matches.GET("/history", handlers.MatchHistory(d.Matches))
			matches.POST("/join", handlers.JoinMatch(d.Matches))
			matches.GET("/:id", handlers.GetMatch(d.Matches))
			matches.POST("/:id/result", handlers.SubmitResult(d.Matches))
		}

		v1.GET("/ws", middleware.WebSocketCORSCheck(cfg), requireAuth, ws.HandleWebSocket(d.Hub))
	}
}
