package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dlsarena/backend/internal/api"
	"github.com/dlsarena/backend/internal/auth"
	"github.com/dlsarena/backend/internal/config"
	"github.com/dlsarena/backend/internal/database"
	"github.com/dlsarena/backend/internal/exchange"
	"github.com/dlsarena/backend/internal/jobs"
	"github.com/dlsarena/backend/internal/ledger"
	"github.com/dlsarena/backend/internal/match"
	"github.com/dlsarena/backend/internal/migrations"
	redisstore "github.com/dlsarena/backend/internal/redis"
	"github.com/dlsarena/backend/internal/stats"
	"github.com/dlsarena/backend/internal/store"
	"github.com/dlsarena/backend/internal/verifier"
	"github.com/dlsarena/backend/internal/ws"
	"github.com/gin-gonic/gin"
)

func main() {
	// Initialize configuration (loads .env if present)
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		log.Println("[MIGRATE] Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL, "migrations"); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize Redis. Development can run without it on in-process locks.
	rdb, err := redisstore.Connect(cfg.RedisURL)
	if err != nil {
		if cfg.Environment == "production" {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		log.Printf("[REDIS] Unavailable (%v), falling back to in-process locks and delivery", err)
	} else {
		defer rdb.Close()
	}

	st := store.New(db)

	// Exchange account provider
	var provider exchange.Provider
	if client := exchange.NewClient(cfg, rdb); client != nil {
		provider = client
		log.Printf("[EXCHANGE] Client initialized (base=%s)", cfg.ExchangeBaseURL)
	} else {
		provider = exchange.NewSandbox(cfg.SandboxBalance)
		log.Printf("[EXCHANGE] Not configured - ledger operations will use the sandbox")
	}
	gateway := ledger.NewGateway(st, provider, ledger.NewPostgresJournal(db), cfg.LedgerTimeout())
	if rdb != nil {
		gateway.WithOutbox(redisstore.NewOutbox(rdb))
	}

	// Result verification
	var tracker verifier.Tracker = verifier.UnavailableTracker{}
	if cfg.TrackerBaseURL != "" {
		tracker = verifier.NewTrackerClient(cfg.TrackerBaseURL, st, rdb, time.Duration(cfg.TrackerCacheSeconds)*time.Second)
		log.Printf("[VERIFIER] Tracker at %s", cfg.TrackerBaseURL)
	} else {
		log.Printf("[VERIFIER] TRACKER_BASE_URL not set - every submitted result will be disputed")
	}
	resultVerifier := verifier.New(tracker, cfg.VerifierTimeout())

	var board stats.Board
	if rdb != nil {
		board = redisstore.NewLeaderboard(rdb)
	}
	updater := stats.NewUpdater(db, board)

	// Realtime delivery
	hub := ws.NewHub()
	go hub.Run(ctx)
	publisher := ws.NewPublisher(rdb, hub)
	publisher.StartSubscriber(ctx)

	var locker match.Locker = match.NewLocalLocker()
	if rdb != nil {
		locker = redisstore.NewLocker(rdb, cfg.MatchLockTTL())
	}

	matches := match.NewService(cfg, match.Deps{
		Store:    st,
		Ledger:   gateway,
		Verifier: resultVerifier,
		Stats:    updater,
		Notifier: publisher,
		Locker:   locker,
	})

	scheduler, err := jobs.Start(ctx, jobs.Intervals{
		LeaderboardSync: time.Duration(cfg.LeaderboardSyncMinutes) * time.Minute,
		OutboxFlush:     time.Duration(cfg.OutboxFlushSeconds) * time.Second,
	}, updater, gateway)
	if err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Shutdown()

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	api.SetupRoutes(router, cfg, api.Deps{
		Matches:  matches,
		Users:    st,
		Stats:    updater,
		Wallet:   gateway,
		Exchange: provider,
		Sessions: auth.NewSessions(cfg.JWTSecret, cfg.SessionTTL(), rdb),
		Hub:      hub,
	})

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: router}

	go func() {
		log.Printf("Starting DLS Arena server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
