package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL    string
	MigrateOnStart bool

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Wagers
	WagerMini          decimal.Decimal
	WagerBeast         decimal.Decimal
	WagerMonster       decimal.Decimal
	PlatformFeePercent decimal.Decimal
	JoinCodeAttempts   int
	MatchLockSeconds   int

	// External calls
	VerifierTimeoutSecs int
	LedgerTimeoutSecs   int

	// Match tracker
	TrackerBaseURL      string
	TrackerCacheSeconds int

	// Exchange account provider
	ExchangeBaseURL      string
	ExchangeTokenPath    string
	ExchangeClientID     string
	ExchangeClientSecret string
	SandboxBalance       decimal.Decimal

	// Jobs
	LeaderboardSyncMinutes int
	OutboxFlushSeconds     int

	// Security
	JWTSecret         string
	SessionTimeoutMin int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		Environment: getEnv("APP_ENV", "development"),

		DatabaseURL:    getEnv("DATABASE_URL", "postgres://localhost:5432/dlsarena?sslmode=disable"),
		MigrateOnStart: getEnv("MIGRATE_ON_START", "false") == "true",

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		WagerMini:          getEnvDecimal("WAGER_MINI", decimal.RequireFromString("0.5")),
		WagerBeast:         getEnvDecimal("WAGER_BEAST", decimal.NewFromInt(2)),
		WagerMonster:       getEnvDecimal("WAGER_MONSTER", decimal.NewFromInt(5)),
		PlatformFeePercent: getEnvDecimal("PLATFORM_FEE_PERCENT", decimal.NewFromInt(5)),
		JoinCodeAttempts:   getEnvInt("JOIN_CODE_ATTEMPTS", 5),
		MatchLockSeconds:   getEnvInt("MATCH_LOCK_SECONDS", 30),

		VerifierTimeoutSecs: getEnvInt("VERIFIER_TIMEOUT_SECONDS", 10),
		LedgerTimeoutSecs:   getEnvInt("LEDGER_TIMEOUT_SECONDS", 10),

		TrackerBaseURL:      getEnv("TRACKER_BASE_URL", ""),
		TrackerCacheSeconds: getEnvInt("TRACKER_CACHE_SECONDS", 300),

		ExchangeBaseURL:      getEnv("EXCHANGE_BASE_URL", ""),
		ExchangeTokenPath:    getEnv("EXCHANGE_TOKEN_PATH", "/oauth/token"),
		ExchangeClientID:     getEnv("EXCHANGE_CLIENT_ID", ""),
		ExchangeClientSecret: getEnv("EXCHANGE_CLIENT_SECRET", ""),
		SandboxBalance:       getEnvDecimal("SANDBOX_BALANCE", decimal.NewFromInt(100)),

		LeaderboardSyncMinutes: getEnvInt("LEADERBOARD_SYNC_MINUTES", 10),
		OutboxFlushSeconds:     getEnvInt("OUTBOX_FLUSH_SECONDS", 60),

		JWTSecret:         getEnv("JWT_SECRET", "change-me-in-production"),
		SessionTimeoutMin: getEnvInt("SESSION_TIMEOUT_MINUTES", 1440),
	}
}

// VerifierTimeout bounds a single result verification.
func (c *Config) VerifierTimeout() time.Duration {
	return time.Duration(c.VerifierTimeoutSecs) * time.Second
}

// LedgerTimeout bounds a single exchange account call.
func (c *Config) LedgerTimeout() time.Duration {
	return time.Duration(c.LedgerTimeoutSecs) * time.Second
}

func (c *Config) MatchLockTTL() time.Duration {
	return time.Duration(c.MatchLockSeconds) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTimeoutMin) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
