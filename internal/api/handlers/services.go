package handlers

import (
	"context"

	"github.com/dlsarena/backend/internal/match"
	"github.com/dlsarena/backend/internal/models"
	"github.com/shopspring/decimal"
)

// MatchService is the match lifecycle as seen by the HTTP layer
type MatchService interface {
	CreateMatch(ctx context.Context, userID, tier string, isRandom bool) (*models.Match, error)
	JoinMatch(ctx context.Context, userID, joinCode string) (*models.Match, error)
	SubmitResult(ctx context.Context, callerID, matchID, winnerID, externalRef string) (*match.Outcome, error)
	GetMatch(ctx context.Context, userID, matchID string) (*models.Match, error)
	ActiveMatches(ctx context.Context) ([]models.ActiveMatch, error)
	MatchHistory(ctx context.Context, userID string, limit int) ([]models.MatchHistoryEntry, error)
	Tiers() []match.Tier
	FeePercent() decimal.Decimal
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	LinkExchange(ctx context.Context, userID, apiKey, apiSecret string) error
	UnlinkExchange(ctx context.Context, userID string) error
	SetDLSID(ctx context.Context, userID, dlsID string) error
	GetSettings(ctx context.Context, userID string) (*models.UserSettings, error)
	SaveSettings(ctx context.Context, settings *models.UserSettings) error
}

type StatsReader interface {
	GetUserStats(ctx context.Context, userID string) (*models.UserStats, error)
	Rank(ctx context.Context, userID string) int64
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// Wallet reads a user's linked exchange account and ledger history
type Wallet interface {
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	Transactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error)
}

type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, apiKey, apiSecret string) (bool, error)
}
