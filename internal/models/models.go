package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchStatus is the lifecycle state of a wager match
type MatchStatus string

const (
	StatusWaiting    MatchStatus = "WAITING"
	StatusInProgress MatchStatus = "IN_PROGRESS"
	StatusCompleted  MatchStatus = "COMPLETED"
	StatusDisputed   MatchStatus = "DISPUTED"
)

// Terminal reports whether no further transition is allowed
func (s MatchStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusDisputed
}

// TransactionType enumerates ledger movements
type TransactionType string

const (
	TxReserve TransactionType = "RESERVE"
	TxRelease TransactionType = "RELEASE"
	TxCredit  TransactionType = "CREDIT"
	TxDebit   TransactionType = "DEBIT"
)

const TxStatusCompleted = "COMPLETED"

// User is an account holder; exchange credentials link their external account
type User struct {
	ID                string    `db:"id" json:"id"`
	Email             string    `db:"email" json:"email"`
	Name              string    `db:"name" json:"name"`
	PasswordHash      string    `db:"password_hash" json:"-"`
	DLSID             *string   `db:"dls_id" json:"dls_id"`
	ExchangeAPIKey    *string   `db:"exchange_api_key" json:"-"`
	ExchangeAPISecret *string   `db:"exchange_api_secret" json:"-"`
	ExchangeConnected bool      `db:"exchange_connected" json:"exchange_connected"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// UserSettings holds notification preferences
type UserSettings struct {
	UserID                   string `db:"user_id" json:"user_id"`
	TransactionNotifications bool   `db:"transaction_notifications" json:"transaction_notifications"`
	MatchNotifications       bool   `db:"match_notifications" json:"match_notifications"`
}

// Match represents one wager contest between a creator and a joiner
type Match struct {
	ID               string              `db:"id" json:"id"`
	JoinCode         string              `db:"join_code" json:"match_code"`
	WagerTier        string              `db:"wager_tier" json:"wager_tier"`
	WagerAmount      decimal.Decimal     `db:"wager_amount" json:"wager_amount"`
	CreatorID        string              `db:"creator_id" json:"creator_id"`
	JoinerID         *string             `db:"joiner_id" json:"joiner_id"`
	Status           MatchStatus         `db:"status" json:"status"`
	IsRandom         bool                `db:"is_random" json:"is_random"`
	ExternalMatchRef *string             `db:"external_match_ref" json:"dls_match_id"`
	WinnerID         *string             `db:"winner_id" json:"winner_id"`
	LoserID          *string             `db:"loser_id" json:"loser_id"`
	DisputeReason    *string             `db:"dispute_reason" json:"dispute_reason"`
	PlatformFee      decimal.NullDecimal `db:"platform_fee" json:"platform_fee"`
	CreatedAt        time.Time           `db:"created_at" json:"created_at"`
	StartedAt        *time.Time          `db:"started_at" json:"started_at"`
	CompletedAt      *time.Time          `db:"completed_at" json:"completed_at"`
}

// IsParticipant reports whether userID is the creator or the joiner
func (m *Match) IsParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	return m.CreatorID == userID || (m.JoinerID != nil && *m.JoinerID == userID)
}

// Opponent returns the other participant, or "" if userID did not play
func (m *Match) Opponent(userID string) string {
	if m.JoinerID == nil {
		return ""
	}
	switch userID {
	case m.CreatorID:
		return *m.JoinerID
	case *m.JoinerID:
		return m.CreatorID
	}
	return ""
}

// ActiveMatch is a joinable match with its creator's display name
type ActiveMatch struct {
	Match
	CreatorName string `db:"creator_name" json:"creator_name"`
}

// MatchHistoryEntry is a completed match seen from one participant
type MatchHistoryEntry struct {
	ID           string          `db:"id" json:"id"`
	JoinCode     string          `db:"join_code" json:"match_code"`
	WagerAmount  decimal.Decimal `db:"wager_amount" json:"wager_amount"`
	WagerTier    string          `db:"wager_tier" json:"wager_tier"`
	Status       MatchStatus     `db:"status" json:"status"`
	CompletedAt  time.Time       `db:"completed_at" json:"completed_at"`
	IsWinner     bool            `db:"is_winner" json:"is_winner"`
	OpponentName string          `db:"opponent_name" json:"opponent_name"`
}

// Transaction is an append-only record of a funds movement
type Transaction struct {
	ID        string          `db:"id" json:"id"`
	UserID    string          `db:"user_id" json:"user_id"`
	MatchID   *string         `db:"match_id" json:"match_id"`
	Type      TransactionType `db:"type" json:"type"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Status    string          `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// UserStats are per-user aggregate counters, written only by settlement
type UserStats struct {
	UserID        string          `db:"user_id" json:"user_id"`
	TotalGames    int             `db:"total_games" json:"total_games"`
	TotalWins     int             `db:"total_wins" json:"total_wins"`
	TotalLosses   int             `db:"total_losses" json:"total_losses"`
	TotalEarnings decimal.Decimal `db:"total_earnings" json:"total_earnings"`
	TopEarnings   decimal.Decimal `db:"top_earnings" json:"top_earnings"`
}

// WinRate is the rounded percentage of games won
func (s UserStats) WinRate() int {
	if s.TotalGames <= 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(s.TotalWins)).
		Div(decimal.NewFromInt(int64(s.TotalGames))).
		Mul(decimal.NewFromInt(100)).
		Round(0).IntPart())
}

// LeaderboardEntry is one ranked row of the earnings leaderboard
type LeaderboardEntry struct {
	UserID        string          `db:"user_id" json:"id"`
	Name          string          `db:"name" json:"name"`
	TotalEarnings decimal.Decimal `db:"total_earnings" json:"total_earnings"`
	TotalGames    int             `db:"total_games" json:"-"`
	TotalWins     int             `db:"total_wins" json:"-"`
	WinRate       int             `db:"-" json:"win_rate"`
}

// Match event types published after a committed transition
const (
	EventMatchCreated   = "match.created"
	EventMatchJoined    = "match.joined"
	EventMatchCompleted = "match.completed"
	EventMatchDisputed  = "match.disputed"
)

// MatchEvent is delivered to every recipient's open websocket connections
type MatchEvent struct {
	Type       string   `json:"type"`
	MatchID    string   `json:"match_id"`
	Recipients []string `json:"recipients"`
	Match      *Match   `json:"match"`
	Reason     string   `json:"reason,omitempty"`
}
