package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/dlsarena/backend/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Board is the cached earnings ranking
type Board interface {
	AddEarnings(ctx context.Context, userID string, amount decimal.Decimal) error
	Rank(ctx context.Context, userID string) (int64, error)
	Replace(ctx context.Context, scores map[string]decimal.Decimal) error
}

// Updater owns user_stats. Settlement is its only writer.
type Updater struct {
	db    *sqlx.DB
	board Board
}

// NewUpdater wires the stats table; board may be nil when Redis is unavailable
func NewUpdater(db *sqlx.DB, board Board) *Updater {
	return &Updater{db: db, board: board}
}

// RecordOutcome applies one settled match to both players' counters in a
// single transaction. It is not idempotent; callers invoke it once per
// completed match.
func (u *Updater) RecordOutcome(ctx context.Context, winnerID, loserID string, wager decimal.Decimal) error {
	tx, err := u.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin stats tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_stats (user_id, total_games, total_wins, total_losses, total_earnings, top_earnings)
		VALUES ($1, 1, 1, 0, $2, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			total_games = user_stats.total_games + 1,
			total_wins = user_stats.total_wins + 1,
			total_earnings = user_stats.total_earnings + EXCLUDED.total_earnings,
			top_earnings = GREATEST(user_stats.top_earnings, EXCLUDED.top_earnings)
	`, winnerID, wager); err != nil {
		return fmt.Errorf("update winner stats: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_stats (user_id, total_games, total_wins, total_losses, total_earnings, top_earnings)
		VALUES ($1, 1, 0, 1, 0, 0)
		ON CONFLICT (user_id) DO UPDATE SET
			total_games = user_stats.total_games + 1,
			total_losses = user_stats.total_losses + 1
	`, loserID); err != nil {
		return fmt.Errorf("update loser stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stats: %w", err)
	}

	if u.board != nil {
		if err := u.board.AddEarnings(ctx, winnerID, wager); err != nil {
			log.Printf("[STATS] Leaderboard update failed for %s: %v", winnerID, err)
		}
	}
	log.Printf("[STATS] Recorded win for %s (+%s) and loss for %s", winnerID, wager, loserID)
	return nil
}

// GetUserStats returns a user's counters, all zero when they never played
func (u *Updater) GetUserStats(ctx context.Context, userID string) (*models.UserStats, error) {
	stats := models.UserStats{UserID: userID, TotalEarnings: decimal.Zero, TopEarnings: decimal.Zero}
	err := u.db.GetContext(ctx, &stats, `
		SELECT user_id, total_games, total_wins, total_losses, total_earnings, top_earnings
		FROM user_stats WHERE user_id = $1
	`, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get stats for %s: %w", userID, err)
	}
	return &stats, nil
}

// Rank is the user's 1-based earnings position, 0 when unranked
func (u *Updater) Rank(ctx context.Context, userID string) int64 {
	if u.board == nil {
		return 0
	}
	rank, err := u.board.Rank(ctx, userID)
	if err != nil {
		log.Printf("[STATS] Rank lookup failed for %s: %v", userID, err)
		return 0
	}
	return rank
}

// Leaderboard returns the top earners among players with at least one game
func (u *Updater) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	entries := []models.LeaderboardEntry{}
	err := u.db.SelectContext(ctx, &entries, `
		SELECT s.user_id, u.name, s.total_earnings, s.total_games, s.total_wins
		FROM user_stats s
		JOIN users u ON u.id = s.user_id
		WHERE s.total_games > 0
		ORDER BY s.total_earnings DESC, s.total_wins DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	for i := range entries {
		e := &entries[i]
		e.WinRate = models.UserStats{TotalGames: e.TotalGames, TotalWins: e.TotalWins}.WinRate()
	}
	return entries, nil
}

// SyncLeaderboard rebuilds the cached ranking from user_stats
func (u *Updater) SyncLeaderboard(ctx context.Context) error {
	if u.board == nil {
		return nil
	}
	var rows []struct {
		UserID        string          `db:"user_id"`
		TotalEarnings decimal.Decimal `db:"total_earnings"`
	}
	if err := u.db.SelectContext(ctx, &rows, `
		SELECT user_id, total_earnings FROM user_stats WHERE total_games > 0
	`); err != nil {
		return fmt.Errorf("load earnings: %w", err)
	}

	scores := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		scores[r.UserID] = r.TotalEarnings
	}
	if err := u.board.Replace(ctx, scores); err != nil {
		return fmt.Errorf("replace leaderboard: %w", err)
	}
	log.Printf("[STATS] Leaderboard synced with %d players", len(scores))
	return nil
}
