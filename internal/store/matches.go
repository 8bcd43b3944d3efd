package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dlsarena/backend/internal/database"
	"github.com/dlsarena/backend/internal/models"
	"github.com/google/uuid"
)

const matchColumns = `id, join_code, wager_tier, wager_amount, creator_id, joiner_id, status, is_random,
	external_match_ref, winner_id, loser_id, dispute_reason, platform_fee, created_at, started_at, completed_at`

func (s *Store) CreateMatch(ctx context.Context, m *models.Match) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matches (id, join_code, wager_tier, wager_amount, creator_id, status, is_random, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.ID, m.JoinCode, m.WagerTier, m.WagerAmount, m.CreatorID, m.Status, m.IsRandom, m.CreatedAt)
	if database.IsUniqueViolation(err, "matches_join_code_key") {
		return ErrDuplicateCode
	}
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

func (s *Store) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	var m models.Match
	err := s.db.GetContext(ctx, &m, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match %s: %w", id, err)
	}
	return &m, nil
}

func (s *Store) GetMatchByCode(ctx context.Context, code string) (*models.Match, error) {
	var m models.Match
	err := s.db.GetContext(ctx, &m, `SELECT `+matchColumns+` FROM matches WHERE join_code = $1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match by code: %w", err)
	}
	return &m, nil
}

// transition runs a conditional UPDATE ... RETURNING; no row means the
// guard on the current status failed.
func (s *Store) transition(ctx context.Context, query string, args ...interface{}) (*models.Match, error) {
	var m models.Match
	err := s.db.GetContext(ctx, &m, query+` RETURNING `+matchColumns, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// StartMatch moves a WAITING match to IN_PROGRESS with its joiner
func (s *Store) StartMatch(ctx context.Context, id, joinerID string, at time.Time) (*models.Match, error) {
	return s.transition(ctx, `
		UPDATE matches
		SET joiner_id = $2, status = 'IN_PROGRESS', started_at = $3
		WHERE id = $1 AND status = 'WAITING' AND creator_id <> $2`,
		id, joinerID, at)
}

func (s *Store) DisputeMatch(ctx context.Context, id, reason, externalRef string) (*models.Match, error) {
	return s.transition(ctx, `
		UPDATE matches
		SET status = 'DISPUTED', dispute_reason = $2, external_match_ref = NULLIF($3, '')
		WHERE id = $1 AND status = 'IN_PROGRESS'`,
		id, reason, externalRef)
}

func (s *Store) CompleteMatch(ctx context.Context, id string, st Settlement) (*models.Match, error) {
	return s.transition(ctx, `
		UPDATE matches
		SET status = 'COMPLETED', winner_id = $2, loser_id = $3, platform_fee = $4,
			external_match_ref = NULLIF($5, ''), completed_at = $6
		WHERE id = $1 AND status = 'IN_PROGRESS'`,
		id, st.WinnerID, st.LoserID, st.PlatformFee, st.ExternalRef, st.CompletedAt)
}

// ActiveMatches returns the newest WAITING matches with their creator's name
func (s *Store) ActiveMatches(ctx context.Context, limit int) ([]models.ActiveMatch, error) {
	matches := []models.ActiveMatch{}
	err := s.db.SelectContext(ctx, &matches, `
		SELECT m.id, m.join_code, m.wager_tier, m.wager_amount, m.creator_id, m.joiner_id, m.status,
			m.is_random, m.external_match_ref, m.winner_id, m.loser_id, m.dispute_reason,
			m.platform_fee, m.created_at, m.started_at, m.completed_at,
			u.name AS creator_name
		FROM matches m
		JOIN users u ON u.id = m.creator_id
		WHERE m.status = 'WAITING'
		ORDER BY m.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list active matches: %w", err)
	}
	return matches, nil
}

// MatchHistory returns a user's completed matches, newest first
func (s *Store) MatchHistory(ctx context.Context, userID string, limit int) ([]models.MatchHistoryEntry, error) {
	history := []models.MatchHistoryEntry{}
	err := s.db.SelectContext(ctx, &history, `
		SELECT m.id, m.join_code, m.wager_amount, m.wager_tier, m.status, m.completed_at,
			COALESCE(m.winner_id = $1, FALSE) AS is_winner,
			COALESCE(o.name, '') AS opponent_name
		FROM matches m
		LEFT JOIN users o ON o.id = CASE WHEN m.creator_id = $1 THEN m.joiner_id ELSE m.creator_id END
		WHERE (m.creator_id = $1 OR m.joiner_id = $1) AND m.status = 'COMPLETED'
		ORDER BY m.completed_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("match history for %s: %w", userID, err)
	}
	return history, nil
}
