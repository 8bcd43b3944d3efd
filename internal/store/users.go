package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dlsarena/backend/internal/database"
	"github.com/dlsarena/backend/internal/exchange"
	"github.com/dlsarena/backend/internal/ledger"
	"github.com/dlsarena/backend/internal/models"
	"github.com/google/uuid"
)

const userColumns = `id, email, name, password_hash, dls_id, exchange_api_key, exchange_api_secret, exchange_connected, created_at`

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	err := s.db.GetContext(ctx, &u.CreatedAt, `
		INSERT INTO users (id, email, name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, u.ID, u.Email, u.Name, u.PasswordHash)
	if database.IsUniqueViolation(err, "users_email_key") {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) getUser(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.getUser(ctx, "id = $1", id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email = $1", strings.ToLower(strings.TrimSpace(email)))
}

func (s *Store) exec(ctx context.Context, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// LinkExchange stores verified exchange credentials for a user
func (s *Store) LinkExchange(ctx context.Context, userID, apiKey, apiSecret string) error {
	return s.exec(ctx, `
		UPDATE users SET exchange_api_key = $2, exchange_api_secret = $3, exchange_connected = TRUE
		WHERE id = $1
	`, userID, apiKey, apiSecret)
}

func (s *Store) UnlinkExchange(ctx context.Context, userID string) error {
	return s.exec(ctx, `
		UPDATE users SET exchange_api_key = NULL, exchange_api_secret = NULL, exchange_connected = FALSE
		WHERE id = $1
	`, userID)
}

func (s *Store) SetDLSID(ctx context.Context, userID, dlsID string) error {
	err := s.exec(ctx, `UPDATE users SET dls_id = $2 WHERE id = $1`, userID, strings.ToLower(dlsID))
	if database.IsUniqueViolation(err, "users_dls_id_key") {
		return ErrDuplicateDLSID
	}
	return err
}

// LinkedAccount returns the user's exchange credentials for the ledger
func (s *Store) LinkedAccount(ctx context.Context, userID string) (*exchange.Account, error) {
	u, err := s.GetUserByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, ledger.ErrNoLinkedAccount
	}
	if err != nil {
		return nil, err
	}
	if !u.ExchangeConnected || u.ExchangeAPIKey == nil || u.ExchangeAPISecret == nil {
		return nil, ledger.ErrNoLinkedAccount
	}
	return &exchange.Account{UserID: u.ID, APIKey: *u.ExchangeAPIKey, APISecret: *u.ExchangeAPISecret}, nil
}

// DLSID returns the user's tracker id, or "" when none is set
func (s *Store) DLSID(ctx context.Context, userID string) (string, error) {
	var dls sql.NullString
	err := s.db.GetContext(ctx, &dls, `SELECT dls_id FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get dls id: %w", err)
	}
	return dls.String, nil
}

// GetSettings returns stored preferences, or the defaults when none were saved
func (s *Store) GetSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	settings := models.UserSettings{UserID: userID}
	err := s.db.GetContext(ctx, &settings, `
		SELECT user_id, transaction_notifications, match_notifications
		FROM user_settings WHERE user_id = $1
	`, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings *models.UserSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, transaction_notifications, match_notifications)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET transaction_notifications = EXCLUDED.transaction_notifications,
			match_notifications = EXCLUDED.match_notifications
	`, settings.UserID, settings.TransactionNotifications, settings.MatchNotifications)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
