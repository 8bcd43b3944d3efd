package ledger

import (
	"context"

	"github.com/dlsarena/backend/internal/models"
	"github.com/jmoiron/sqlx"
)

// PostgresJournal stores transactions in the transactions table. Rows are
// only ever inserted.
type PostgresJournal struct {
	db *sqlx.DB
}

func NewPostgresJournal(db *sqlx.DB) *PostgresJournal {
	return &PostgresJournal{db: db}
}

// Append inserts tx; an id that is already journaled is left untouched
func (j *PostgresJournal) Append(ctx context.Context, tx *models.Transaction) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, match_id, type, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, tx.ID, tx.UserID, tx.MatchID, tx.Type, tx.Amount, tx.Status, tx.CreatedAt)
	return err
}

func (j *PostgresJournal) ListByUser(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	txs := []models.Transaction{}
	err := j.db.SelectContext(ctx, &txs, `
		SELECT id, user_id, match_id, type, amount, status, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	return txs, err
}
