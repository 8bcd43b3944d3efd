package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dlsarena/backend/internal/models"
	"github.com/redis/go-redis/v9"
)

const ledgerOutboxKey = "ledger:outbox"

// Outbox is a FIFO list of ledger transactions waiting to be journaled
type Outbox struct {
	rdb *redis.Client
}

func NewOutbox(rdb *redis.Client) *Outbox {
	return &Outbox{rdb: rdb}
}

func (o *Outbox) Push(ctx context.Context, tx *models.Transaction) error {
	payload, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to encode tx %s: %w", tx.ID, err)
	}
	return o.rdb.RPush(ctx, ledgerOutboxKey, payload).Err()
}

// Pop removes the oldest entry, or returns nil when the list is empty
func (o *Outbox) Pop(ctx context.Context) (*models.Transaction, error) {
	raw, err := o.rdb.LPop(ctx, ledgerOutboxKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var tx models.Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, fmt.Errorf("corrupt outbox entry %q: %w", raw, err)
	}
	return &tx, nil
}

func (o *Outbox) Len(ctx context.Context) (int64, error) {
	return o.rdb.LLen(ctx, ledgerOutboxKey).Result()
}
