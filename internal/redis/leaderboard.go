package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const leaderboardEarningsKey = "leaderboard:earnings"

// Leaderboard keeps total earnings per user in a sorted set
type Leaderboard struct {
	rdb *redis.Client
}

func NewLeaderboard(rdb *redis.Client) *Leaderboard {
	return &Leaderboard{rdb: rdb}
}

// AddEarnings increments a user's earnings score
func (l *Leaderboard) AddEarnings(ctx context.Context, userID string, amount decimal.Decimal) error {
	return l.rdb.ZIncrBy(ctx, leaderboardEarningsKey, amount.InexactFloat64(), userID).Err()
}

// Rank returns the 1-based position of a user, or 0 when unranked
func (l *Leaderboard) Rank(ctx context.Context, userID string) (int64, error) {
	rank, err := l.rdb.ZRevRank(ctx, leaderboardEarningsKey, userID).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get rank for %s: %w", userID, err)
	}
	return rank + 1, nil
}

// Replace swaps the whole set for the given scores in one MULTI/EXEC
func (l *Leaderboard) Replace(ctx context.Context, scores map[string]decimal.Decimal) error {
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, leaderboardEarningsKey)
		if len(scores) == 0 {
			return nil
		}
		members := make([]redis.Z, 0, len(scores))
		for userID, earned := range scores {
			members = append(members, redis.Z{Score: earned.InexactFloat64(), Member: userID})
		}
		pipe.ZAdd(ctx, leaderboardEarningsKey, members...)
		return nil
	})
	return err
}
