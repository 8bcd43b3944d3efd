package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds our token, so an
// expired lock re-acquired by another caller is never removed.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out short-lived exclusive locks keyed by name
type Locker struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewLocker(rdb *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{rdb: rdb, ttl: ttl, prefix: "match_lock:"}
}

// TryLock attempts SET NX PX once. acquired is false when someone else holds it.
func (l *Locker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	token := uuid.NewString()
	redisKey := l.prefix + key

	ok, err := l.rdb.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", redisKey, err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func() {
		// the caller's ctx may already be cancelled; release on a fresh one
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.rdb, []string{redisKey}, token).Err(); err != nil {
			log.Printf("[LOCK] Failed to release %s: %v", redisKey, err)
		}
	}
	return unlock, true, nil
}
