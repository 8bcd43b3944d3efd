package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/redis/go-redis/v9"
)

var ErrInvalidToken = errors.New("invalid token")

// Sessions issues and validates HS256 session tokens. Logged out tokens
// are remembered in Redis until they would have expired.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	rdb    *redis.Client
	now    func() time.Time
}

func NewSessions(secret string, ttl time.Duration, rdb *redis.Client) *Sessions {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, rdb: rdb, now: time.Now}
}

func (s *Sessions) TTL() time.Duration { return s.ttl }

// Issue signs a token carrying the user id
func (s *Sessions) Issue(userID, email string) (string, time.Time, error) {
	exp := s.now().Add(s.ttl)
	claims := jwt.MapClaims{
		"user_id": userID,
		"email":   email,
		"iat":     s.now().Unix(),
		"exp":     exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse returns the user id of a valid, unrevoked token
func (s *Sessions) Parse(ctx context.Context, token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", ErrInvalidToken
	}

	if s.rdb != nil {
		revoked, err := s.rdb.Exists(ctx, revokedKey(token)).Result()
		if err == nil && revoked > 0 {
			return "", ErrInvalidToken
		}
	}
	return userID, nil
}

// Revoke blocks a token for the rest of its lifetime
func (s *Sessions) Revoke(ctx context.Context, token string) error {
	if s.rdb == nil || token == "" {
		return nil
	}
	return s.rdb.Set(ctx, revokedKey(token), "1", s.ttl).Err()
}

func revokedKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "revoked_token:" + hex.EncodeToString(sum[:])
}
