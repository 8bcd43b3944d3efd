package exchange

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Account identifies a user's linked exchange account
type Account struct {
	UserID    string
	APIKey    string
	APISecret string
}

// Reference identifies one money movement. Key is unique per movement and is
// resent unchanged on retries so the exchange applies it at most once.
type Reference struct {
	Key     string
	MatchID string
}

// Provider moves funds on a linked exchange account. A nil error means the
// provider accepted the operation.
type Provider interface {
	Hold(ctx context.Context, acct Account, amount decimal.Decimal, ref Reference) error
	ReleaseHold(ctx context.Context, acct Account, amount decimal.Decimal, ref Reference) error
	Credit(ctx context.Context, acct Account, amount decimal.Decimal, ref Reference) error
	Debit(ctx context.Context, acct Account, amount decimal.Decimal, ref Reference) error
	Balance(ctx context.Context, acct Account) (decimal.Decimal, error)
	VerifyCredentials(ctx context.Context, apiKey, apiSecret string) (bool, error)
}

var (
	ErrRejected   = errors.New("exchange rejected operation")
	ErrMissingKey = errors.New("movement has no idempotency key")
)
