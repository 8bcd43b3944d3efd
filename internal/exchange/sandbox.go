package exchange

import (
	"context"
	"log"

	"github.com/shopspring/decimal"
)

// Sandbox approves every operation. It is used when no exchange is configured.
type Sandbox struct {
	balance decimal.Decimal
}

func NewSandbox(balance decimal.Decimal) *Sandbox {
	log.Printf("[EXCHANGE] Exchange not configured - account operations will use sandbox mode")
	return &Sandbox{balance: balance}
}

func (s *Sandbox) Hold(ctx context.Context, acct Account, amount decimal.Decimal, ref Reference) error {
	log.Printf("[EXCHANGE] [SANDBOX] hold user=%s amount=%s key=%s match=%s", acct.UserID, amount, ref.Key, ref.MatchID)
	return nil
}

func (s *Sandbox) ReleaseHold(ctx context.Context, acct Account, amount decimal.Decimal, ref Reference) error {
	log.Printf("[EXCHANGE] [SANDBOX] release user=%s amount=%s key=%s match=%s", acct.UserID, amount, ref.Key, ref.MatchID)
	return nil
}

func (s *Sandbox) Credit(ctx context.Context, acct Account, amount decimal.Decimal, ref Reference) error {
	log.Printf("[EXCHANGE] [SANDBOX] credit user=%s amount=%s key=%s match=%s", acct.UserID, amount, ref.Key, ref.MatchID)
	return nil
}

func (s *Sandbox) Debit(ctx context.Context, acct Account, amount decimal.Decimal, ref Reference) error {
	log.Printf("[EXCHANGE] [SANDBOX] debit user=%s amount=%s key=%s match=%s", acct.UserID, amount, ref.Key, ref.MatchID)
	return nil
}

func (s *Sandbox) Balance(ctx context.Context, acct Account) (decimal.Decimal, error) {
	return s.balance, nil
}

// VerifyCredentials accepts any non-empty key pair
func (s *Sandbox) VerifyCredentials(ctx context.Context, apiKey, apiSecret string) (bool, error) {
	return apiKey != "" && apiSecret != "", nil
}
