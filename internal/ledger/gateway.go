package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dlsarena/backend/internal/exchange"
	"github.com/dlsarena/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNoLinkedAccount = errors.New("no linked exchange account")
	ErrInvalidAmount   = errors.New("amount must be positive")
)

// Accounts resolves a user's linked exchange account.
// Implementations return ErrNoLinkedAccount when the user has none.
type Accounts interface {
	LinkedAccount(ctx context.Context, userID string) (*exchange.Account, error)
}

// Journal is the append-only transaction log
type Journal interface {
	Append(ctx context.Context, tx *models.Transaction) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Transaction, error)
}

// Outbox parks journal rows that could not be written after the money moved.
// Pop returns nil, nil when it is empty.
type Outbox interface {
	Push(ctx context.Context, tx *models.Transaction) error
	Pop(ctx context.Context) (*models.Transaction, error)
}

// Gateway reserves, releases, credits and debits funds on linked accounts.
// A nil error is success; every success is journaled exactly once.
type Gateway struct {
	accounts Accounts
	provider exchange.Provider
	journal  Journal
	outbox   Outbox
	timeout  time.Duration
	now      func() time.Time
}

func NewGateway(accounts Accounts, provider exchange.Provider, journal Journal, timeout time.Duration) *Gateway {
	return &Gateway{
		accounts: accounts,
		provider: provider,
		journal:  journal,
		timeout:  timeout,
		now:      time.Now,
	}
}

// WithOutbox sets where unjournaled movements are parked until FlushOutbox
func (g *Gateway) WithOutbox(o Outbox) *Gateway {
	g.outbox = o
	return g
}

func (g *Gateway) Reserve(ctx context.Context, userID string, amount decimal.Decimal, matchID string) error {
	return g.apply(ctx, models.TxReserve, userID, amount, matchID)
}

func (g *Gateway) Release(ctx context.Context, userID string, amount decimal.Decimal, matchID string) error {
	return g.apply(ctx, models.TxRelease, userID, amount, matchID)
}

func (g *Gateway) Credit(ctx context.Context, userID string, amount decimal.Decimal, matchID string) error {
	return g.apply(ctx, models.TxCredit, userID, amount, matchID)
}

func (g *Gateway) Debit(ctx context.Context, userID string, amount decimal.Decimal, matchID string) error {
	return g.apply(ctx, models.TxDebit, userID, amount, matchID)
}

func (g *Gateway) apply(ctx context.Context, kind models.TransactionType, userID string, amount decimal.Decimal, matchID string) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	acct, err := g.accounts.LinkedAccount(ctx, userID)
	if err != nil {
		log.Printf("[LEDGER] %s refused for user %s: %v", kind, userID, err)
		return err
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	// the journal id doubles as the exchange idempotency key
	txID := uuid.NewString()
	ref := exchange.Reference{Key: txID, MatchID: matchID}

	switch kind {
	case models.TxReserve:
		err = g.provider.Hold(callCtx, *acct, amount, ref)
	case models.TxRelease:
		err = g.provider.ReleaseHold(callCtx, *acct, amount, ref)
	case models.TxCredit:
		err = g.provider.Credit(callCtx, *acct, amount, ref)
	case models.TxDebit:
		err = g.provider.Debit(callCtx, *acct, amount, ref)
	default:
		return fmt.Errorf("unknown transaction type %q", kind)
	}
	if err != nil {
		log.Printf("[LEDGER] %s failed: user=%s amount=%s match=%s err=%v", kind, userID, amount, matchID, err)
		return fmt.Errorf("%s %s: %w", kind, amount, err)
	}

	tx := &models.Transaction{
		ID:        txID,
		UserID:    userID,
		Type:      kind,
		Amount:    amount,
		Status:    models.TxStatusCompleted,
		CreatedAt: g.now(),
	}
	if matchID != "" {
		tx.MatchID = &matchID
	}

	// The exchange already moved the money; a journal failure must not be
	// reported as a failed movement or the caller would compensate twice.
	writeCtx := context.WithoutCancel(ctx)
	if err := g.journal.Append(writeCtx, tx); err != nil {
		g.park(writeCtx, tx, err)
		return nil
	}

	log.Printf("[LEDGER] %s completed: tx=%s user=%s amount=%s match=%s", kind, tx.ID, userID, amount, matchID)
	return nil
}

func (g *Gateway) park(ctx context.Context, tx *models.Transaction, cause error) {
	if g.outbox == nil {
		log.Printf("[LEDGER] CRITICAL: tx=%s %s user=%s amount=%s succeeded but was not journaled: %v", tx.ID, tx.Type, tx.UserID, tx.Amount, cause)
		return
	}
	if err := g.outbox.Push(ctx, tx); err != nil {
		log.Printf("[LEDGER] CRITICAL: tx=%s %s user=%s amount=%s not journaled (%v) and not parked: %v", tx.ID, tx.Type, tx.UserID, tx.Amount, cause, err)
		return
	}
	log.Printf("[LEDGER] tx=%s parked in outbox after journal failure: %v", tx.ID, cause)
}

// FlushOutbox writes parked rows to the journal. It stops at the first
// journal failure and puts that row back. Append must ignore ids it already has.
func (g *Gateway) FlushOutbox(ctx context.Context) (int, error) {
	if g.outbox == nil {
		return 0, nil
	}
	flushed := 0
	for {
		tx, err := g.outbox.Pop(ctx)
		if err != nil {
			return flushed, fmt.Errorf("pop outbox: %w", err)
		}
		if tx == nil {
			break
		}
		if err := g.journal.Append(ctx, tx); err != nil {
			if perr := g.outbox.Push(context.WithoutCancel(ctx), tx); perr != nil {
				log.Printf("[LEDGER] CRITICAL: tx=%s lost from outbox: %v", tx.ID, perr)
			}
			return flushed, fmt.Errorf("journal tx %s: %w", tx.ID, err)
		}
		flushed++
	}
	if flushed > 0 {
		log.Printf("[LEDGER] Flushed %d parked transactions", flushed)
	}
	return flushed, nil
}

// Transactions lists a user's most recent ledger entries
func (g *Gateway) Transactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return g.journal.ListByUser(ctx, userID, limit)
}

// Balance returns the exchange balance of a user's linked account
func (g *Gateway) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	acct, err := g.accounts.LinkedAccount(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return g.provider.Balance(callCtx, *acct)
}
