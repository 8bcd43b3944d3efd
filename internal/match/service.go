package match

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/dlsarena/backend/internal/config"
	"github.com/dlsarena/backend/internal/models"
	"github.com/dlsarena/backend/internal/store"
	"github.com/dlsarena/backend/internal/verifier"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store persists matches. Transitions are conditional on the current
// status and return store.ErrConflict when it no longer holds.
type Store interface {
	CreateMatch(ctx context.Context, m *models.Match) error
	GetMatch(ctx context.Context, id string) (*models.Match, error)
	GetMatchByCode(ctx context.Context, code string) (*models.Match, error)
	StartMatch(ctx context.Context, id, joinerID string, at time.Time) (*models.Match, error)
	DisputeMatch(ctx context.Context, id, reason, externalRef string) (*models.Match, error)
	CompleteMatch(ctx context.Context, id string, s store.Settlement) (*models.Match, error)
	ActiveMatches(ctx context.Context, limit int) ([]models.ActiveMatch, error)
	MatchHistory(ctx context.Context, userID string, limit int) ([]models.MatchHistoryEntry, error)
}

// Ledger moves funds; a nil error is success
type Ledger interface {
	Reserve(ctx context.Context, userID string, amount decimal.Decimal, matchID string) error
	Release(ctx context.Context, userID string, amount decimal.Decimal, matchID string) error
	Credit(ctx context.Context, userID string, amount decimal.Decimal, matchID string) error
	Debit(ctx context.Context, userID string, amount decimal.Decimal, matchID string) error
}

type Verifier interface {
	Verify(ctx context.Context, externalRef, participantA, participantB, claimedWinner string) verifier.Result
}

type StatsRecorder interface {
	RecordOutcome(ctx context.Context, winnerID, loserID string, wager decimal.Decimal) error
}

type Notifier interface {
	Publish(ctx context.Context, event models.MatchEvent)
}

// Deps are the collaborators of a Service. Notifier may be nil.
type Deps struct {
	Store    Store
	Ledger   Ledger
	Verifier Verifier
	Stats    StatsRecorder
	Notifier Notifier
	Locker   Locker
}

// Outcome is the result of a processed submission. A disputed outcome is
// not an error: the match moved to DISPUTED and Reason says why.
type Outcome struct {
	Match    *models.Match
	Disputed bool
	Reason   string
	Payout   decimal.Decimal
}

type Service struct {
	Deps
	tiers        map[string]decimal.Decimal
	feePercent   decimal.Decimal
	codeAttempts int
	now          func() time.Time
	newCode      func() (string, error)
}

func NewService(cfg *config.Config, deps Deps) *Service {
	attempts := cfg.JoinCodeAttempts
	if attempts <= 0 {
		attempts = 5
	}
	if deps.Locker == nil {
		deps.Locker = NewLocalLocker()
	}
	return &Service{
		Deps:         deps,
		tiers:        TiersFromConfig(cfg),
		feePercent:   cfg.PlatformFeePercent,
		codeAttempts: attempts,
		now:          time.Now,
		newCode:      generateJoinCode,
	}
}

// Tiers lists the wager table, cheapest first
func (s *Service) Tiers() []Tier {
	return sortedTiers(s.tiers)
}

func (s *Service) FeePercent() decimal.Decimal {
	return s.feePercent
}

func (s *Service) publish(ctx context.Context, eventType string, m *models.Match, reason string) {
	if s.Notifier == nil {
		return
	}
	recipients := []string{m.CreatorID}
	if m.JoinerID != nil {
		recipients = append(recipients, *m.JoinerID)
	}
	s.Notifier.Publish(context.WithoutCancel(ctx), models.MatchEvent{
		Type:       eventType,
		MatchID:    m.ID,
		Recipients: recipients,
		Match:      m,
		Reason:     reason,
	})
}

// CreateMatch opens a WAITING match for userID at the tier's fixed wager.
func (s *Service) CreateMatch(ctx context.Context, userID, tier string, isRandom bool) (*models.Match, error) {
	if userID == "" {
		return nil, fail(ErrUnauthorized, "Unauthorized")
	}
	amount, ok := s.tiers[strings.ToLower(tier)]
	if !ok {
		return nil, fail(ErrInvalidTier, "Invalid wager tier")
	}

	for attempt := 1; attempt <= s.codeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			log.Printf("[MATCH] Failed to generate join code: %v", err)
			return nil, fail(ErrInternal, "Failed to create match")
		}

		m := &models.Match{
			ID:          uuid.NewString(),
			JoinCode:    code,
			WagerTier:   strings.ToLower(tier),
			WagerAmount: amount,
			CreatorID:   userID,
			Status:      models.StatusWaiting,
			IsRandom:    isRandom,
			CreatedAt:   s.now(),
		}
		err = s.Store.CreateMatch(ctx, m)
		if errors.Is(err, store.ErrDuplicateCode) {
			log.Printf("[MATCH] Join code collision on %s (attempt %d/%d)", code, attempt, s.codeAttempts)
			continue
		}
		if err != nil {
			log.Printf("[MATCH] Failed to create match for user %s: %v", userID, err)
			return nil, fail(ErrInternal, "Failed to create match")
		}

		log.Printf("[MATCH] Created %s (code=%s tier=%s wager=%s) by %s", m.ID, m.JoinCode, m.WagerTier, m.WagerAmount, userID)
		s.publish(ctx, models.EventMatchCreated, m, "")
		return m, nil
	}

	log.Printf("[MATCH] Gave up allocating a join code after %d attempts", s.codeAttempts)
	return nil, fail(ErrInternal, "Failed to create match")
}

// JoinMatch reserves the wager from both players and starts the match.
// Either both reservations hold and the match is IN_PROGRESS, or every
// granted reservation is released and the match stays WAITING.
func (s *Service) JoinMatch(ctx context.Context, userID, joinCode string) (*models.Match, error) {
	if userID == "" {
		return nil, fail(ErrUnauthorized, "Unauthorized")
	}

	m, err := s.Store.GetMatchByCode(ctx, strings.ToUpper(strings.TrimSpace(joinCode)))
	if err != nil {
		return nil, s.lookupError(err)
	}
	if err := checkJoinable(m, userID); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// the match may have moved while we waited for the lock
	m, err = s.Store.GetMatch(ctx, m.ID)
	if err != nil {
		return nil, s.lookupError(err)
	}
	if err := checkJoinable(m, userID); err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	var creatorErr, joinerErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		creatorErr = s.Ledger.Reserve(ctx, m.CreatorID, m.WagerAmount, m.ID)
	}()
	go func() {
		defer wg.Done()
		joinerErr = s.Ledger.Reserve(ctx, userID, m.WagerAmount, m.ID)
	}()
	wg.Wait()

	if creatorErr != nil || joinerErr != nil {
		log.Printf("[MATCH] Reservation failed for %s: creator=%v joiner=%v", m.ID, creatorErr, joinerErr)
		if creatorErr == nil {
			s.release(ctx, m.CreatorID, m)
		}
		if joinerErr == nil {
			s.release(ctx, userID, m)
		}
		return nil, fail(ErrInsufficientFunds, "Insufficient funds to join match")
	}

	started, err := s.Store.StartMatch(ctx, m.ID, userID, s.now())
	if err != nil {
		s.release(ctx, m.CreatorID, m)
		s.release(ctx, userID, m)
		if errors.Is(err, store.ErrConflict) {
			return nil, fail(ErrInvalidState, "Match is no longer available")
		}
		log.Printf("[MATCH] Failed to start %s: %v", m.ID, err)
		return nil, fail(ErrInternal, "Failed to join match")
	}

	log.Printf("[MATCH] %s joined by %s, %s reserved from each player", started.ID, userID, started.WagerAmount)
	s.publish(ctx, models.EventMatchJoined, started, "")
	return started, nil
}

func checkJoinable(m *models.Match, userID string) error {
	if m.Status != models.StatusWaiting {
		return fail(ErrInvalidState, "Match is no longer available")
	}
	if m.CreatorID == userID {
		return fail(ErrSelfJoin, "You cannot join your own match")
	}
	return nil
}

// release is the best effort compensation for a granted reservation
func (s *Service) release(ctx context.Context, userID string, m *models.Match) {
	if err := s.Ledger.Release(context.WithoutCancel(ctx), userID, m.WagerAmount, m.ID); err != nil {
		log.Printf("[MATCH] CRITICAL: failed to release %s for user %s on %s: %v", m.WagerAmount, userID, m.ID, err)
	}
}

// SubmitResult verifies a claimed winner and settles the match. An
// unverified claim moves the match to DISPUTED with funds left reserved.
func (s *Service) SubmitResult(ctx context.Context, callerID, matchID, winnerID, externalRef string) (*Outcome, error) {
	if callerID == "" {
		return nil, fail(ErrUnauthorized, "Unauthorized")
	}

	m, err := s.Store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, s.lookupError(err)
	}
	if err := checkSubmittable(m, callerID); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	m, err = s.Store.GetMatch(ctx, m.ID)
	if err != nil {
		return nil, s.lookupError(err)
	}
	if err := checkSubmittable(m, callerID); err != nil {
		return nil, err
	}

	result := s.Verifier.Verify(ctx, externalRef, m.CreatorID, *m.JoinerID, winnerID)
	if !result.Verified {
		disputed, err := s.Store.DisputeMatch(ctx, m.ID, result.Reason, externalRef)
		if err != nil {
			return nil, s.transitionError(m.ID, err)
		}
		log.Printf("[MATCH] %s disputed: %s", m.ID, result.Reason)
		s.publish(ctx, models.EventMatchDisputed, disputed, result.Reason)
		return &Outcome{Match: disputed, Disputed: true, Reason: result.Reason}, nil
	}

	loserID := m.Opponent(winnerID)
	payout, fee := Split(m.WagerAmount, s.feePercent)

	if err := s.Ledger.Credit(ctx, winnerID, payout, m.ID); err != nil {
		log.Printf("[MATCH] Credit of %s to %s failed for %s: %v", payout, winnerID, m.ID, err)
		return nil, fail(ErrInternal, "Failed to process match result")
	}

	completed, err := s.Store.CompleteMatch(ctx, m.ID, store.Settlement{
		WinnerID:    winnerID,
		LoserID:     loserID,
		PlatformFee: fee,
		ExternalRef: externalRef,
		CompletedAt: s.now(),
	})
	if err != nil {
		if derr := s.Ledger.Debit(context.WithoutCancel(ctx), winnerID, payout, m.ID); derr != nil {
			log.Printf("[MATCH] CRITICAL: failed to reverse credit of %s to %s on %s: %v", payout, winnerID, m.ID, derr)
		}
		return nil, s.transitionError(m.ID, err)
	}

	if err := s.Stats.RecordOutcome(context.WithoutCancel(ctx), winnerID, loserID, m.WagerAmount); err != nil {
		log.Printf("[MATCH] Stats update failed for %s: %v", m.ID, err)
	}

	log.Printf("[MATCH] %s completed: winner=%s payout=%s fee=%s", m.ID, winnerID, payout, fee)
	s.publish(ctx, models.EventMatchCompleted, completed, "")
	return &Outcome{Match: completed, Payout: payout}, nil
}

func checkSubmittable(m *models.Match, callerID string) error {
	if !m.IsParticipant(callerID) {
		return fail(ErrForbidden, "You are not a participant in this match")
	}
	if m.Status != models.StatusInProgress || m.JoinerID == nil {
		return fail(ErrInvalidState, "Match is not in progress")
	}
	return nil
}

// GetMatch returns a match visible to its participants
func (s *Service) GetMatch(ctx context.Context, userID, matchID string) (*models.Match, error) {
	if userID == "" {
		return nil, fail(ErrUnauthorized, "Unauthorized")
	}
	m, err := s.Store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, s.lookupError(err)
	}
	if m.Status != models.StatusWaiting && !m.IsParticipant(userID) {
		return nil, fail(ErrForbidden, "You are not a participant in this match")
	}
	return m, nil
}

// ActiveMatches lists the newest joinable matches
func (s *Service) ActiveMatches(ctx context.Context) ([]models.ActiveMatch, error) {
	matches, err := s.Store.ActiveMatches(ctx, 10)
	if err != nil {
		log.Printf("[MATCH] Failed to list active matches: %v", err)
		return nil, fail(ErrInternal, "Failed to fetch matches")
	}
	return matches, nil
}

func (s *Service) MatchHistory(ctx context.Context, userID string, limit int) ([]models.MatchHistoryEntry, error) {
	if userID == "" {
		return nil, fail(ErrUnauthorized, "Unauthorized")
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	history, err := s.Store.MatchHistory(ctx, userID, limit)
	if err != nil {
		log.Printf("[MATCH] Failed to load history for %s: %v", userID, err)
		return nil, fail(ErrInternal, "Failed to fetch match history")
	}
	return history, nil
}

func (s *Service) lock(ctx context.Context, matchID string) (func(), error) {
	unlock, ok, err := s.Locker.TryLock(ctx, matchID)
	if err != nil {
		log.Printf("[MATCH] Lock error on %s: %v", matchID, err)
		return nil, fail(ErrInternal, "Failed to process match")
	}
	if !ok {
		return nil, fail(ErrInvalidState, "Match is being updated, try again")
	}
	return unlock, nil
}

func (s *Service) lookupError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fail(ErrNotFound, "Match not found")
	}
	log.Printf("[MATCH] Lookup failed: %v", err)
	return fail(ErrInternal, "Failed to load match")
}

func (s *Service) transitionError(matchID string, err error) error {
	if errors.Is(err, store.ErrConflict) {
		return fail(ErrInvalidState, "Match is not in progress")
	}
	log.Printf("[MATCH] Transition failed for %s: %v", matchID, err)
	return fail(ErrInternal, "Failed to process match result")
}
