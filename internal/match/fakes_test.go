package match

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dlsarena/backend/internal/models"
	"github.com/dlsarena/backend/internal/store"
	"github.com/dlsarena/backend/internal/verifier"
	"github.com/shopspring/decimal"
)

type memStore struct {
	mu            sync.Mutex
	matches       map[string]*models.Match
	duplicates    int // CreateMatch reports this many code collisions first
	startConflict bool
	completeErr   error
}

func newMemStore() *memStore {
	return &memStore{matches: make(map[string]*models.Match)}
}

func clone(m *models.Match) *models.Match {
	c := *m
	return &c
}

func (s *memStore) CreateMatch(_ context.Context, m *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.duplicates > 0 {
		s.duplicates--
		return store.ErrDuplicateCode
	}
	s.matches[m.ID] = clone(m)
	return nil
}

func (s *memStore) GetMatch(_ context.Context, id string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(m), nil
}

func (s *memStore) GetMatchByCode(_ context.Context, code string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.JoinCode == code {
			return clone(m), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memStore) StartMatch(_ context.Context, id, joinerID string, at time.Time) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok || m.Status != models.StatusWaiting || s.startConflict {
		return nil, store.ErrConflict
	}
	m.JoinerID = &joinerID
	m.Status = models.StatusInProgress
	m.StartedAt = &at
	return clone(m), nil
}

func (s *memStore) DisputeMatch(_ context.Context, id, reason, ref string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok || m.Status != models.StatusInProgress {
		return nil, store.ErrConflict
	}
	m.Status = models.StatusDisputed
	m.DisputeReason = &reason
	m.ExternalMatchRef = &ref
	return clone(m), nil
}

func (s *memStore) CompleteMatch(_ context.Context, id string, st store.Settlement) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completeErr != nil {
		return nil, s.completeErr
	}
	m, ok := s.matches[id]
	if !ok || m.Status != models.StatusInProgress {
		return nil, store.ErrConflict
	}
	m.Status = models.StatusCompleted
	m.WinnerID = &st.WinnerID
	m.LoserID = &st.LoserID
	m.PlatformFee = decimal.NewNullDecimal(st.PlatformFee)
	m.ExternalMatchRef = &st.ExternalRef
	m.CompletedAt = &st.CompletedAt
	return clone(m), nil
}

func (s *memStore) ActiveMatches(_ context.Context, limit int) ([]models.ActiveMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.ActiveMatch{}
	for _, m := range s.matches {
		if m.Status == models.StatusWaiting && len(out) < limit {
			out = append(out, models.ActiveMatch{Match: *clone(m)})
		}
	}
	return out, nil
}

func (s *memStore) MatchHistory(context.Context, string, int) ([]models.MatchHistoryEntry, error) {
	return []models.MatchHistoryEntry{}, nil
}

func (s *memStore) status(id string) models.MatchStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matches[id].Status
}

type ledgerCall struct {
	Op     string
	UserID string
	Amount string
}

type fakeLedger struct {
	mu      sync.Mutex
	calls   []ledgerCall
	failFor map[string]bool // "op:user"
	delay   time.Duration
}

func (l *fakeLedger) do(op, userID string, amount decimal.Decimal) error {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failFor[op+":"+userID] {
		return fmt.Errorf("%s rejected for %s", op, userID)
	}
	l.calls = append(l.calls, ledgerCall{Op: op, UserID: userID, Amount: amount.String()})
	return nil
}

func (l *fakeLedger) Reserve(_ context.Context, u string, a decimal.Decimal, _ string) error {
	return l.do("reserve", u, a)
}
func (l *fakeLedger) Release(_ context.Context, u string, a decimal.Decimal, _ string) error {
	return l.do("release", u, a)
}
func (l *fakeLedger) Credit(_ context.Context, u string, a decimal.Decimal, _ string) error {
	return l.do("credit", u, a)
}
func (l *fakeLedger) Debit(_ context.Context, u string, a decimal.Decimal, _ string) error {
	return l.do("debit", u, a)
}

func (l *fakeLedger) count(op string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (l *fakeLedger) snapshot() []ledgerCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ledgerCall(nil), l.calls...)
}

// trackerStub answers with a fixed winner and counts lookups
type trackerStub struct {
	mu     sync.Mutex
	winner string
	err    error
	calls  int
}

func (t *trackerStub) Winner(context.Context, string, string, string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	return t.winner, t.err
}

type statsCall struct {
	Winner, Loser string
	Wager         string
}

type fakeStats struct {
	mu    sync.Mutex
	calls []statsCall
	err   error
}

func (f *fakeStats) RecordOutcome(_ context.Context, winnerID, loserID string, wager decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, statsCall{winnerID, loserID, wager.String()})
	return f.err
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.MatchEvent
}

func (n *recordingNotifier) Publish(_ context.Context, e models.MatchEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

type busyLocker struct{}

func (busyLocker) TryLock(context.Context, string) (func(), bool, error) {
	return nil, false, nil
}

var _ Verifier = (*verifier.Verifier)(nil)
