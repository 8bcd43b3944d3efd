package match

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dlsarena/backend/internal/config"
	"github.com/dlsarena/backend/internal/models"
	"github.com/dlsarena/backend/internal/store"
	"github.com/dlsarena/backend/internal/verifier"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	svc      *Service
	store    *memStore
	ledger   *fakeLedger
	tracker  *trackerStub
	stats    *fakeStats
	notifier *recordingNotifier
}

func testConfig() *config.Config {
	return &config.Config{
		WagerMini:          decimal.RequireFromString("0.5"),
		WagerBeast:         decimal.NewFromInt(2),
		WagerMonster:       decimal.NewFromInt(5),
		PlatformFeePercent: decimal.NewFromInt(5),
		JoinCodeAttempts:   3,
	}
}

func newHarness() *harness {
	h := &harness{
		store:    newMemStore(),
		ledger:   &fakeLedger{failFor: map[string]bool{}},
		tracker:  &trackerStub{},
		stats:    &fakeStats{},
		notifier: &recordingNotifier{},
	}
	h.svc = NewService(testConfig(), Deps{
		Store:    h.store,
		Ledger:   h.ledger,
		Verifier: verifier.New(h.tracker, time.Second),
		Stats:    h.stats,
		Notifier: h.notifier,
		Locker:   NewLocalLocker(),
	})
	return h
}

// inProgress creates a beast match by alice joined by bob
func (h *harness) inProgress(t *testing.T) *models.Match {
	t.Helper()
	ctx := context.Background()
	m, err := h.svc.CreateMatch(ctx, "alice", "beast", false)
	require.NoError(t, err)
	m, err = h.svc.JoinMatch(ctx, "bob", m.JoinCode)
	require.NoError(t, err)
	return m
}

func TestCreateMatchUsesTierTable(t *testing.T) {
	h := newHarness()

	m, err := h.svc.CreateMatch(context.Background(), "alice", "Beast", true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, m.Status)
	assert.Equal(t, "beast", m.WagerTier)
	assert.True(t, m.WagerAmount.Equal(decimal.NewFromInt(2)))
	assert.Regexp(t, `^[A-Z0-9]{6}$`, m.JoinCode)
	assert.True(t, m.IsRandom)
	assert.Nil(t, m.JoinerID)
	assert.Empty(t, h.ledger.snapshot(), "creating a match moves no funds")
	assert.Equal(t, []string{models.EventMatchCreated}, h.notifier.types())
}

func TestCreateMatchRejectsBadInput(t *testing.T) {
	h := newHarness()

	_, err := h.svc.CreateMatch(context.Background(), "alice", "whale", false)
	assert.ErrorIs(t, err, ErrInvalidTier)

	_, err = h.svc.CreateMatch(context.Background(), "", "mini", false)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCreateMatchRegeneratesCollidingCode(t *testing.T) {
	h := newHarness()
	h.store.duplicates = 2
	codes := []string{"AAAAAA", "BBBBBB", "CCCCCC"}
	h.svc.newCode = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}

	m, err := h.svc.CreateMatch(context.Background(), "alice", "mini", false)
	require.NoError(t, err)
	assert.Equal(t, "CCCCCC", m.JoinCode)
}

func TestCreateMatchGivesUpAfterAttempts(t *testing.T) {
	h := newHarness()
	h.store.duplicates = 10

	_, err := h.svc.CreateMatch(context.Background(), "alice", "mini", false)
	assert.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, 7, h.store.duplicates)
}

func TestJoinMatchReservesBothSides(t *testing.T) {
	h := newHarness()
	m := h.inProgress(t)

	assert.Equal(t, models.StatusInProgress, m.Status)
	require.NotNil(t, m.JoinerID)
	assert.Equal(t, "bob", *m.JoinerID)
	assert.NotNil(t, m.StartedAt)
	assert.ElementsMatch(t, []ledgerCall{
		{Op: "reserve", UserID: "alice", Amount: "2"},
		{Op: "reserve", UserID: "bob", Amount: "2"},
	}, h.ledger.snapshot())
}

func TestJoinMatchPreconditions(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.svc.JoinMatch(ctx, "bob", "NOPE00")
	assert.ErrorIs(t, err, ErrNotFound)

	m, err := h.svc.CreateMatch(ctx, "alice", "mini", false)
	require.NoError(t, err)

	_, err = h.svc.JoinMatch(ctx, "", m.JoinCode)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = h.svc.JoinMatch(ctx, "alice", m.JoinCode)
	assert.ErrorIs(t, err, ErrSelfJoin)
	assert.Equal(t, "You cannot join your own match", err.Error())

	_, err = h.svc.JoinMatch(ctx, "bob", " "+strings.ToLower(m.JoinCode)+" ")
	require.NoError(t, err)

	_, err = h.svc.JoinMatch(ctx, "carol", m.JoinCode)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 2, h.ledger.count("reserve"))
}

func TestJoinMatchReleasesOnPartialFailure(t *testing.T) {
	h := newHarness()
	h.ledger.failFor["reserve:bob"] = true
	ctx := context.Background()

	m, err := h.svc.CreateMatch(ctx, "alice", "beast", false)
	require.NoError(t, err)

	_, err = h.svc.JoinMatch(ctx, "bob", m.JoinCode)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, models.StatusWaiting, h.store.status(m.ID))
	assert.Equal(t, []ledgerCall{
		{Op: "reserve", UserID: "alice", Amount: "2"},
		{Op: "release", UserID: "alice", Amount: "2"},
	}, h.ledger.snapshot())

	// the match is still joinable by someone else
	joined, err := h.svc.JoinMatch(ctx, "carol", m.JoinCode)
	require.NoError(t, err)
	assert.Equal(t, "carol", *joined.JoinerID)
}

func TestJoinMatchNoReleaseWhenBothFail(t *testing.T) {
	h := newHarness()
	h.ledger.failFor["reserve:alice"] = true
	h.ledger.failFor["reserve:bob"] = true

	m, err := h.svc.CreateMatch(context.Background(), "alice", "beast", false)
	require.NoError(t, err)

	_, err = h.svc.JoinMatch(context.Background(), "bob", m.JoinCode)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Empty(t, h.ledger.snapshot())
}

func TestJoinMatchLostRaceReleasesBoth(t *testing.T) {
	h := newHarness()
	m, err := h.svc.CreateMatch(context.Background(), "alice", "beast", false)
	require.NoError(t, err)
	h.store.startConflict = true

	_, err = h.svc.JoinMatch(context.Background(), "bob", m.JoinCode)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 2, h.ledger.count("reserve"))
	assert.Equal(t, 2, h.ledger.count("release"))
}

func TestConcurrentJoinsOnlyOneWins(t *testing.T) {
	h := newHarness()
	h.ledger.delay = 5 * time.Millisecond
	m, err := h.svc.CreateMatch(context.Background(), "alice", "beast", false)
	require.NoError(t, err)

	joiners := []string{"bob", "carol", "dave", "erin"}
	var wg sync.WaitGroup
	errs := make([]error, len(joiners))
	for i, u := range joiners {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			_, errs[i] = h.svc.JoinMatch(context.Background(), u, m.JoinCode)
		}(i, u)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidState)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, models.StatusInProgress, h.store.status(m.ID))
	assert.Equal(t, h.ledger.count("reserve")-2, h.ledger.count("release"))
}

func TestSubmitResultBeastScenario(t *testing.T) {
	h := newHarness()
	m := h.inProgress(t)
	h.tracker.winner = "alice"

	out, err := h.svc.SubmitResult(context.Background(), "bob", m.ID, "alice", "DLS123@[tok]")
	require.NoError(t, err)
	assert.False(t, out.Disputed)
	assert.True(t, out.Payout.Equal(decimal.RequireFromString("3.8")))
	assert.Equal(t, models.StatusCompleted, out.Match.Status)
	assert.Equal(t, "alice", *out.Match.WinnerID)
	assert.Equal(t, "bob", *out.Match.LoserID)
	assert.True(t, out.Match.PlatformFee.Decimal.Equal(decimal.RequireFromString("0.2")))
	assert.NotNil(t, out.Match.CompletedAt)

	calls := h.ledger.snapshot()
	require.Len(t, calls, 3)
	assert.Equal(t, ledgerCall{Op: "credit", UserID: "alice", Amount: "3.8"}, calls[2])
	assert.Equal(t, []statsCall{{Winner: "alice", Loser: "bob", Wager: "2"}}, h.stats.calls)
	assert.Contains(t, h.notifier.types(), models.EventMatchCompleted)
}

func TestSubmitResultNonParticipantWinner(t *testing.T) {
	h := newHarness()
	m := h.inProgress(t)

	out, err := h.svc.SubmitResult(context.Background(), "alice", m.ID, "mallory", "ref")
	require.NoError(t, err)
	assert.True(t, out.Disputed)
	assert.Equal(t, verifier.ReasonNotParticipant, out.Reason)
	assert.Equal(t, models.StatusDisputed, out.Match.Status)
	assert.Zero(t, h.tracker.calls)
	assert.Zero(t, h.ledger.count("credit"))
	assert.Empty(t, h.stats.calls)
}

func TestSubmitResultUnverifiedFreezesFunds(t *testing.T) {
	h := newHarness()
	m := h.inProgress(t)
	h.tracker.winner = "bob"

	out, err := h.svc.SubmitResult(context.Background(), "alice", m.ID, "alice", "ref")
	require.NoError(t, err)
	assert.True(t, out.Disputed)
	require.NotNil(t, out.Match.DisputeReason)
	assert.Equal(t, verifier.ReasonUnverified, *out.Match.DisputeReason)
	assert.Zero(t, h.ledger.count("credit"))
	assert.Zero(t, h.ledger.count("release"))
	assert.Equal(t, 2, h.ledger.count("reserve"))
	assert.Contains(t, h.notifier.types(), models.EventMatchDisputed)
}

func TestSubmitResultTrackerErrorDisputes(t *testing.T) {
	h := newHarness()
	m := h.inProgress(t)
	h.tracker.err = errors.New("tracker down")

	out, err := h.svc.SubmitResult(context.Background(), "alice", m.ID, "alice", "ref")
	require.NoError(t, err)
	assert.True(t, out.Disputed)
	assert.Equal(t, verifier.ReasonTrackerError, out.Reason)
}

func TestSubmitResultIsNotRepeatable(t *testing.T) {
	h := newHarness()
	m := h.inProgress(t)
	h.tracker.winner = "bob"
	ctx := context.Background()

	_, err := h.svc.SubmitResult(ctx, "bob", m.ID, "bob", "ref")
	require.NoError(t, err)

	_, err = h.svc.SubmitResult(ctx, "bob", m.ID, "bob", "ref")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 1, h.ledger.count("credit"))
	assert.Len(t, h.stats.calls, 1)

	// disputed matches are terminal too
	d := h.inProgress(t)
	h.tracker.winner = "alice"
	out, err := h.svc.SubmitResult(ctx, "bob", d.ID, "bob", "ref")
	require.NoError(t, err)
	require.True(t, out.Disputed)
	_, err = h.svc.SubmitResult(ctx, "bob", d.ID, "alice", "ref")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 1, h.ledger.count("credit"))
}

func TestConcurrentSubmissionsSettleOnce(t *testing.T) {
	h := newHarness()
	m := h.inProgress(t)
	h.tracker.winner = "alice"
	h.ledger.delay = 5 * time.Millisecond

	var wg sync.WaitGroup
	results := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = h.svc.SubmitResult(context.Background(), "alice", m.ID, "alice", "ref")
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range results {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrInvalidState)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, h.ledger.count("credit"))
	assert.Len(t, h.stats.calls, 1)
}

func TestSubmitResultPreconditions(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.svc.SubmitResult(ctx, "alice", "missing", "alice", "ref")
	assert.ErrorIs(t, err, ErrNotFound)

	waiting, err := h.svc.CreateMatch(ctx, "alice", "mini", false)
	require.NoError(t, err)
	_, err = h.svc.SubmitResult(ctx, "alice", waiting.ID, "alice", "ref")
	assert.ErrorIs(t, err, ErrInvalidState)

	m := h.inProgress(t)
	_, err = h.svc.SubmitResult(ctx, "carol", m.ID, "alice", "ref")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.svc.SubmitResult(ctx, "", m.ID, "alice", "ref")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, h.tracker.calls)
}

func TestSubmitResultCreditFailureLeavesMatchInProgress(t *testing.T) {
	h := newHarness()
	m := h.inProgress(t)
	h.tracker.winner = "alice"
	h.ledger.failFor["credit:alice"] = true

	_, err := h.svc.SubmitResult(context.Background(), "alice", m.ID, "alice", "ref")
	assert.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, "Failed to process match result", err.Error())
	assert.Equal(t, models.StatusInProgress, h.store.status(m.ID))
	assert.Empty(t, h.stats.calls)
}

func TestSubmitResultCompensatesLostTransition(t *testing.T) {
	h := newHarness()
	m := h.inProgress(t)
	h.tracker.winner = "alice"
	h.store.completeErr = store.ErrConflict

	_, err := h.svc.SubmitResult(context.Background(), "alice", m.ID, "alice", "ref")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 1, h.ledger.count("credit"))
	assert.Equal(t, 1, h.ledger.count("debit"))
	assert.Empty(t, h.stats.calls)
}

func TestSubmitResultStatsFailureIsLogged(t *testing.T) {
	h := newHarness()
	m := h.inProgress(t)
	h.tracker.winner = "bob"
	h.stats.err = errors.New("stats db down")

	out, err := h.svc.SubmitResult(context.Background(), "bob", m.ID, "bob", "ref")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, out.Match.Status)
}

func TestBusyLockIsInvalidState(t *testing.T) {
	h := newHarness()
	m, err := h.svc.CreateMatch(context.Background(), "alice", "beast", false)
	require.NoError(t, err)
	h.svc.Locker = busyLocker{}

	_, err = h.svc.JoinMatch(context.Background(), "bob", m.JoinCode)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Empty(t, h.ledger.snapshot())
}

func TestGetMatchVisibility(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	m := h.inProgress(t)

	got, err := h.svc.GetMatch(ctx, "bob", m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	_, err = h.svc.GetMatch(ctx, "carol", m.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	waiting, err := h.svc.CreateMatch(ctx, "alice", "mini", false)
	require.NoError(t, err)
	_, err = h.svc.GetMatch(ctx, "carol", waiting.ID)
	assert.NoError(t, err)

	active, err := h.svc.ActiveMatches(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestSplit(t *testing.T) {
	payout, fee := Split(decimal.NewFromInt(2), decimal.NewFromInt(5))
	assert.Equal(t, "3.8", payout.String())
	assert.Equal(t, "0.2", fee.String())

	payout, fee = Split(decimal.RequireFromString("0.5"), decimal.NewFromInt(5))
	assert.Equal(t, "0.95", payout.String())
	assert.Equal(t, "0.05", fee.String())
}

func TestTiersSorted(t *testing.T) {
	h := newHarness()
	tiers := h.svc.Tiers()
	require.Len(t, tiers, 3)
	assert.Equal(t, "mini", tiers[0].Name)
	assert.Equal(t, "monster", tiers[2].Name)
}

func TestGenerateJoinCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := generateJoinCode()
		require.NoError(t, err)
		assert.Regexp(t, `^[A-Z0-9]{6}$`, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45)
}
