package verifier

import (
	"context"
	"log"
	"time"
)

const (
	ReasonNotParticipant = "Claimed winner is not a participant in the match"
	ReasonUnverified     = "Match result could not be verified from tracker data"
	ReasonTrackerError   = "Error verifying match result"
)

// Result of checking a claimed outcome. Reason is empty when Verified.
type Result struct {
	Verified bool   `json:"verified"`
	Reason   string `json:"reason,omitempty"`
}

// Tracker reports which of the two participants won an external match.
// An empty winner with a nil error means the tracker saw no winner.
type Tracker interface {
	Winner(ctx context.Context, externalRef, participantA, participantB string) (string, error)
}

type Verifier struct {
	tracker Tracker
	timeout time.Duration
}

func New(tracker Tracker, timeout time.Duration) *Verifier {
	return &Verifier{tracker: tracker, timeout: timeout}
}

// Verify checks claimedWinner against the tracker. It never returns an
// error; tracker failures and timeouts come back as an unverified Result.
func (v *Verifier) Verify(ctx context.Context, externalRef, participantA, participantB, claimedWinner string) Result {
	if claimedWinner == "" || (claimedWinner != participantA && claimedWinner != participantB) {
		return Result{Verified: false, Reason: ReasonNotParticipant}
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	winner, err := v.tracker.Winner(ctx, externalRef, participantA, participantB)
	if err != nil {
		log.Printf("[VERIFY] Tracker lookup failed for %s: %v", externalRef, err)
		return Result{Verified: false, Reason: ReasonTrackerError}
	}
	if winner != claimedWinner {
		log.Printf("[VERIFY] Claim for %s rejected: claimed=%s tracker=%q", externalRef, claimedWinner, winner)
		return Result{Verified: false, Reason: ReasonUnverified}
	}

	log.Printf("[VERIFY] Result for %s verified: winner=%s", externalRef, winner)
	return Result{Verified: true}
}
