package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrTrackerUnavailable = errors.New("match tracker not configured")
	ErrResultPending      = errors.New("match result not available yet")
	ErrNoDLSID            = errors.New("participant has no DLS id")
)

// Directory maps platform users to their in-game DLS ids
type Directory interface {
	DLSID(ctx context.Context, userID string) (string, error)
}

// TrackerClient reads final scores from the tracker service
type TrackerClient struct {
	baseURL    string
	directory  Directory
	rdb        *redis.Client
	cacheTTL   time.Duration
	httpClient *http.Client
}

func NewTrackerClient(baseURL string, directory Directory, rdb *redis.Client, cacheTTL time.Duration) *TrackerClient {
	return &TrackerClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		directory:  directory,
		rdb:        rdb,
		cacheTTL:   cacheTTL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type trackerResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	HomeTeam  string `json:"home_team"`
	AwayTeam  string `json:"away_team"`
	MatchData *struct {
		HomeScore int `json:"home_score"`
		AwayScore int `json:"away_score"`
	} `json:"match_data"`
}

// Winner resolves the winning DLS id for externalRef and maps it back to
// participantA or participantB. A draw, or teams that are not the two
// participants, yields an empty winner.
func (t *TrackerClient) Winner(ctx context.Context, externalRef, participantA, participantB string) (string, error) {
	dlsA, err := t.directory.DLSID(ctx, participantA)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", participantA, err)
	}
	dlsB, err := t.directory.DLSID(ctx, participantB)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", participantB, err)
	}
	if dlsA == "" || dlsB == "" {
		return "", ErrNoDLSID
	}

	result, err := t.fetchResult(ctx, externalRef)
	if err != nil {
		return "", err
	}

	home, away := strings.ToLower(result.HomeTeam), strings.ToLower(result.AwayTeam)
	a, b := strings.ToLower(dlsA), strings.ToLower(dlsB)
	if !((home == a && away == b) || (home == b && away == a)) {
		log.Printf("[TRACKER] Teams for %s (%s vs %s) do not match participants", externalRef, result.HomeTeam, result.AwayTeam)
		return "", nil
	}

	var winningTeam string
	switch {
	case result.MatchData.HomeScore > result.MatchData.AwayScore:
		winningTeam = home
	case result.MatchData.AwayScore > result.MatchData.HomeScore:
		winningTeam = away
	default:
		return "", nil
	}

	if winningTeam == a {
		return participantA, nil
	}
	return participantB, nil
}

func (t *TrackerClient) cacheKey(ref string) string {
	return "tracker_result:" + ref
}

// fetchResult returns the final score for ref, from cache when possible
func (t *TrackerClient) fetchResult(ctx context.Context, ref string) (*trackerResponse, error) {
	if t.rdb != nil {
		if cached, err := t.rdb.Get(ctx, t.cacheKey(ref)).Bytes(); err == nil {
			var parsed trackerResponse
			if json.Unmarshal(cached, &parsed) == nil && parsed.MatchData != nil {
				return &parsed, nil
			}
		}
	}

	endpoint := t.baseURL + "/match-result?match_code=" + url.QueryEscape(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracker request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tracker request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tracker response: %w", err)
	}
	var parsed trackerResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("invalid tracker response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tracker returned %d: %s", resp.StatusCode, parsed.Message)
	}
	if parsed.Status == "pending" {
		return nil, ErrResultPending
	}
	if parsed.Status != "success" || parsed.MatchData == nil {
		return nil, fmt.Errorf("tracker status %q: %s", parsed.Status, parsed.Message)
	}

	log.Printf("[TRACKER] %s: %s %d-%d %s", ref, parsed.HomeTeam, parsed.MatchData.HomeScore, parsed.MatchData.AwayScore, parsed.AwayTeam)

	// final scores never change
	if t.rdb != nil && t.cacheTTL > 0 {
		if encoded, err := json.Marshal(parsed); err == nil {
			t.rdb.Set(ctx, t.cacheKey(ref), encoded, t.cacheTTL)
		}
	}
	return &parsed, nil
}

// UnavailableTracker is used when no tracker is configured; every claim
// ends up disputed.
type UnavailableTracker struct{}

func (UnavailableTracker) Winner(context.Context, string, string, string) (string, error) {
	return "", ErrTrackerUnavailable
}
