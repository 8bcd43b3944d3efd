package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dlsarena/backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const maxAttempts = 3

// Client talks to the exchange's account API on behalf of the platform.
// Platform calls carry a client-credentials bearer token; account calls are
// additionally signed with the user's linked API secret.
type Client struct {
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	rdb          *redis.Client
	httpClient   *http.Client
	cacheKey     string
}

// StatusError is a non-2xx answer from the exchange
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("exchange returned %d: %s", e.Code, e.Message)
}

// NewClient returns nil when the exchange is not configured
func NewClient(cfg *config.Config, rdb *redis.Client) *Client {
	if cfg == nil || cfg.ExchangeBaseURL == "" || cfg.ExchangeClientID == "" || cfg.ExchangeClientSecret == "" {
		return nil
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.ExchangeBaseURL, "/"),
		tokenURL:     cfg.ExchangeTokenPath,
		clientID:     cfg.ExchangeClientID,
		clientSecret: cfg.ExchangeClientSecret,
		rdb:          rdb,
		httpClient:   &http.Client{Timeout: cfg.LedgerTimeout()},
		cacheKey:     "exchange_token:" + cfg.ExchangeClientID[:min(8, len(cfg.ExchangeClientID))],
	}
}

type apiResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	Message       string `json:"message"`
	Balance       string `json:"balance,omitempty"`
	Valid         bool   `json:"valid,omitempty"`
}

// getAccessToken fetches or retrieves the cached platform token
func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	if c.rdb != nil {
		if token, err := c.rdb.Get(ctx, c.cacheKey).Result(); err == nil && token != "" {
			return token, nil
		}
	}

	log.Printf("[EXCHANGE] Fetching new access token")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.tokenURL, bytes.NewBufferString("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", errors.New("no access_token in response")
	}

	// Cache with 90% of expiry time
	if c.rdb != nil && tokenResp.ExpiresIn > 0 {
		ttl := time.Duration(float64(tokenResp.ExpiresIn)*0.9) * time.Second
		c.rdb.Set(ctx, c.cacheKey, tokenResp.AccessToken, ttl)
	}

	return tokenResp.AccessToken, nil
}

func (c *Client) clearToken(ctx context.Context) {
	if c.rdb != nil {
		c.rdb.Del(ctx, c.cacheKey)
		log.Printf("[EXCHANGE] 403 error - cleared cached token")
	}
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func backoff(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(100+attempt*200) * time.Millisecond):
		return nil
	}
}

// do sends one API call, retrying transport errors and 5xx answers. A non-empty
// idemKey is sent as Idempotency-Key on every attempt.
func (c *Client) do(ctx context.Context, method, path string, acct *Account, payload interface{}, idemKey string) (*apiResponse, error) {
	var token string
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		var err error
		token, err = c.getAccessToken(ctx)
		if err == nil {
			break
		}
		lastErr = err
		if berr := backoff(ctx, attempt); berr != nil {
			return nil, berr
		}
	}
	if token == "" {
		return nil, fmt.Errorf("failed to get access token: %w", lastErr)
	}

	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	endpoint := c.baseURL + path
	for attempt := 0; attempt < maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if idemKey != "" {
			req.Header.Set("Idempotency-Key", idemKey)
		}
		if acct != nil {
			req.Header.Set("X-Account-Key", acct.APIKey)
			req.Header.Set("X-Signature", sign(acct.APISecret, body))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts-1 {
				if berr := backoff(ctx, attempt); berr != nil {
					return nil, berr
				}
				continue
			}
			return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
		}

		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		var parsed apiResponse
		_ = json.Unmarshal(raw, &parsed)

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
			return &parsed, nil
		}

		if resp.StatusCode == http.StatusForbidden {
			c.clearToken(ctx)
			return nil, &StatusError{Code: resp.StatusCode, Message: parsed.Message}
		}

		if resp.StatusCode >= 500 && attempt < maxAttempts-1 {
			lastErr = &StatusError{Code: resp.StatusCode, Message: string(raw)}
			if berr := backoff(ctx, attempt); berr != nil {
				return nil, berr
			}
			continue
		}

		// 4xx errors - don't retry
		return nil, &StatusError{Code: resp.StatusCode, Message: parsed.Message}
	}

	return nil, fmt.Errorf("%s %s failed after retries: %w", method, path, lastErr)
}

// move posts a money movement. The exchange deduplicates on the reference,
// which makes the retries in do safe.
func (c *Client) move(ctx context.Context, path string, acct Account, amount decimal.Decimal, ref Reference) error {
	if ref.Key == "" {
		return ErrMissingKey
	}
	payload := map[string]string{
		"amount":    amount.StringFixed(8),
		"reference": ref.Key,
		"match_id":  ref.MatchID,
	}
	resp, err := c.do(ctx, http.MethodPost, path, &acct, payload, ref.Key)
	if err != nil {
		return err
	}
	if !strings.EqualFold(resp.Status, "SUCCESS") {
		return fmt.Errorf("%w: %s", ErrRejected, resp.Message)
	}
	log.Printf("[EXCHANGE] %s ok: user=%s amount=%s ref=%s match=%s exchange_txn=%s", path, acct.UserID, amount, ref.Key, ref.MatchID, resp.TransactionID)
	return nil
}

func (c *Client) Hold(ctx context.Context, acct Account, amount decimal.Decimal, ref Reference) error {
	return c.move(ctx, "/api/v1/holds", acct, amount, ref)
}

func (c *Client) ReleaseHold(ctx context.Context, acct Account, amount decimal.Decimal, ref Reference) error {
	return c.move(ctx, "/api/v1/holds/release", acct, amount, ref)
}

func (c *Client) Credit(ctx context.Context, acct Account, amount decimal.Decimal, ref Reference) error {
	return c.move(ctx, "/api/v1/credits", acct, amount, ref)
}

func (c *Client) Debit(ctx context.Context, acct Account, amount decimal.Decimal, ref Reference) error {
	return c.move(ctx, "/api/v1/debits", acct, amount, ref)
}

// Balance returns the spendable balance of a linked account
func (c *Client) Balance(ctx context.Context, acct Account) (decimal.Decimal, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/balance", &acct, nil, "")
	if err != nil {
		return decimal.Zero, err
	}
	bal, err := decimal.NewFromString(resp.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid balance %q: %w", resp.Balance, err)
	}
	return bal, nil
}

// VerifyCredentials asks the exchange whether a key pair is usable.
// A 4xx answer means the credentials are bad, not that the call failed.
func (c *Client) VerifyCredentials(ctx context.Context, apiKey, apiSecret string) (bool, error) {
	if apiKey == "" || apiSecret == "" {
		return false, nil
	}
	acct := Account{APIKey: apiKey, APISecret: apiSecret}
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/credentials/verify", &acct, map[string]string{"api_key": apiKey}, "")
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
			return false, nil
		}
		return false, err
	}
	return resp.Valid, nil
}
