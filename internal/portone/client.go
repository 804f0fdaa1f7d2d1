// Package portone talks to the PortOne (iamport) REST API to verify that a
// gateway transaction really was paid, and paid for the right amount.
package portone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrCredentialsMissing is a server misconfiguration: the gateway
	// key/secret were never provided. Maps to a 500, not a 400.
	ErrCredentialsMissing = errors.New("portone credentials are not configured")

	// ErrTokenExchange covers any failure to obtain an access token.
	ErrTokenExchange = errors.New("portone token exchange failed")

	// ErrNotPaid means the gateway knows the transaction but its status is
	// anything other than "paid" (ready, failed, cancelled, ...).
	ErrNotPaid = errors.New("payment is not completed")

	// ErrAmountMismatch means the gateway captured a different amount than
	// the server-side reconciled total. The order must not be persisted.
	ErrAmountMismatch = errors.New("paid amount does not match order total")

	// ErrVerification is the catch-all for lookup failures: transport
	// errors, non-2xx responses, or a non-zero embedded code.
	ErrVerification = errors.New("payment verification failed")
)

// Payment is the subset of the gateway's payment record the verifier needs.
type Payment struct {
	ImpUID      string `json:"imp_uid"`
	MerchantUID string `json:"merchant_uid"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	PayMethod   string `json:"pay_method"`
	PGProvider  string `json:"pg_provider"`
	PaidAt      int64  `json:"paid_at"` // unix seconds, 0 if unpaid
}

type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
}

func NewClient(baseURL, apiKey, apiSecret string) *Client {
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether gateway credentials were supplied. Order
// creation is the only flow that needs them, so a missing pair is logged at
// startup but only turns fatal per-request.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.apiSecret != ""
}

// envelope is the wrapper every iamport response uses; code 0 is success
// even when the HTTP status is 200.
type envelope struct {
	Code     int             `json:"code"`
	Message  string          `json:"message"`
	Response json.RawMessage `json:"response"`
}

// token requests a short-lived access token. Tokens are fetched fresh for
// every verification; there is no cross-request cache.
func (c *Client) token(ctx context.Context) (string, error) {
	if !c.Configured() {
		return "", ErrCredentialsMissing
	}

	body, _ := json.Marshal(map[string]string{
		"imp_key":    c.apiKey,
		"imp_secret": c.apiSecret,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users/getToken", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrTokenExchange, err)
	}
	if resp.StatusCode != http.StatusOK || env.Code != 0 {
		return "", fmt.Errorf("%w: code=%d message=%s", ErrTokenExchange, env.Code, env.Message)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(env.Response, &tok); err != nil || tok.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrTokenExchange)
	}
	return tok.AccessToken, nil
}

// lookup fetches the gateway's record for one transaction id.
func (c *Client) lookup(ctx context.Context, token, impUID string) (*Payment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/payments/"+url.PathEscape(impUID), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerification, err)
	}
	req.Header.Set("Authorization", token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerification, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrVerification, err)
	}
	if resp.StatusCode != http.StatusOK || env.Code != 0 {
		return nil, fmt.Errorf("%w: code=%d message=%s", ErrVerification, env.Code, env.Message)
	}

	var p Payment
	if err := json.Unmarshal(env.Response, &p); err != nil {
		return nil, fmt.Errorf("%w: decode payment: %v", ErrVerification, err)
	}
	return &p, nil
}

// Verify confirms with the gateway that impUID is a completed payment of
// exactly expectedAmount. It performs no retries: a transient gateway failure
// surfaces immediately and the client must restart checkout with a fresh
// transaction.
func (c *Client) Verify(ctx context.Context, impUID string, expectedAmount int64) (*Payment, error) {
	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	p, err := c.lookup(ctx, tok, impUID)
	if err != nil {
		return nil, err
	}
	if p.Status != "paid" {
		return nil, fmt.Errorf("%w: status=%s", ErrNotPaid, p.Status)
	}
	if p.Amount != expectedAmount {
		return nil, fmt.Errorf("%w: paid=%d expected=%d", ErrAmountMismatch, p.Amount, expectedAmount)
	}
	return p, nil
}
