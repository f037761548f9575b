// Package wallet talks to the external wallet/ledger service. All amounts
// are minor currency units. Every mutating call carries a deterministic
// idempotency key so the ledger deduplicates retries on its side.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// CreditOutcome classifies a credit attempt. Duplicate means the ledger
// has already applied a credit with the same idempotency key; callers
// treat it exactly like Success.
type CreditOutcome string

const (
	OutcomeSuccess   CreditOutcome = "success"
	OutcomeDuplicate CreditOutcome = "duplicate"
	OutcomeFailure   CreditOutcome = "failure"
)

// ErrUnavailable reports a transport-level failure: the outcome of the
// call is unknown and the caller should retry with the same key.
var ErrUnavailable = errors.New("wallet service unavailable")

type CreditRequest struct {
	AccountRef     string `json:"account_ref"`
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
	Reference      string `json:"reference"`
}

// Client is the surface the settlement engine depends on. Credit pays an
// account from the tournament escrow; Release closes an empty escrow.
type Client interface {
	Credit(ctx context.Context, req CreditRequest) (CreditOutcome, error)
	Release(ctx context.Context, escrowID string) error
}

type httpClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient builds a wallet client with a bounded per-call timeout.
// The client never retries on its own; retry policy lives in the
// settlement service where attempts are persisted.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) Client {
	return &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type creditResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

func (c *httpClient) Credit(ctx context.Context, req CreditRequest) (CreditOutcome, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return OutcomeFailure, fmt.Errorf("marshal credit request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/credits", bytes.NewReader(body))
	if err != nil {
		return OutcomeFailure, fmt.Errorf("build credit request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return OutcomeFailure, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return OutcomeSuccess, nil
	case resp.StatusCode == http.StatusConflict:
		// The ledger saw this idempotency key before.
		return OutcomeDuplicate, nil
	case resp.StatusCode >= 500:
		return OutcomeFailure, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var parsed creditResponse
		if json.Unmarshal(detail, &parsed) == nil && parsed.Detail != "" {
			return OutcomeFailure, fmt.Errorf("wallet rejected credit: %s", parsed.Detail)
		}
		return OutcomeFailure, fmt.Errorf("wallet rejected credit: status %d", resp.StatusCode)
	}
}

func (c *httpClient) Release(ctx context.Context, escrowID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/v1/escrows/%s/release", c.baseURL, escrowID), nil)
	if err != nil {
		return fmt.Errorf("build release request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	// Releasing an already released escrow answers 409; that is fine.
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusConflict {
		return fmt.Errorf("wallet rejected escrow release: status %d", resp.StatusCode)
	}
	return nil
}

func (c *httpClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Request-Id", uuid.NewString())
}
