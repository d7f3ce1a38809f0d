package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
)

// HTTPGateway talks to the gateway's REST API. All calls run under a bounded
// timeout and behind a circuit breaker: once the gateway fails repeatedly the
// breaker opens and callers get ErrUnavailable immediately instead of piling
// up slow requests.
type HTTPGateway struct {
	client  *http.Client
	baseURL string
	apiKey  string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// HTTPConfig configures the gateway client.
type HTTPConfig struct {
	BaseURL string
	APIKey  string
	// Timeout bounds each gateway call. The orchestrator reports
	// ErrUnavailable when it elapses.
	Timeout time.Duration
}

// NewHTTPGateway creates the client with its circuit breaker.
func NewHTTPGateway(cfg HTTPConfig) *HTTPGateway {
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &HTTPGateway{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		breaker: breaker,
	}
}

type createSessionRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"idempotency_key"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

// CreateSession opens a payment session for the given amount in minor units.
func (g *HTTPGateway) CreateSession(ctx context.Context, amount int64, idempotencyKey string) (*Session, error) {
	body, err := json.Marshal(createSessionRequest{
		Amount:         amount,
		Currency:       "INR",
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal session request")
	}

	respBody, err := g.do(ctx, http.MethodPost, g.baseURL+"/v1/sessions", body)
	if err != nil {
		return nil, err
	}

	var resp createSessionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, errors.Wrap(err, "decode session response")
	}
	if resp.SessionID == "" {
		return nil, errors.New("gateway returned empty session id")
	}

	return &Session{Ref: resp.SessionID, Amount: amount}, nil
}

type confirmResponse struct {
	Status string `json:"status"`
	TxnID  string `json:"txn_id"`
}

// Confirm asks the gateway for the authoritative outcome of a session. Safe to
// call repeatedly; the gateway's answer for a settled session never changes.
func (g *HTTPGateway) Confirm(ctx context.Context, sessionRef string) (*Confirmation, error) {
	url := fmt.Sprintf("%s/v1/sessions/%s/confirm", g.baseURL, sessionRef)

	respBody, err := g.do(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, err
	}

	var resp confirmResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, errors.Wrap(err, "decode confirm response")
	}

	switch ConfirmStatus(resp.Status) {
	case StatusPaid, StatusFailed, StatusPending:
		return &Confirmation{Status: ConfirmStatus(resp.Status), GatewayTxnID: resp.TxnID}, nil
	}
	return nil, errors.Errorf("gateway returned unknown status %q", resp.Status)
}

// do executes one HTTP call through the breaker under the configured timeout.
func (g *HTTPGateway) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	respBody, err := g.breaker.Execute(func() ([]byte, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(callCtx, method, url, rd)
		if err != nil {
			return nil, errors.Wrap(err, "build request")
		}
		req.Header.Set("Content-Type", "application/json")
		if g.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+g.apiKey)
		}

		resp, err := g.client.Do(req)
		if err != nil {
			return nil, errors.Wrapf(ErrUnavailable, "%s %s: %v", method, url, err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, errors.Wrapf(ErrUnavailable, "read response: %v", err)
		}

		if resp.StatusCode >= 500 {
			return nil, errors.Wrapf(ErrUnavailable, "%s %s: status %d", method, url, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return nil, errors.Errorf("%s %s: status %d: %s", method, url, resp.StatusCode, data)
		}
		return data, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errors.Wrap(ErrUnavailable, "circuit open")
		}
		return nil, err
	}
	return respBody, nil
}
